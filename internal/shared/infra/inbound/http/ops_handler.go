package http

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/analytics"
	"github.com/davicafu/customsflow/pkg/utils"
)

// WorkerLiveness es lo que el endpoint de liveness necesita de cada dispatcher.
type WorkerLiveness interface {
	Name() string
	Healthy() bool
	LastSuccessfulCycle() time.Time
	StaleAfter() time.Duration
}

// EventCounter da los recuentos analíticos por tipo de evento.
type EventCounter interface {
	CountByType(ctx context.Context) ([]analytics.EventCount, error)
}

// OpsHandler agrupa los endpoints de operación: salud, métricas, outbox y analítica.
type OpsHandler struct {
	liveness []WorkerLiveness
	stores   map[string]sharedDomain.OutboxInspector
	counter  EventCounter
	gatherer prometheus.Gatherer
}

// NewOpsHandler recibe los almacenes de outbox por nombre ("sql", "mongo"). counter puede ser nil
// (analítica desactivada).
func NewOpsHandler(liveness []WorkerLiveness, stores map[string]sharedDomain.OutboxInspector, counter EventCounter, gatherer prometheus.Gatherer) *OpsHandler {
	return &OpsHandler{liveness: liveness, stores: stores, counter: counter, gatherer: gatherer}
}

// Health endpoint GET /health
func (h *OpsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Live endpoint GET /health/live
// Responde 503 si algún dispatcher lleva más de 3·intervalo + backoff sin completar un ciclo.
func (h *OpsHandler) Live(c *gin.Context) {
	type workerStatus struct {
		Status              string    `json:"status"`
		LastSuccessfulCycle time.Time `json:"lastSuccessfulCycle,omitempty"`
		StaleAfter          string    `json:"staleAfter"`
	}

	allHealthy := true
	workers := make(map[string]workerStatus, len(h.liveness))
	for _, p := range h.liveness {
		st := workerStatus{
			Status:              "ok",
			LastSuccessfulCycle: p.LastSuccessfulCycle(),
			StaleAfter:          p.StaleAfter().String(),
		}
		if !p.Healthy() {
			st.Status = "stale"
			allHealthy = false
		}
		workers[p.Name()] = st
	}

	if !allHealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "workers": workers})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "workers": workers})
}

// Metrics endpoint GET /metrics
func (h *OpsHandler) Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

// OutboxSummary endpoint GET /outbox/summary
func (h *OpsHandler) OutboxSummary(c *gin.Context) {
	out := make(map[string]sharedDomain.OutboxSummary, len(h.stores))
	for name, store := range h.stores {
		summary, err := store.Summary(c.Request.Context())
		if err != nil {
			utils.SendInternalServerError(c, name+": "+err.Error())
			return
		}
		out[name] = summary
	}
	c.JSON(http.StatusOK, out)
}

// OutboxFailed endpoint GET /outbox/failed?limit=50
func (h *OpsHandler) OutboxFailed(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		utils.SendBadRequest(c, "invalid limit")
		return
	}

	type failedMessage struct {
		Store string `json:"store"`
		sharedDomain.OutboxMessage
	}
	var out []failedMessage
	for _, name := range h.storeNames() {
		msgs, err := h.stores[name].ListFailed(c.Request.Context(), limit)
		if err != nil {
			utils.SendInternalServerError(c, name+": "+err.Error())
			return
		}
		for _, m := range msgs {
			out = append(out, failedMessage{Store: name, OutboxMessage: m})
		}
	}
	if out == nil {
		out = []failedMessage{}
	}
	c.JSON(http.StatusOK, out)
}

// Requeue endpoint POST /outbox/:id/requeue
// El mensaje se busca en todos los almacenes.
func (h *OpsHandler) Requeue(c *gin.Context) {
	id, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	var notFailed bool
	for _, name := range h.storeNames() {
		err := h.stores[name].Requeue(c.Request.Context(), id)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"id": id, "store": name, "status": "requeued"})
			return
		case errors.Is(err, sharedDomain.ErrOutboxMessageNotFailed):
			notFailed = true
		case errors.Is(err, sharedDomain.ErrOutboxMessageNotFound):
		default:
			utils.SendInternalServerError(c, err.Error())
			return
		}
	}

	if notFailed {
		utils.SendConflict(c, sharedDomain.ErrOutboxMessageNotFailed.Error())
		return
	}
	utils.SendNotFound(c, sharedDomain.ErrOutboxMessageNotFound.Error())
}

// AnalyticsEvents endpoint GET /analytics/events
func (h *OpsHandler) AnalyticsEvents(c *gin.Context) {
	if h.counter == nil {
		utils.SendNotFound(c, "analytics disabled")
		return
	}
	counts, err := h.counter.CountByType(c.Request.Context())
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *OpsHandler) storeNames() []string {
	names := make([]string, 0, len(h.stores))
	for name := range h.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
