package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/customsflow/internal/production/application"
	"github.com/davicafu/customsflow/internal/production/domain"
	"github.com/davicafu/customsflow/pkg/utils"
)

type ProductionHandler struct {
	service *application.ProductionService
}

func NewProductionHandler(service *application.ProductionService) *ProductionHandler {
	return &ProductionHandler{service: service}
}

// Create endpoint POST /production-orders
func (h *ProductionHandler) Create(c *gin.Context) {
	var req struct {
		ProductCode string  `json:"productCode" binding:"required"`
		PlannedQty  float64 `json:"plannedQty" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	o, err := h.service.Create(c.Request.Context(), req.ProductCode, req.PlannedQty)
	if err != nil {
		sendProductionError(c, err)
		return
	}
	c.JSON(http.StatusCreated, domain.NewProductionView(o))
}

// Complete endpoint POST /production-orders/:id/completion
func (h *ProductionHandler) Complete(c *gin.Context) {
	id, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		ProducedQty float64 `json:"producedQty" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	o, err := h.service.Complete(c.Request.Context(), id, req.ProducedQty)
	if err != nil {
		sendProductionError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.NewProductionView(o))
}

// Get endpoint GET /production-orders/:id
func (h *ProductionHandler) Get(c *gin.Context) {
	id, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	view, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		sendProductionError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func sendProductionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		utils.SendNotFound(c, err.Error())
	case errors.Is(err, domain.ErrInvalidOrder), errors.Is(err, domain.ErrInvalidQuantity):
		utils.SendBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrAlreadyCompleted):
		utils.SendConflict(c, err.Error())
	default:
		utils.SendInternalServerError(c, err.Error())
	}
}
