package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/customsflow/internal/guarantee/application"
	"github.com/davicafu/customsflow/internal/guarantee/domain"
	"github.com/davicafu/customsflow/pkg/utils"
)

// GuaranteeHandler encapsula los endpoints HTTP de las garantías.
type GuaranteeHandler struct {
	service *application.GuaranteeService
}

func NewGuaranteeHandler(service *application.GuaranteeService) *GuaranteeHandler {
	return &GuaranteeHandler{service: service}
}

type movementRequest struct {
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Reference string `json:"reference" binding:"required"`
}

// OpenAccount endpoint POST /guarantees
func (h *GuaranteeHandler) OpenAccount(c *gin.Context) {
	var req struct {
		Holder      string `json:"holder" binding:"required"`
		Currency    string `json:"currency" binding:"required,len=3"`
		CreditLimit int64  `json:"creditLimit" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	acc, err := h.service.OpenAccount(c.Request.Context(), req.Holder, req.Currency, req.CreditLimit)
	if err != nil {
		sendGuaranteeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": acc.ID, "holder": acc.Holder, "currency": acc.Currency, "creditLimit": acc.CreditLimit})
}

// GetAccount endpoint GET /guarantees/:id
func (h *GuaranteeHandler) GetAccount(c *gin.Context) {
	id, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	view, err := h.service.GetBalance(c.Request.Context(), id)
	if err != nil {
		sendGuaranteeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListEntries endpoint GET /guarantees/:id/entries
func (h *GuaranteeHandler) ListEntries(c *gin.Context) {
	id, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	acc, err := h.service.GetAccount(c.Request.Context(), id)
	if err != nil {
		sendGuaranteeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": acc.Balance(), "entries": acc.Entries()})
}

// Debit endpoint POST /guarantees/:id/debits
func (h *GuaranteeHandler) Debit(c *gin.Context) {
	id, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req movementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	entry, err := h.service.Debit(c.Request.Context(), id, req.Amount, req.Reference)
	if err != nil {
		sendGuaranteeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// Credit endpoint POST /guarantees/:id/credits
func (h *GuaranteeHandler) Credit(c *gin.Context) {
	id, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req movementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	entry, err := h.service.Credit(c.Request.Context(), id, req.Amount, req.Reference)
	if err != nil {
		sendGuaranteeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// VoidEntry endpoint DELETE /guarantees/:id/entries/:entryId
func (h *GuaranteeHandler) VoidEntry(c *gin.Context) {
	id, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	entryID, ok := utils.ParseUUIDParam(c, "entryId")
	if !ok {
		return
	}

	if err := h.service.VoidEntry(c.Request.Context(), id, entryID); err != nil {
		sendGuaranteeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func sendGuaranteeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrEntryNotFound):
		utils.SendNotFound(c, err.Error())
	case errors.Is(err, domain.ErrInvalidAccount), errors.Is(err, domain.ErrInvalidAmount):
		utils.SendBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrGuaranteeLimitExceeded),
		errors.Is(err, domain.ErrCreditExceedsBalance),
		errors.Is(err, domain.ErrEntryAlreadyVoided):
		utils.SendConflict(c, err.Error())
	default:
		utils.SendInternalServerError(c, err.Error())
	}
}
