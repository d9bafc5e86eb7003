package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/davicafu/customsflow/internal/receipt/application"
	"github.com/davicafu/customsflow/internal/receipt/domain"
	"github.com/davicafu/customsflow/pkg/utils"
)

type ReceiptHandler struct {
	service *application.ReceiptService
}

func NewReceiptHandler(service *application.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{service: service}
}

// Create endpoint POST /receipts
func (h *ReceiptHandler) Create(c *gin.Context) {
	var req struct {
		WarehouseCode string        `json:"warehouseCode" binding:"required"`
		DeclarationID *uuid.UUID    `json:"declarationId"`
		Lines         []domain.Line `json:"lines" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	r, err := h.service.Create(c.Request.Context(), req.WarehouseCode, req.DeclarationID, req.Lines)
	if err != nil {
		sendReceiptError(c, err)
		return
	}
	c.JSON(http.StatusCreated, domain.NewReceiptView(r))
}

// Get endpoint GET /receipts/:id
func (h *ReceiptHandler) Get(c *gin.Context) {
	id, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	view, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		sendReceiptError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func sendReceiptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrReceiptNotFound):
		utils.SendNotFound(c, err.Error())
	case errors.Is(err, domain.ErrInvalidReceipt):
		utils.SendBadRequest(c, err.Error())
	default:
		utils.SendInternalServerError(c, err.Error())
	}
}
