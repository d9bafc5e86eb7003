package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/customsflow/internal/declaration/application"
	"github.com/davicafu/customsflow/internal/declaration/domain"
	guaranteeDomain "github.com/davicafu/customsflow/internal/guarantee/domain"
	"github.com/davicafu/customsflow/pkg/utils"
)

type DeclarationHandler struct {
	service *application.DeclarationService
}

func NewDeclarationHandler(service *application.DeclarationService) *DeclarationHandler {
	return &DeclarationHandler{service: service}
}

// Validate endpoint POST /declarations/validate
func (h *DeclarationHandler) Validate(c *gin.Context) {
	var draft domain.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, h.service.ValidateDraft(c.Request.Context(), draft))
}

// Create endpoint POST /declarations
// Una declaración inválida responde 422 con el resultado completo de la validación.
func (h *DeclarationHandler) Create(c *gin.Context) {
	var draft domain.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	decl, result, err := h.service.Create(c.Request.Context(), draft)
	if errors.Is(err, domain.ErrDeclarationInvalid) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": gin.H{"message": err.Error()}, "validation": result})
		return
	}
	if err != nil {
		sendDeclarationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"declaration": domain.NewDeclarationView(decl), "validation": result})
}

// Get endpoint GET /declarations/:id
func (h *DeclarationHandler) Get(c *gin.Context) {
	id, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	view, err := h.service.GetView(c.Request.Context(), id)
	if err != nil {
		sendDeclarationError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Clear endpoint POST /declarations/:id/clearance
func (h *DeclarationHandler) Clear(c *gin.Context) {
	id, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		MRN string `json:"mrn" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	decl, err := h.service.Clear(c.Request.Context(), id, req.MRN)
	if err != nil {
		sendDeclarationError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.NewDeclarationView(decl))
}

func sendDeclarationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrDeclarationNotFound), errors.Is(err, guaranteeDomain.ErrAccountNotFound):
		utils.SendNotFound(c, err.Error())
	case errors.Is(err, domain.ErrInvalidMRN):
		utils.SendBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrAlreadyCleared), errors.Is(err, guaranteeDomain.ErrGuaranteeLimitExceeded):
		utils.SendConflict(c, err.Error())
	default:
		utils.SendInternalServerError(c, err.Error())
	}
}
