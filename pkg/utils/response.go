package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse define la estructura estándar para las respuestas de error.
type ErrorResponse struct {
	Message string `json:"message"`
}

// SendSuccess envía una respuesta exitosa con un payload de datos.
func SendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"data": data,
	})
}

// SendError envía una respuesta de error con un formato estandarizado.
func SendError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error": ErrorResponse{
			Message: message,
		},
	})
}

// --- Helpers específicos para errores comunes ---

func SendBadRequest(c *gin.Context, message string) {
	SendError(c, http.StatusBadRequest, message)
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, message)
}

func SendConflict(c *gin.Context, message string) {
	SendError(c, http.StatusConflict, message)
}

func SendUnprocessable(c *gin.Context, message string) {
	SendError(c, http.StatusUnprocessableEntity, message)
}

func SendInternalServerError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, message)
}

// ParseUUIDParam lee un parámetro de ruta como UUID. Si no es válido responde 400 y devuelve false.
func ParseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		SendBadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
