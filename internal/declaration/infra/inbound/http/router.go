package http

import "github.com/gin-gonic/gin"

func RegisterDeclarationRoutes(r gin.IRouter, handler *DeclarationHandler) {
	declarations := r.Group("/declarations")
	{
		declarations.POST("/validate", handler.Validate)
		declarations.POST("", handler.Create)
		declarations.GET("/:id", handler.Get)
		declarations.POST("/:id/clearance", handler.Clear)
	}
}
