package http

import "github.com/gin-gonic/gin"

func RegisterProductionRoutes(r gin.IRouter, handler *ProductionHandler) {
	orders := r.Group("/production-orders")
	{
		orders.POST("", handler.Create)
		orders.GET("/:id", handler.Get)
		orders.POST("/:id/completion", handler.Complete)
	}
}
