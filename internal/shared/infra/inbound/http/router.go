package http

import "github.com/gin-gonic/gin"

func RegisterOpsRoutes(r gin.IRouter, handler *OpsHandler) {
	r.GET("/health", handler.Health)
	r.GET("/health/live", handler.Live)
	r.GET("/metrics", handler.Metrics())
	r.GET("/analytics/events", handler.AnalyticsEvents)

	outbox := r.Group("/outbox")
	{
		outbox.GET("/summary", handler.OutboxSummary)
		outbox.GET("/failed", handler.OutboxFailed)
		outbox.POST("/:id/requeue", handler.Requeue)
	}
}
