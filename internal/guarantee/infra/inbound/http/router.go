package http

import "github.com/gin-gonic/gin"

func RegisterGuaranteeRoutes(r gin.IRouter, handler *GuaranteeHandler) {
	guarantees := r.Group("/guarantees")
	{
		guarantees.POST("", handler.OpenAccount)
		guarantees.GET("/:id", handler.GetAccount)
		guarantees.GET("/:id/entries", handler.ListEntries)
		guarantees.POST("/:id/debits", handler.Debit)
		guarantees.POST("/:id/credits", handler.Credit)
		guarantees.DELETE("/:id/entries/:entryId", handler.VoidEntry)
	}
}
