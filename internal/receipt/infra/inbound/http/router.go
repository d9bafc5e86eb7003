package http

import "github.com/gin-gonic/gin"

func RegisterReceiptRoutes(r gin.IRouter, handler *ReceiptHandler) {
	receipts := r.Group("/receipts")
	{
		receipts.POST("", handler.Create)
		receipts.GET("/:id", handler.Get)
	}
}
