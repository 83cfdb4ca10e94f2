package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the HTTP routes. metrics may be nil.
func NewRouter(h *TransactionHandler, apiKeys []string, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())

	router.GET("/healthz", h.Health)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := router.Group("/api/v1")
	v1.POST("/callbacks/mpesa", h.HandleCallback)

	api := v1.Group("", APIKeyAuth(apiKeys))
	{
		api.POST("/c2b/payments", h.CreateC2BPayment)
		api.POST("/b2c/payments", h.CreateB2CPayment)
		api.POST("/b2b/payments", h.CreateB2BPayment)
		api.POST("/queries/transaction-status", h.QueryTransactionStatus)
		api.POST("/queries/customer-name", h.QueryCustomerName)

		api.GET("/transactions", h.ListTransactions)
		api.GET("/transactions/:id", h.GetTransaction)
		api.POST("/transactions/:id/reversal", h.ReverseTransaction)

		api.GET("/monitoring/audit", h.AuditStats)
	}

	return router
}
