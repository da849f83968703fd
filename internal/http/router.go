package api

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	intconfig "settlement/internal/config"
	h "settlement/internal/http/handlers"
	"settlement/internal/http/middleware"
	"settlement/internal/utils"
)

func NewRouter(env intconfig.Env, api h.API) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSOrigins()))

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.L().Warn("failed to set trusted proxies", zap.Error(err))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	base := r.Group("/api")
	{
		base.GET("/health", api.Health)
		base.GET("/db-check", api.DBCheck)

		secured := base.Group("", middleware.RateLimit(env.RateLimitPerMin), middleware.Auth(env.JWTSecret))

		bookings := secured.Group("/bookings")
		bookings.POST("/:id/payments", api.CreatePayment)
		bookings.GET("/:id/invoices", api.ListBookingInvoices)
		bookings.GET("/:id/receipts", api.ListBookingReceipts)

		transactions := secured.Group("/transactions")
		transactions.GET("", api.ListTransactions)
		transactions.GET("/:id", api.GetTransaction)
		transactions.POST("/:id/refunds", refundGuard(env), api.CreateRefund)

		invoices := secured.Group("/invoices")
		invoices.GET("/:id", api.GetInvoice)
		invoices.GET("/:id/pdf", api.GetInvoicePDF)

		receipts := secured.Group("/receipts")
		receipts.GET("/:id", api.GetReceipt)
		receipts.GET("/:id/pdf", api.GetReceiptPDF)
	}

	return r
}

// refundGuard restricts refunds to staff roles once tokens are verified.
func refundGuard(env intconfig.Env) gin.HandlerFunc {
	if env.JWTSecret == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RequireRoles("admin", "support")
}
