// internal/app/router.go
package app

import (
	authHandler "dedupe-service/internal/handlers/auth"
	customerHandler "dedupe-service/internal/handlers/customer"
	dedupeHandler "dedupe-service/internal/handlers/dedupe"
	wsHandler "dedupe-service/internal/handlers/websocket"
	"dedupe-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler     *authHandler.AuthHandler
	DedupeHandler   *dedupeHandler.DedupeHandler
	CustomerHandler *customerHandler.CustomerHandler
	WSHandler       *wsHandler.WebSocketHandler
	AuthMiddleware  *middleware.AuthMiddleware

	// Metrics is served on /metrics when set.
	Metrics prometheus.Gatherer
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Metrics ====================
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Metrics, promhttp.HandlerOpts{})))
	}

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)
	api.GET("/ws/stats", append(h.AuthMiddleware.AdminOnly(), h.WSHandler.GetStats)...)

	// ==================== Operator Session ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.GET("/me", h.AuthHandler.GetMe)
		authProtected.POST("/logout", h.AuthHandler.Logout)
	}

	authAdmin := api.Group("/auth")
	authAdmin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		authAdmin.POST("/revoke", h.AuthHandler.RevokeToken)
	}

	// ==================== Duplicate Detection ====================
	scan := api.Group("")
	scan.Use(h.AuthMiddleware.Auth())
	{
		scan.GET("/find-duplicates", h.DedupeHandler.FindDuplicates)
	}

	// ==================== Merging ====================
	merge := api.Group("/merge-duplicates")
	merge.Use(h.AuthMiddleware.OperatorOnly()...)
	{
		merge.POST("", h.DedupeHandler.Merge)
		merge.POST("/batch", h.DedupeHandler.MergeBatch)
	}

	// ==================== Customer Records ====================
	customers := api.Group("/customers")
	customers.Use(h.AuthMiddleware.Auth())
	{
		customers.GET("", h.CustomerHandler.ListCustomers)
		customers.GET("/search", h.CustomerHandler.SearchCustomers)
		customers.GET("/stats", h.CustomerHandler.GetStats)
		customers.GET("/:id", h.CustomerHandler.GetCustomer)
	}

	customersWrite := api.Group("/customers")
	customersWrite.Use(h.AuthMiddleware.OperatorOnly()...)
	{
		customersWrite.POST("/bulk", h.CustomerHandler.BulkCreate)
	}

	customersAdmin := api.Group("/customers")
	customersAdmin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		customersAdmin.DELETE("", h.CustomerHandler.ClearAll)
	}

	logger.Info("routes registered", zap.Int("count", len(r.Routes())))
}
