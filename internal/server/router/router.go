package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/karimdiab/saydaly/internal/domain/models"
	"github.com/karimdiab/saydaly/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares. Everything
// under /api requires a valid bearer token; withdrawals additionally require
// the master role.
func New(handler *handlers.POSHandler, jwtSecret string, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(Authenticate(jwtSecret, logger))

	api.POST("/checkout", handler.Checkout)
	api.POST("/returns", handler.Return)
	api.POST("/restock", handler.Restock)
	api.PUT("/products/:id", handler.AdjustProduct)
	api.DELETE("/products/:id", handler.DeleteProduct)

	api.POST("/debts", handler.RegisterDebt)
	api.POST("/debts/pay", handler.SettleDebt)
	api.POST("/sadaqah/settle", handler.SettleSadaqah)

	api.POST("/withdrawals", RequireRole(models.RoleMaster), handler.Withdraw)

	api.GET("/reports/shortages", handler.ShortageReport)
	api.GET("/reports/expiry", handler.ExpiryReport)
	api.GET("/reports/companies/:name", handler.CompanyTrend)
	api.GET("/reports/daily", handler.DailyRollup)

	api.GET("/settings/low-stock-threshold", handler.GetThreshold)
	api.PUT("/settings/low-stock-threshold", handler.SetThreshold)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
