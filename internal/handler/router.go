package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"guardians-shop/internal/database"
	"guardians-shop/internal/metrics"
	"guardians-shop/internal/service"
)

// PlayerCounter reports how many players are on the game server.
type PlayerCounter func(ctx context.Context) (int, error)

type Deps struct {
	Orders         service.OrderService
	Players        PlayerCounter
	MaxPlayers     int
	DB             database.Service
	Gatherer       prometheus.Gatherer
	HTTPMetrics    *metrics.HTTPMetrics
	AllowedOrigins []string
	Logger         *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger, d.HTTPMetrics), cors.New(corsConfig(d.AllowedOrigins)))

	webhooks := &webhookHandler{orders: d.Orders, log: d.Logger}
	r.POST("/webhooks/mercadopago", webhooks.handle)
	r.POST("/webhook", webhooks.handle)

	orders := &orderHandler{orders: d.Orders, players: d.Players, maxPlayers: d.MaxPlayers, log: d.Logger}
	api := r.Group("/api")
	{
		api.POST("/orders", orders.create)
		api.GET("/orders/:paymentId", orders.getByPayment)
		api.GET("/players-online", orders.playersOnline)
	}

	r.GET("/health", func(c *gin.Context) {
		if d.DB == nil {
			c.JSON(http.StatusOK, gin.H{"status": "up", "database": "memory"})
			return
		}
		stats := d.DB.Health(c.Request.Context())
		code := http.StatusOK
		if stats["status"] != "up" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, stats)
	})

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func requestLogger(log *slog.Logger, m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		took := time.Since(start)

		if m != nil {
			m.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(status), took)
		}
		log.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("took", took),
		)
	}
}
