// README: HTTP surface; order events from the backend, Telegram webhook, health, metrics and dispatch stats.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"driverbot/internal/http/handlers"
	"driverbot/internal/http/middleware"
)

// DeliveryStore is satisfied by *dispatch.AuditStore.
type DeliveryStore interface {
	handlers.DeliveryLog
	handlers.DeliveryStats
}

type ServerDeps struct {
	Dispatcher handlers.OrderDispatcher
	Queue      handlers.QueueState
	// Deliveries is optional; stats then only cover the queue.
	Deliveries DeliveryStore
	// Dispatches adds the fan-out time to the delivery log; optional.
	Dispatches handlers.DispatchTimes
	// Updates is optional; without it the webhook route is not mounted.
	Updates       handlers.UpdateHandler
	Gatherer      prometheus.Gatherer
	APIKey        string
	WebhookSecret string
	Logger        *slog.Logger
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{deps: deps}
}

func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logging(s.deps.Logger), middleware.Recovery(s.deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if s.deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api", middleware.SecretHeader(middleware.HeaderAPIKey, s.deps.APIKey))
	orderHandler := handlers.NewOrderHandler(s.deps.Dispatcher, s.deps.Deliveries, s.deps.Dispatches)
	api.POST("/orders/events", orderHandler.Event)
	api.GET("/orders/:id/deliveries", orderHandler.Deliveries)

	dispatchHandler := handlers.NewDispatchHandler(s.deps.Queue, s.deps.Deliveries)
	api.GET("/dispatch/stats", dispatchHandler.Stats)

	if s.deps.Updates != nil {
		tg := handlers.NewTelegramHandler(s.deps.Updates)
		r.POST("/telegram/webhook", middleware.SecretHeader(middleware.HeaderTelegramSecret, s.deps.WebhookSecret), tg.Webhook)
	}
	return r
}
