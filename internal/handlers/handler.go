package handlers

import (
	"net/http"

	"touch_thermostat/internal/logger"
	"touch_thermostat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "touch_thermostat/docs"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  http.Handler
}

// Option customizes a Handler.
type Option func(*Handler)

// WithMetrics serves the gatherer's metrics on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.metrics = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{services: services, log: log}
	for _, o := range opts {
		o(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// State stream over a WebSocket upgrade on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerThermostatRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerThermostatRoutes(api *gin.RouterGroup) {
	th := api.Group("/thermostat")
	{
		th.GET("/state", h.getState)
		th.GET("/capabilities", h.getCapabilities)
		th.GET("/stats", h.getStats)
		th.POST("/refresh", h.refresh)
		// Body example: {"temperature":22}
		th.POST("/temperature", h.setTemperature)
		// Body example: {"mode":"heat"}
		th.POST("/mode", h.setMode)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
