package handlers

import (
	"net/http"
	"time"

	"todo-api/internal/middleware"
	"todo-api/internal/monitoring"
	"todo-api/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	AllowedOrigins []string
	// RequestsPerMinute of zero disables rate limiting.
	RequestsPerMinute int
	Burst             int
	AccessLog         bool
}

// NewRouter wires the task API and the operational endpoints. Every task
// route answers with and without a trailing slash.
func NewRouter(taskService services.TaskService, registry *monitoring.Registry, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.HandleMethodNotAllowed = true

	router.Use(middleware.RequestID())
	if cfg.AccessLog {
		router.Use(gin.Logger())
	}
	router.Use(middleware.RecoveryWithLog())
	router.Use(registry.Middleware())

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"detail": "Method Not Allowed"})
	})

	router.GET("/healthz", registry.HealthHandler())
	router.GET("/readyz", registry.ReadinessHandler())
	router.GET("/livez", registry.LivenessHandler())
	router.GET("/metrics", registry.MetricsHandler())

	v1 := router.Group("/v1")
	if cfg.RequestsPerMinute > 0 {
		limiter := middleware.NewRateLimiter(float64(cfg.RequestsPerMinute)/60.0, cfg.Burst)
		v1.Use(limiter.Middleware())
	}

	h := NewTaskHandler(taskService)
	both := func(method, path string, handler gin.HandlerFunc) {
		v1.Handle(method, path, handler)
		v1.Handle(method, path+"/", handler)
	}
	both(http.MethodGet, "/tasks", h.ListTasks)
	both(http.MethodPost, "/tasks", h.CreateTask)
	both(http.MethodGet, "/tasks/:id", h.GetTask)
	both(http.MethodPatch, "/tasks/:id", h.UpdateTask)
	both(http.MethodDelete, "/tasks/:id", h.DeleteTask)

	return router
}
