package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type RequestStats struct {
	RequestCount   int64            `json:"request_count"`
	AvgDurationMs  float64          `json:"avg_request_duration_ms"`
	ActiveRequests int64            `json:"active_requests"`
	ErrorCount     int64            `json:"error_count"`
	StatusCodes    map[int]int64    `json:"status_codes"`
	Endpoints      map[string]int64 `json:"endpoint_calls"`
	LastRequest    time.Time        `json:"last_request"`
}

type HealthCheck struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"last_run"`
}

type HealthCheckFunc func(ctx context.Context) error

// Registry collects request metrics and health checks for one server.
type Registry struct {
	mu            sync.Mutex
	stats         RequestStats
	totalDuration time.Duration
	startTime     time.Time

	checksMu sync.RWMutex
	checks   map[string]HealthCheckFunc
	sources  map[string]func() interface{}
	timeout  time.Duration
}

func NewRegistry() *Registry {
	return &Registry{
		stats: RequestStats{
			StatusCodes: make(map[int]int64),
			Endpoints:   make(map[string]int64),
		},
		startTime: time.Now(),
		checks:    make(map[string]HealthCheckFunc),
		sources:   make(map[string]func() interface{}),
		timeout:   5 * time.Second,
	}
}

func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		r.mu.Lock()
		r.stats.ActiveRequests++
		r.mu.Unlock()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		endpoint := c.Request.Method + " " + route

		r.mu.Lock()
		defer r.mu.Unlock()
		r.stats.RequestCount++
		r.stats.ActiveRequests--
		r.totalDuration += duration
		r.stats.AvgDurationMs = float64(r.totalDuration.Microseconds()) / 1000 / float64(r.stats.RequestCount)
		r.stats.LastRequest = time.Now()
		if statusCode >= 400 {
			r.stats.ErrorCount++
		}
		r.stats.StatusCodes[statusCode]++
		r.stats.Endpoints[endpoint]++
	}
}

func (r *Registry) Stats() RequestStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.stats
	out.StatusCodes = make(map[int]int64, len(r.stats.StatusCodes))
	for k, v := range r.stats.StatusCodes {
		out.StatusCodes[k] = v
	}
	out.Endpoints = make(map[string]int64, len(r.stats.Endpoints))
	for k, v := range r.stats.Endpoints {
		out.Endpoints[k] = v
	}
	return out
}

// RegisterHealthCheck adds a named check run on every health request.
func (r *Registry) RegisterHealthCheck(name string, fn HealthCheckFunc) {
	r.checksMu.Lock()
	defer r.checksMu.Unlock()
	r.checks[name] = fn
}

// RegisterSource exposes extra counters, such as cache hit rates, under
// name in the metrics document.
func (r *Registry) RegisterSource(name string, fn func() interface{}) {
	r.checksMu.Lock()
	defer r.checksMu.Unlock()
	r.sources[name] = fn
}

func (r *Registry) RunHealthChecks(ctx context.Context) map[string]HealthCheck {
	r.checksMu.RLock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	fns := make([]HealthCheckFunc, len(names))
	for i, name := range names {
		fns[i] = r.checks[name]
	}
	r.checksMu.RUnlock()

	results := make(map[string]HealthCheck, len(names))
	for i, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
		check := HealthCheck{Name: name, Status: "healthy", LastRun: time.Now()}
		if err := fns[i](checkCtx); err != nil {
			check.Status = "unhealthy"
			check.Message = err.Error()
		}
		cancel()
		results[name] = check
	}
	return results
}

func healthy(checks map[string]HealthCheck) bool {
	for _, check := range checks {
		if check.Status != "healthy" {
			return false
		}
	}
	return true
}

type SystemMetrics struct {
	Uptime         string      `json:"uptime"`
	MemoryUsage    MemoryStats `json:"memory"`
	GoroutineCount int         `json:"goroutine_count"`
	CPUCount       int         `json:"cpu_count"`
	GoVersion      string      `json:"go_version"`
}

type MemoryStats struct {
	Alloc      uint64 `json:"alloc_mb"`
	TotalAlloc uint64 `json:"total_alloc_mb"`
	Sys        uint64 `json:"sys_mb"`
	NumGC      uint32 `json:"num_gc"`
}

func (r *Registry) systemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		Uptime: time.Since(r.startTime).Round(time.Second).String(),
		MemoryUsage: MemoryStats{
			Alloc:      bToMb(m.Alloc),
			TotalAlloc: bToMb(m.TotalAlloc),
			Sys:        bToMb(m.Sys),
			NumGC:      m.NumGC,
		},
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

func (r *Registry) MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"application": r.Stats(),
			"system":      r.systemMetrics(),
			"timestamp":   time.Now().UTC(),
		}

		r.checksMu.RLock()
		for name, fn := range r.sources {
			response[name] = fn()
		}
		r.checksMu.RUnlock()

		c.JSON(http.StatusOK, response)
	}
}

func (r *Registry) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := r.RunHealthChecks(c.Request.Context())

		status, code := "healthy", http.StatusOK
		if !healthy(checks) {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"checks":    checks,
			"uptime":    time.Since(r.startTime).Round(time.Second).String(),
		})
	}
}

func (r *Registry) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if healthy(r.RunHealthChecks(c.Request.Context())) {
			c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": time.Now().UTC()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "timestamp": time.Now().UTC()})
	}
}

func (r *Registry) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now().UTC(),
			"uptime":    time.Since(r.startTime).Round(time.Second).String(),
		})
	}
}
