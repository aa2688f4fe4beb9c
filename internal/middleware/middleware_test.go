package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
)

func serve(router *gin.Engine, remote string, header map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())

	var seen string
	router.GET("/", func(c *gin.Context) {
		seen = RequestIDFrom(c)
		c.Status(http.StatusOK)
	})

	w := serve(router, "10.0.0.1:1234", nil)
	generated := w.Header().Get(RequestIDHeader)
	assert.Equal(t, seen, generated)
	_, err := uuid.FromString(generated)
	assert.NoError(t, err)

	w = serve(router, "10.0.0.1:1234", map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", seen)
}

func TestRateLimiter_PerClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, 2)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, "10.0.0.1:1", nil).Code)
	assert.Equal(t, http.StatusOK, serve(router, "10.0.0.1:2", nil).Code)

	w := serve(router, "10.0.0.1:3", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"detail":"Too many requests"}`, w.Body.String())
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(router, "10.0.0.2:1", nil).Code, "other clients keep their own bucket")

	clock = clock.Add(time.Second)
	assert.Equal(t, http.StatusOK, serve(router, "10.0.0.1:4", nil).Code)
}

func TestRateLimiter_SweepsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	rl.allow("a")
	rl.allow("b")
	assert.Len(t, rl.visitors, 2)

	clock = clock.Add(10 * time.Minute)
	rl.allow("c")
	assert.Len(t, rl.visitors, 1)
}
