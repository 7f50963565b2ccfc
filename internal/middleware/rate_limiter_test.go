package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gestorpos/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	l := middleware.NewRateLimiter(2, time.Minute)

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
	ok, windowEnd := l.Allow("a")
	assert.False(t, ok)
	assert.True(t, windowEnd.After(time.Now()))

	ok, _ = l.Allow("b")
	assert.True(t, ok, "keys are counted separately")
}

func TestRateLimiter_HandlerKeysByOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := middleware.NewRateLimiter(1, time.Minute)
	r := gin.New()
	r.Use(middleware.JWTAuth(testSecret), l.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	store1 := signToken(t, "store-1", "cashier", time.Hour)
	store2 := signToken(t, "store-2", "cashier", time.Hour)

	assert.Equal(t, http.StatusOK, get(r, "/x", store1).Code)
	w := get(r, "/x", store1)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, get(r, "/x", store2).Code)
}

func TestCORS_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CORS([]string{"https://pos.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://pos.example.com")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://pos.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}
