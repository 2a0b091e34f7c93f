package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
)

func newRateLimitedRouter(client *authDomain.Client, rps float64, burst int) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if client != nil {
			c.Request = c.Request.WithContext(WithClient(c.Request.Context(), client))
		}
		c.Next()
	})
	router.Use(RateLimitMiddleware(rps, burst, createTestLogger()))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("AllowsWithinBurst", func(t *testing.T) {
		router := newRateLimitedRouter(&authDomain.Client{ID: uuid.Must(uuid.NewV7())}, 1, 5)

		for range 5 {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})

	t.Run("BlocksAfterBurst", func(t *testing.T) {
		router := newRateLimitedRouter(&authDomain.Client{ID: uuid.Must(uuid.NewV7())}, 0.1, 2)

		for range 2 {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
	})

	t.Run("ClientsAreIndependent", func(t *testing.T) {
		store := newLimiterStore(0.1, 1)
		first := store.getLimiter("a")
		assert.True(t, first.Allow())
		assert.False(t, first.Allow())
		assert.True(t, store.getLimiter("b").Allow())
		assert.Same(t, first, store.getLimiter("a"))
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		router := newRateLimitedRouter(nil, 10, 10)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestTokenRateLimitMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(TokenRateLimitMiddleware(0.1, 1, createTestLogger()))
	router.POST("/v1/token", func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func(ip string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/token", nil)
		req.RemoteAddr = ip + ":12345"
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusCreated, send("192.0.2.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.1"))
	assert.Equal(t, http.StatusCreated, send("192.0.2.2"))
}

func TestLimiterStore_EvictIdle(t *testing.T) {
	store := &limiterStore{rps: 1, burst: 1}
	store.getLimiter("stale")

	store.evictIdle(time.Now().Add(time.Minute))

	_, ok := store.limiters.Load("stale")
	assert.False(t, ok)
}
