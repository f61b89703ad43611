package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func buildRouterForTest(t *testing.T, cfg Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	limiter, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = limiter.Close() })

	router := gin.New()
	router.POST("/api/auth", limiter.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "requested"})
	})
	router.GET("/api/references", func(c *gin.Context) {
		c.JSON(http.StatusOK, []string{})
	})
	return router
}

func doRequest(router *gin.Engine, method, path, ip string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(method, path, http.NoBody)
	request.RemoteAddr = ip + ":40000"
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestMemoryLimiterBlocksAfterLimit(t *testing.T) {
	var limited []string
	router := buildRouterForTest(t, Config{
		Limit:     2,
		Period:    time.Minute,
		OnLimited: func(route string) { limited = append(limited, route) },
	})

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/auth", "10.0.0.1").Code)
	second := doRequest(router, http.MethodPost, "/api/auth", "10.0.0.1")
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "2", second.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	blocked := doRequest(router, http.MethodPost, "/api/auth", "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	require.JSONEq(t, `{"error":"rate_limited"}`, blocked.Body.String())
	require.Equal(t, []string{"/api/auth"}, limited)

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/auth", "10.0.0.2").Code, "other clients keep their own budget")
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/references", "10.0.0.1").Code, "unthrottled routes stay open")
}

func TestMemoryLimiterRefillsAfterPeriod(t *testing.T) {
	router := buildRouterForTest(t, Config{Limit: 1, Period: 100 * time.Millisecond})

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/auth", "10.0.0.3").Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(router, http.MethodPost, "/api/auth", "10.0.0.3").Code)
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/auth", "10.0.0.3").Code)
}

func TestRedisLimiterSharesCounters(t *testing.T) {
	server := miniredis.RunT(t)
	cfg := Config{Limit: 1, Period: time.Minute, RedisAddr: server.Addr(), Prefix: "test:ratelimit:"}

	first := buildRouterForTest(t, cfg)
	second := buildRouterForTest(t, cfg)

	require.Equal(t, http.StatusOK, doRequest(first, http.MethodPost, "/api/auth", "10.0.0.4").Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(second, http.MethodPost, "/api/auth", "10.0.0.4").Code)

	keys := server.Keys()
	require.NotEmpty(t, keys)
	require.Contains(t, keys[0], "test:ratelimit:")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Limit: 0})
	require.Error(t, err)

	_, err = New(context.Background(), Config{Limit: 1, RedisAddr: "127.0.0.1:1"})
	require.Error(t, err)
}
