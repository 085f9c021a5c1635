package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ticketing/internal/shared/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:          true,
		WindowDuration:   time.Minute,
		DefaultRequests:  60,
		PublicRequests:   120,
		CheckoutRequests: 10,
		BuyerRequests:    30,
		WebhookRequests:  1000,
		AdminRequests:    200,
		HealthRequests:   300,
	}
}

func TestGetRateLimitType(t *testing.T) {
	tests := []struct {
		path string
		want RateLimitType
	}{
		{"/health", RateLimitTypeHealth},
		{"/api/v1/checkout", RateLimitTypeCheckout},
		{"/api/v1/reservations/:id", RateLimitTypeBuyer},
		{"/api/v1/reservations/:id/cancel", RateLimitTypeBuyer},
		{"/api/v1/webhooks/stripe", RateLimitTypeWebhook},
		{"/api/v1/admin/reconciliation-issues", RateLimitTypeAdmin},
		{"/api/v1/events/:id/offers", RateLimitTypePublic},
		{"/api/v1/unknown", RateLimitTypeDefault},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, getRateLimitType(tt.path))
		})
	}
}

func TestIsAllowed_DisabledAndWhitelistedSkipRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	result, err := NewRateLimiter(nil, cfg).IsAllowed(context.Background(), "10.0.0.1", RateLimitTypeCheckout)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 10, result.Limit)

	cfg = testConfig()
	cfg.WhitelistedIPs = []string{"10.0.0.2"}
	result, err = NewRateLimiter(nil, cfg).IsAllowed(context.Background(), "10.0.0.2", RateLimitTypeWebhook)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1000, result.Limit)
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "ticketing:ratelimit:checkout:10.0.0.1", buildKey("10.0.0.1", RateLimitTypeCheckout))
}

func TestMiddleware_SetsHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.Enabled = false

	router := gin.New()
	router.Use(Middleware(NewRateLimiter(nil, cfg)))
	router.POST("/api/v1/checkout", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
}

func TestGetClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.1:5555", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.1:5555", "198.51.100.7"},
		{"bogus forwarded falls through", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.3:5555", "10.0.0.3"},
		{"remote addr", nil, "192.0.2.4:1234", "192.0.2.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Request.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(c))
		})
	}
}
