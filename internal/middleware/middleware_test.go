package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"pittmc/backend/internal/monitoring"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.POST("/echo", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		c.String(http.StatusOK, string(body))
	})
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r
}

func do(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSecurityHeaders(t *testing.T) {
	rec := do(newEngine(SecurityHeaders()), http.MethodPost, "/echo", "x", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestBodySizeLimit(t *testing.T) {
	r := newEngine(BodySizeLimit(8))

	rec := do(r, http.MethodPost, "/echo", "small", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "8", rec.Header().Get("X-Max-Body-Size"))

	rec = do(r, http.MethodPost, "/echo", "this body is too large", nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newEngine(RequestLogger(zap.New(core)))

	do(r, http.MethodPost, "/echo", "x", nil)
	do(r, http.MethodGet, "/fail", "", nil)
	do(r, http.MethodGet, "/missing", "", nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, zap.WarnLevel, entries[2].Level)
	assert.Equal(t, "/echo", entries[0].ContextMap()["path"])
}

func TestRateLimiter(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	rl := NewRateLimiter(1, 2, metrics)
	r := newEngine(rl.Limit())

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/echo", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/echo", "", nil).Code)
	rec := do(r, http.MethodPost, "/echo", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	req.RemoteAddr = "198.51.100.7:999"
	other := httptest.NewRecorder()
	r.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRateLimiter_Sweep(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(1, 1, nil)
	rl.now = func() time.Time { return now }
	rl.get("a")
	rl.get("b")

	now = now.Add(limiterIdleTTL / 2)
	rl.get("b")
	now = now.Add(limiterIdleTTL/2 + time.Second)

	assert.Equal(t, 1, rl.Sweep())
	assert.Len(t, rl.limiters, 1)
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := newEngine(NewRateLimiter(0, 0, nil).Limit())
	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/echo", "", nil).Code)
	}
}

func TestRequireWebhookSecret(t *testing.T) {
	r := newEngine(RequireWebhookSecret("s3cret"))
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/echo", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/echo", "", map[string]string{WebhookSecretHeader: "nope"}).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/echo", "", map[string]string{WebhookSecretHeader: "s3cret"}).Code)

	open := newEngine(RequireWebhookSecret(""))
	assert.Equal(t, http.StatusOK, do(open, http.MethodPost, "/echo", "", nil).Code)
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	r := newEngine(HTTPMetrics(metrics))
	do(r, http.MethodPost, "/echo", "x", nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if strings.HasSuffix(f.GetName(), "http_requests_total") {
			found = true
			require.NotEmpty(t, f.GetMetric())
			assert.Equal(t, float64(1), f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}
