package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordCodeIssued()
	m.RecordCodeIssued()
	m.RecordVerification("code", "success")
	m.RecordWhitelistSubmission("success")
	m.RecordHTTPRequest("POST", "/api/verify-code", "200", 10*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, "pittmc_verification_codes_issued_total 2")
	assert.Contains(t, body, `pittmc_verification_attempts_total{flow="code",result="success"} 1`)
	assert.Contains(t, body, `pittmc_whitelist_submissions_total{status="success"} 1`)
	assert.Contains(t, body, `pittmc_http_requests_total{endpoint="/api/verify-code",method="POST",status_code="200"} 1`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCodeIssued()
		m.RecordSessionOpened()
		m.RecordVerification("poll", "pending")
		m.RecordTokenMinted()
		m.RecordWhitelistSubmission("error")
		m.ObserveUpstream(time.Second)
		m.RecordNotification("sent")
		m.RecordInboundMail("accepted")
		m.RecordRateLimitBlock("api")
		m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordTokenMinted()

	assert.Contains(t, scrape(t, m), "pittmc_tokens_minted_total 1")
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
