package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service.
// All Record methods are safe on a nil *Metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// verification
	CodesIssued       prometheus.Counter
	SessionsOpened    prometheus.Counter
	VerificationTotal *prometheus.CounterVec // flow, result
	TokensMinted      prometheus.Counter

	// whitelist
	WhitelistSubmissions *prometheus.CounterVec // status
	UpstreamDuration     prometheus.Histogram

	// side channels
	NotificationsTotal *prometheus.CounterVec // result
	InboundMailTotal   *prometheus.CounterVec // result
	RateLimitBlocks    *prometheus.CounterVec // limiter
}

// NewMetrics registers the collectors on reg. Passing nil uses the default
// registry; tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg *prometheus.Registry) *Metrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	return &Metrics{
		gatherer: gatherer,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pittmc_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pittmc_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		CodesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "pittmc_verification_codes_issued_total",
			Help: "Verification codes generated and emailed",
		}),
		SessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "pittmc_verification_sessions_opened_total",
			Help: "Out-of-band verification sessions opened",
		}),
		VerificationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pittmc_verification_attempts_total",
				Help: "Verification attempts by flow and result",
			},
			[]string{"flow", "result"},
		),
		TokensMinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pittmc_tokens_minted_total",
			Help: "Bearer tokens issued",
		}),

		WhitelistSubmissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pittmc_whitelist_submissions_total",
				Help: "Whitelist submissions by outcome status",
			},
			[]string{"status"},
		),
		UpstreamDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pittmc_whitelist_upstream_duration_seconds",
			Help:    "Latency of the upstream whitelist API",
			Buckets: prometheus.DefBuckets,
		}),

		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pittmc_notifications_total",
				Help: "Discord notifications by result",
			},
			[]string{"result"},
		),
		InboundMailTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pittmc_inbound_mail_total",
				Help: "Inbound verification mails by result",
			},
			[]string{"result"},
		),
		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pittmc_rate_limit_blocks_total",
				Help: "Requests rejected by a rate limiter",
			},
			[]string{"limiter"},
		),
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *Metrics) RecordCodeIssued() {
	if m == nil {
		return
	}
	m.CodesIssued.Inc()
}

func (m *Metrics) RecordSessionOpened() {
	if m == nil {
		return
	}
	m.SessionsOpened.Inc()
}

// RecordVerification counts an attempt; flow is "code", "inbound" or "poll".
func (m *Metrics) RecordVerification(flow, result string) {
	if m == nil {
		return
	}
	m.VerificationTotal.WithLabelValues(flow, result).Inc()
}

func (m *Metrics) RecordTokenMinted() {
	if m == nil {
		return
	}
	m.TokensMinted.Inc()
}

func (m *Metrics) RecordWhitelistSubmission(status string) {
	if m == nil {
		return
	}
	m.WhitelistSubmissions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveUpstream(d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordNotification(result string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordInboundMail(result string) {
	if m == nil {
		return
	}
	m.InboundMailTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRateLimitBlock(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitBlocks.WithLabelValues(limiter).Inc()
}

// HTTPHandler serves the registry in the Prometheus text format.
func (m *Metrics) HTTPHandler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
