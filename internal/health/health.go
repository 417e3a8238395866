package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"pittmc/backend/internal/storage"
)

const (
	checkTimeout      = 2 * time.Second
	maxGoroutines     = 10000
	statusOK          = "OK"
	statusUnavailable = "UNAVAILABLE"
)

// Pinger is anything that can report its own health.
type Pinger interface {
	Health(ctx context.Context) error
}

// Checker exposes liveness and readiness of the process and its stores.
type Checker struct {
	health  healthcheck.Handler
	kv      storage.KV
	archive Pinger
	log     *zap.Logger
	now     func() time.Time
}

// NewChecker registers the KV store as a liveness check and, when archive is
// non-nil, the SQL audit archive as a readiness check.
func NewChecker(kv storage.KV, archive Pinger, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Checker{
		health:  healthcheck.NewHandler(),
		kv:      kv,
		archive: archive,
		log:     log.Named("health"),
		now:     time.Now,
	}

	c.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(maxGoroutines))
	c.health.AddLivenessCheck("kv", healthcheck.Timeout(c.checkKV, checkTimeout))
	if archive != nil {
		c.health.AddReadinessCheck("audit_archive", healthcheck.Timeout(c.checkArchive, checkTimeout))
	}
	return c
}

func (c *Checker) checkKV() error {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	return c.kv.Ping(ctx)
}

func (c *Checker) checkArchive() error {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	return c.archive.Health(ctx)
}

// Handler serves /live and /ready.
func (c *Checker) Handler() http.Handler {
	return c.health
}

// LiveEndpoint reports liveness checks only.
func (c *Checker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	c.health.LiveEndpoint(w, r)
}

// ReadyEndpoint reports liveness and readiness checks.
func (c *Checker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	c.health.ReadyEndpoint(w, r)
}

// Report runs every check once and returns a status per component.
func (c *Checker) Report() (map[string]string, bool) {
	results := map[string]string{
		"timestamp": c.now().UTC().Format(time.RFC3339),
	}
	healthy := true

	if err := c.checkKV(); err != nil {
		c.log.Warn("kv health check failed", zap.Error(err))
		results["kv"] = statusUnavailable
		healthy = false
	} else {
		results["kv"] = statusOK
	}

	if c.archive != nil {
		if err := c.checkArchive(); err != nil {
			c.log.Warn("audit archive health check failed", zap.Error(err))
			results["audit_archive"] = statusUnavailable
			healthy = false
		} else {
			results["audit_archive"] = statusOK
		}
	}
	return results, healthy
}
