package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"pittmc/backend/internal/storage/memory"
)

type downKV struct{ *memory.Store }

func (downKV) Ping(context.Context) error { return errors.New("connection refused") }

type fakeArchive struct{ err error }

func (a fakeArchive) Health(context.Context) error { return a.err }

func status(h http.Handler, path string) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

func TestChecker_Healthy(t *testing.T) {
	c := NewChecker(memory.NewStore(), fakeArchive{}, nil)

	assert.Equal(t, http.StatusOK, status(c.Handler(), "/live"))
	assert.Equal(t, http.StatusOK, status(c.Handler(), "/ready"))

	report, ok := c.Report()
	assert.True(t, ok)
	assert.Equal(t, "OK", report["kv"])
	assert.Equal(t, "OK", report["audit_archive"])
	assert.NotEmpty(t, report["timestamp"])
}

func TestChecker_KVDown(t *testing.T) {
	c := NewChecker(downKV{memory.NewStore()}, nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, status(c.Handler(), "/live"))

	report, ok := c.Report()
	assert.False(t, ok)
	assert.Equal(t, "UNAVAILABLE", report["kv"])
	assert.NotContains(t, report, "audit_archive")
}

func TestChecker_ArchiveDownOnlyAffectsReadiness(t *testing.T) {
	c := NewChecker(memory.NewStore(), fakeArchive{err: errors.New("db gone")}, nil)

	assert.Equal(t, http.StatusOK, status(c.Handler(), "/live"))
	assert.Equal(t, http.StatusServiceUnavailable, status(c.Handler(), "/ready"))

	_, ok := c.Report()
	assert.False(t, ok)
}
