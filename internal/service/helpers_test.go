package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"pittmc/backend/internal/auth/jwt"
	"pittmc/backend/internal/config"
	"pittmc/backend/internal/domain"
	mock_mailer "pittmc/backend/internal/mailer/mock"
	"pittmc/backend/internal/storage/memory"
	"pittmc/backend/internal/whitelist"
)

const testDomain = "pitt.edu"

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingNotifier keeps every event it receives.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev domain.ProgressEvent) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []domain.ProgressEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.ProgressEvent(nil), n.events...)
}

func (n *recordingNotifier) steps() []domain.WhitelistStep {
	var out []domain.WhitelistStep
	for _, ev := range n.all() {
		out = append(out, ev.Step)
	}
	return out
}

// flakyKV injects failures into an otherwise working store.
type flakyKV struct {
	*memory.Store
	putErr  error
	pingErr error
}

func (f *flakyKV) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Store.Put(ctx, key, value, ttl)
}

func (f *flakyKV) Ping(ctx context.Context) error {
	return f.pingErr
}

type fakeArchive struct {
	mu      sync.Mutex
	records []domain.AuditRecord
	err     error
}

func (a *fakeArchive) Record(_ context.Context, rec domain.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.records = append(a.records, rec)
	return nil
}

type verificationFixture struct {
	store    *memory.Store
	tokens   *jwt.Manager
	mailer   *mock_mailer.Sender
	notifier *recordingNotifier
	svc      *VerificationService
}

func newVerificationFixture(t *testing.T) *verificationFixture {
	t.Helper()
	store := memory.NewStore()
	store.SetClock(func() time.Time { return testNow })

	f := &verificationFixture{
		store:    store,
		tokens:   jwt.NewManager(store, 0, 0),
		mailer:   new(mock_mailer.Sender),
		notifier: &recordingNotifier{},
	}
	f.svc = NewVerificationService(config.VerificationConfig{
		Domain:         testDomain,
		InboundAddress: "verify@pittmc.com",
	}, VerificationDeps{
		KV:       store,
		Tokens:   f.tokens,
		Mailer:   f.mailer,
		Notifier: f.notifier,
	})
	return f
}

func (f *verificationFixture) expectMail() {
	f.mailer.On("Send", mock.Anything, mock.AnythingOfType("mailer.Message")).Return(nil)
}

func (f *verificationFixture) storedCode(t *testing.T, email string) string {
	t.Helper()
	code, err := f.store.Get(context.Background(), domain.CodeKey(email))
	if err != nil {
		t.Fatalf("no code stored for %s: %v", email, err)
	}
	return code
}

// upstreamRecorder fakes the whitelist API.
type upstreamRecorder struct {
	mu       sync.Mutex
	requests []map[string]string
	status   int
	body     string
}

func newUpstreamServer(t *testing.T, status int, body string) (*upstreamRecorder, *whitelist.Client) {
	t.Helper()
	rec := &upstreamRecorder{status: status, body: body}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		rec.mu.Lock()
		rec.requests = append(rec.requests, payload)
		rec.mu.Unlock()
		w.WriteHeader(rec.status)
		_, _ = w.Write([]byte(rec.body))
	}))
	t.Cleanup(srv.Close)

	client := whitelist.NewClient(config.WhitelistConfig{
		BaseURL:  srv.URL,
		Route:    "/api/whitelist",
		Username: "svc",
		Password: "secret",
		Timeout:  time.Second,
	}, nil)
	return rec, client
}

func (u *upstreamRecorder) calls() []map[string]string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]map[string]string(nil), u.requests...)
}

var errBoom = errors.New("boom")
