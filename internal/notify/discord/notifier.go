package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pittmc/backend/internal/domain"
	"pittmc/backend/internal/monitoring"
	"pittmc/backend/internal/pool"
	"pittmc/backend/internal/storage"
)

// Options configures a Notifier.
type Options struct {
	WebhookURL  string
	MinInterval time.Duration // spacing between webhook calls, default 1s
	Timeout     time.Duration
	Pool        *pool.WorkerPool // nil delivers synchronously
	Metrics     *monitoring.Metrics
	Logger      *zap.Logger
}

// Notifier posts whitelist progress embeds to a Discord webhook.
// Delivery is best effort: failures are logged and never reach the caller.
type Notifier struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	kv         storage.KV
	pool       *pool.WorkerPool
	metrics    *monitoring.Metrics
	log        *zap.Logger
	now        func() time.Time
}

// New creates a Notifier. An empty WebhookURL yields a disabled notifier.
func New(kv storage.KV, opts Options) *Notifier {
	if opts.MinInterval <= 0 {
		opts.MinInterval = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Notifier{
		url:        opts.WebhookURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		kv:         kv,
		pool:       opts.Pool,
		metrics:    opts.Metrics,
		log:        opts.Logger.Named("discord"),
		now:        time.Now,
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.url != ""
}

// Notify queues ev for delivery and returns immediately.
func (n *Notifier) Notify(ctx context.Context, ev domain.ProgressEvent) {
	if !n.Enabled() || ev.SessionID == "" {
		return
	}
	if ev.At.IsZero() {
		ev.At = n.now()
	}

	if n.pool == nil {
		n.deliverLogged(ctx, ev)
		return
	}
	if !n.pool.TrySubmit(func(ctx context.Context) { n.deliverLogged(ctx, ev) }) {
		n.metrics.RecordNotification("dropped")
		n.log.Warn("notification queue full, dropping event",
			zap.String("session", ev.SessionID),
			zap.String("step", string(ev.Step)),
		)
	}
}

func (n *Notifier) deliverLogged(ctx context.Context, ev domain.ProgressEvent) {
	if err := n.Deliver(ctx, ev); err != nil {
		n.metrics.RecordNotification("failed")
		n.log.Warn("discord notification failed",
			zap.String("session", ev.SessionID),
			zap.String("step", string(ev.Step)),
			zap.Error(err),
		)
		return
	}
	n.metrics.RecordNotification("sent")
}

// Deliver sends one embed and updates the session's progress record.
// The record is only written after Discord accepted the message.
func (n *Notifier) Deliver(ctx context.Context, ev domain.ProgressEvent) error {
	if ev.At.IsZero() {
		ev.At = n.now()
	}

	key := domain.ProgressKey(ev.SessionID)
	var rec Progress
	if err := storage.GetJSON(ctx, n.kv, key, &rec); err != nil && !errors.Is(err, storage.ErrNotFound) {
		n.log.Debug("progress record unreadable, starting fresh", zap.String("key", key), zap.Error(err))
		rec = Progress{}
	}
	rec.Apply(ev)

	payload, err := json.Marshal(Payload{Embeds: []Embed{BuildEmbed(ev.SessionID, rec, ev, n.now())}})
	if err != nil {
		return fmt.Errorf("marshal embed: %w", err)
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	if err := storage.PutJSON(ctx, n.kv, key, rec, domain.ProgressTTL); err != nil {
		return fmt.Errorf("store progress: %w", err)
	}
	return nil
}
