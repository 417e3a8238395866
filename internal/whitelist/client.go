package whitelist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pittmc/backend/internal/config"
	"pittmc/backend/internal/domain"
)

const maxResponseBytes = 64 << 10

// Response is the upstream answer: status is "success", "warning" or
// anything else for a rejection; Response is a human-readable message.
type Response struct {
	Status   string `json:"status"`
	Response string `json:"response"`
}

// Accepted reports whether the player was added (possibly with a caveat).
func (r Response) Accepted() bool {
	return r.Status == "success" || r.Status == "warning"
}

type addRequest struct {
	Username string `json:"username"`
	Type     string `json:"type"`
}

// Client calls the game server's whitelist API.
type Client struct {
	endpoint   string
	username   string
	password   string
	configured bool
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient builds a client from the whitelist config section.
func NewClient(cfg config.WhitelistConfig, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		endpoint:   cfg.BaseURL + cfg.Route,
		username:   cfg.Username,
		password:   cfg.Password,
		configured: cfg.Configured(),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.Named("whitelist"),
	}
}

// Add asks the upstream to whitelist username. Transport failures, non-2xx
// answers and unparseable bodies all wrap domain.ErrUpstreamUnavailable.
// A parsed answer is returned as-is, whatever its status.
func (c *Client) Add(ctx context.Context, username string, edition domain.Edition) (*Response, error) {
	if !c.configured {
		return nil, domain.ErrUpstreamNotConfigured
	}

	body, err := json.Marshal(addRequest{
		Username: domain.UpstreamUsername(edition, username),
		Type:     string(edition),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal whitelist request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error("whitelist API returned error status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw),
		)
		return nil, fmt.Errorf("%w: HTTP %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		c.log.Error("failed to parse whitelist API response", zap.ByteString("body", raw))
		return nil, fmt.Errorf("%w: invalid response format", domain.ErrUpstreamUnavailable)
	}

	c.log.Info("whitelist API response",
		zap.String("username", username),
		zap.String("edition", string(edition)),
		zap.String("status", out.Status),
	)
	return &out, nil
}
