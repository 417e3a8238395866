package whitelist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pittmc/backend/internal/config"
	"pittmc/backend/internal/domain"
)

func newUpstream(t *testing.T, status int, body string, seen *addRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/whitelist", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "svc", user)
		assert.Equal(t, "hunter2", pass)
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(url string) *Client {
	return NewClient(config.WhitelistConfig{
		BaseURL:  url,
		Route:    "/whitelist",
		Username: "svc",
		Password: "hunter2",
		Timeout:  time.Second,
	}, nil)
}

func TestClient_Add(t *testing.T) {
	var seen addRequest
	srv := newUpstream(t, http.StatusOK, `{"status":"success","response":"ok"}`, &seen)

	resp, err := newClient(srv.URL).Add(context.Background(), "PittPanther123", domain.EditionJava)
	require.NoError(t, err)
	assert.Equal(t, &Response{Status: "success", Response: "ok"}, resp)
	assert.True(t, resp.Accepted())
	assert.Equal(t, addRequest{Username: "PittPanther123", Type: "java"}, seen)
}

func TestClient_AddBedrockReplacesSpaces(t *testing.T) {
	var seen addRequest
	srv := newUpstream(t, http.StatusOK, `{"status":"warning","response":"already whitelisted"}`, &seen)

	resp, err := newClient(srv.URL).Add(context.Background(), "Pitt Panther 1", domain.EditionBedrock)
	require.NoError(t, err)
	assert.True(t, resp.Accepted())
	assert.Equal(t, addRequest{Username: "Pitt_Panther_1", Type: "bedrock"}, seen)
}

func TestClient_AddRejection(t *testing.T) {
	srv := newUpstream(t, http.StatusOK, `{"status":"error","response":"player does not exist"}`, nil)

	resp, err := newClient(srv.URL).Add(context.Background(), "nobody", domain.EditionJava)
	require.NoError(t, err)
	assert.False(t, resp.Accepted())
	assert.Equal(t, "player does not exist", resp.Response)
}

func TestClient_AddUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "boom"},
		{"unauthorized", http.StatusUnauthorized, ""},
		{"not json", http.StatusOK, "<html>ok</html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newUpstream(t, tt.status, tt.body, nil)
			_, err := newClient(srv.URL).Add(context.Background(), "abc", domain.EditionJava)
			assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
		})
	}

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := newClient(url).Add(context.Background(), "abc", domain.EditionJava)
		assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	})
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient(config.WhitelistConfig{BaseURL: "https://api.pittmc.com"}, nil)
	_, err := c.Add(context.Background(), "abc", domain.EditionJava)
	assert.ErrorIs(t, err, domain.ErrUpstreamNotConfigured)
}
