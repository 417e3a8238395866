package service

import (
	"context"

	"pittmc/backend/internal/domain"
	"pittmc/backend/internal/whitelist"
)

// TokenCodec mints and verifies whitelist bearer tokens.
type TokenCodec interface {
	Mint(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, token string) (string, error)
}

// Notifier receives best-effort progress events. Implementations must not
// block the caller on delivery failures.
type Notifier interface {
	Notify(ctx context.Context, ev domain.ProgressEvent)
}

// UpstreamClient adds a player to the game server allow-list.
type UpstreamClient interface {
	Add(ctx context.Context, username string, edition domain.Edition) (*whitelist.Response, error)
}

// AuditArchive keeps a durable copy of submission audit records.
type AuditArchive interface {
	Record(ctx context.Context, rec domain.AuditRecord) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.ProgressEvent) {}
