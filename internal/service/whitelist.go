package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pittmc/backend/internal/auth/jwt"
	"pittmc/backend/internal/domain"
	"pittmc/backend/internal/monitoring"
	"pittmc/backend/internal/storage"
)

// WhitelistDeps are the collaborators of a WhitelistService. Archive is
// optional.
type WhitelistDeps struct {
	KV       storage.KV
	Tokens   TokenCodec
	Upstream UpstreamClient
	Archive  AuditArchive
	Notifier Notifier
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
}

// WhitelistService turns a verified bearer token and a username into an
// upstream whitelist entry.
type WhitelistService struct {
	kv            storage.KV
	tokens        TokenCodec
	upstream      UpstreamClient
	archive       AuditArchive
	notifier      Notifier
	metrics       *monitoring.Metrics
	log           *zap.Logger
	strictBedrock bool
	now           func() time.Time
}

// NewWhitelistService creates the service. strictBedrock applies the
// character rules of the wizard to bedrock gamertags.
func NewWhitelistService(strictBedrock bool, deps WhitelistDeps) *WhitelistService {
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &WhitelistService{
		kv:            deps.KV,
		tokens:        deps.Tokens,
		upstream:      deps.Upstream,
		archive:       deps.Archive,
		notifier:      deps.Notifier,
		metrics:       deps.Metrics,
		log:           deps.Logger.Named("whitelist"),
		strictBedrock: strictBedrock,
		now:           time.Now,
	}
}

// StrictBedrock reports whether bedrock gamertags follow the java charset.
func (s *WhitelistService) StrictBedrock() bool { return s.strictBedrock }

// CheckUsername validates username for edition without side effects.
func (s *WhitelistService) CheckUsername(username, edition string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(edition) == "" {
		return domain.ErrMissingFields
	}
	ed, err := domain.ParseEdition(edition)
	if err != nil {
		return err
	}
	return domain.ValidateUsername(ed, username, s.strictBedrock)
}

// Submit authorizes req by its token, records an audit entry and forwards
// the username to the upstream whitelist API.
func (s *WhitelistService) Submit(ctx context.Context, req domain.WhitelistRequest) (*domain.WhitelistResult, error) {
	if req.Token == "" || req.Username == "" || req.Edition == "" {
		return nil, domain.ErrMissingFields
	}

	email, err := s.tokens.Verify(ctx, req.Token)
	if errors.Is(err, jwt.ErrInvalidToken) {
		s.metrics.RecordWhitelistSubmission("unauthorized")
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	result, err := s.submit(ctx, email, req)
	s.complete(ctx, email, req, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *WhitelistService) submit(ctx context.Context, email string, req domain.WhitelistRequest) (*domain.WhitelistResult, error) {
	edition, err := domain.ParseEdition(req.Edition)
	if err != nil {
		s.metrics.RecordWhitelistSubmission("invalid")
		return nil, err
	}
	if err := domain.ValidateUsername(edition, req.Username, s.strictBedrock); err != nil {
		s.metrics.RecordWhitelistSubmission("invalid")
		return nil, err
	}
	var device domain.Device
	if req.Device != "" {
		if device, err = domain.ParseDevice(req.Device); err != nil {
			s.metrics.RecordWhitelistSubmission("invalid")
			return nil, err
		}
	}

	rec := domain.AuditRecord{
		Email:     email,
		Username:  req.Username,
		Edition:   edition,
		Device:    device,
		Timestamp: s.now().UTC(),
	}
	if err := s.audit(ctx, rec); err != nil {
		s.metrics.RecordWhitelistSubmission("store_unavailable")
		return nil, err
	}

	start := time.Now()
	resp, err := s.upstream.Add(ctx, req.Username, edition)
	s.metrics.ObserveUpstream(time.Since(start))
	if err != nil {
		s.metrics.RecordWhitelistSubmission("upstream_error")
		s.log.Error("whitelist upstream call failed",
			zap.String("email", email),
			zap.String("username", req.Username),
			zap.Error(err),
		)
		if errors.Is(err, domain.ErrUpstreamNotConfigured) {
			return nil, domain.ErrUpstreamNotConfigured
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	if !resp.Accepted() {
		s.metrics.RecordWhitelistSubmission("rejected")
		msg := resp.Response
		if msg == "" {
			msg = domain.DefaultRejectionMessage
		}
		s.log.Info("whitelist request rejected upstream",
			zap.String("email", email),
			zap.String("username", req.Username),
			zap.String("status", resp.Status),
			zap.String("message", msg),
		)
		return nil, &domain.UpstreamRejection{Status: resp.Status, Message: msg}
	}

	s.metrics.RecordWhitelistSubmission(resp.Status)
	s.log.Info("player whitelisted",
		zap.String("email", email),
		zap.String("username", req.Username),
		zap.String("edition", string(edition)),
		zap.String("status", resp.Status),
	)
	return &domain.WhitelistResult{
		Status:   resp.Status,
		Message:  resp.Response,
		Email:    email,
		Username: req.Username,
		Edition:  edition,
	}, nil
}

// audit writes rec to the KV store and the optional archive. A failed KV
// write is fatal only when the store has stopped answering.
func (s *WhitelistService) audit(ctx context.Context, rec domain.AuditRecord) error {
	if err := storage.PutJSON(ctx, s.kv, rec.Key(), rec, domain.AuditTTL); err != nil {
		if pingErr := s.kv.Ping(ctx); pingErr != nil {
			s.log.Error("audit write failed and store is down",
				zap.String("key", rec.Key()),
				zap.Error(err),
				zap.NamedError("ping", pingErr),
			)
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		s.log.Warn("audit write failed", zap.String("key", rec.Key()), zap.Error(err))
	}

	if s.archive != nil {
		if err := s.archive.Record(ctx, rec); err != nil {
			s.log.Warn("audit archive write failed", zap.String("email", rec.Email), zap.Error(err))
		}
	}
	return nil
}

func (s *WhitelistService) complete(ctx context.Context, email string, req domain.WhitelistRequest, err error) {
	if req.SessionID == "" {
		return
	}
	ev := domain.ProgressEvent{
		SessionID: req.SessionID,
		Step:      domain.StepCompleted,
		Email:     email,
		Username:  req.Username,
	}
	if ed, parseErr := domain.ParseEdition(req.Edition); parseErr == nil {
		ev.Edition = ed
	}
	if dev, parseErr := domain.ParseDevice(req.Device); parseErr == nil {
		ev.Device = dev
	}
	if err != nil {
		ev.Err = err.Error()
	}
	s.notifier.Notify(ctx, ev)
}
