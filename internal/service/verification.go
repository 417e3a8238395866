package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pittmc/backend/internal/config"
	"pittmc/backend/internal/domain"
	"pittmc/backend/internal/mailer"
	"pittmc/backend/internal/monitoring"
	"pittmc/backend/internal/storage"
)

const (
	flowCode    = "code"
	flowSession = "session"
)

// VerificationDeps are the collaborators of a VerificationService.
type VerificationDeps struct {
	KV       storage.KV
	Tokens   TokenCodec
	Mailer   mailer.Sender
	Notifier Notifier
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
}

// VerificationService implements the two email ownership protocols: a
// six-digit code mailed to the user, and an out-of-band session resolved by
// an email the user sends to the inbound address.
type VerificationService struct {
	kv       storage.KV
	tokens   TokenCodec
	mailer   mailer.Sender
	notifier Notifier
	metrics  *monitoring.Metrics
	log      *zap.Logger
	cfg      config.VerificationConfig
	newID    func() string
}

// NewVerificationService creates the service. Zero TTLs in cfg fall back to
// the domain defaults.
func NewVerificationService(cfg config.VerificationConfig, deps VerificationDeps) *VerificationService {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = domain.CodeTTL
	}
	if cfg.AwaitingTTL <= 0 {
		cfg.AwaitingTTL = domain.AwaitingTTL
	}
	if cfg.VerifiedTTL <= 0 {
		cfg.VerifiedTTL = domain.VerifiedTTL
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Mailer == nil {
		deps.Mailer = mailer.NewLogSender(deps.Logger)
	}
	return &VerificationService{
		kv:       deps.KV,
		tokens:   deps.Tokens,
		mailer:   deps.Mailer,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		log:      deps.Logger.Named("verification"),
		cfg:      cfg,
		newID:    uuid.NewString,
	}
}

// Domain returns the institutional email domain.
func (s *VerificationService) Domain() string {
	return s.cfg.Domain
}

// RequestCode stores a fresh code for email and mails it. Any earlier code
// for the same address is replaced.
func (s *VerificationService) RequestCode(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !domain.IsInstitutionalEmail(email, s.cfg.Domain) {
		return domain.ErrInvalidEmail
	}
	if err := mailer.Ready(s.mailer); err != nil {
		s.log.Error("verification code requested but no mail relay is configured", zap.String("email", email))
		return err
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := s.kv.Put(ctx, domain.CodeKey(email), code, s.cfg.CodeTTL); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	msg, err := mailer.CodeMessage(email, code, s.cfg.CodeTTL)
	if err != nil {
		return fmt.Errorf("render code email: %w", err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error("send verification code failed", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrEmailDelivery, err)
	}

	s.metrics.RecordCodeIssued()
	s.log.Info("verification code issued", zap.String("email", email))
	return nil
}

// RequestSession opens an out-of-band session for email. A new session
// replaces any pending one for the same address.
func (s *VerificationService) RequestSession(ctx context.Context, email string) (*domain.SessionTicket, error) {
	email = domain.NormalizeEmail(email)
	if !domain.IsInstitutionalEmail(email, s.cfg.Domain) {
		return nil, domain.ErrInvalidEmail
	}

	id := s.newID()
	if err := s.kv.Put(ctx, domain.AwaitingKey(email), id, s.cfg.AwaitingTTL); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.metrics.RecordSessionOpened()
	s.notifier.Notify(ctx, domain.ProgressEvent{
		SessionID: id,
		Step:      domain.StepStarted,
		Email:     email,
	})
	s.log.Info("verification session opened", zap.String("email", email), zap.String("session", id))

	return &domain.SessionTicket{
		SessionID:   id,
		Instruction: s.instruction(email),
	}, nil
}

func (s *VerificationService) instruction(email string) string {
	if s.cfg.InboundAddress == "" {
		return fmt.Sprintf("Send an email from %s to verify your address.", email)
	}
	return fmt.Sprintf("Send an email from %s to %s to verify your address.", email, s.cfg.InboundAddress)
}

// SubmitCode checks code against the one stored for email. On success the
// code is consumed and a bearer token is returned. A wrong code leaves the
// stored one in place.
func (s *VerificationService) SubmitCode(ctx context.Context, email, code string) (string, error) {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return "", domain.ErrMissingFields
	}
	if !domain.IsInstitutionalEmail(email, s.cfg.Domain) {
		return "", domain.ErrInvalidEmail
	}
	if !domain.IsCodeFormat(code) {
		return "", domain.ErrInvalidCodeFormat
	}

	key := domain.CodeKey(email)
	stored, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		s.metrics.RecordVerification(flowCode, "not_found")
		return "", domain.ErrCodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load code: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		s.metrics.RecordVerification(flowCode, "mismatch")
		return "", domain.ErrInvalidCode
	}

	if err := s.kv.Delete(ctx, key); err != nil {
		return "", fmt.Errorf("consume code: %w", err)
	}
	token, err := s.mint(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return "", err
	}

	s.metrics.RecordVerification(flowCode, "verified")
	s.log.Info("email verified by code", zap.String("email", email))
	return token, nil
}

// ResolveInbound completes the pending session of the sender of an inbound
// email. to is only logged; recipient filtering is the adapter's job.
func (s *VerificationService) ResolveInbound(ctx context.Context, from, to string) error {
	sender := domain.NormalizeEmail(from)
	if sender == "" {
		return domain.ErrMissingFields
	}
	if !domain.IsInstitutionalEmail(sender, s.cfg.Domain) {
		s.metrics.RecordVerification(flowSession, "foreign_sender")
		return domain.ErrInvalidEmail
	}

	awaitingKey := domain.AwaitingKey(sender)
	sessionID, err := s.kv.Get(ctx, awaitingKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.metrics.RecordVerification(flowSession, "no_pending")
		return domain.ErrNoPendingVerification
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if err := s.kv.Put(ctx, domain.VerifiedKey(sessionID), sender, s.cfg.VerifiedTTL); err != nil {
		return fmt.Errorf("mark session verified: %w", err)
	}
	if err := s.kv.Delete(ctx, awaitingKey); err != nil {
		return fmt.Errorf("clear pending session: %w", err)
	}

	s.metrics.RecordVerification(flowSession, "resolved")
	s.log.Info("inbound verification resolved",
		zap.String("from", sender),
		zap.String("to", to),
		zap.String("session", sessionID),
	)

	s.notifier.Notify(ctx, domain.ProgressEvent{
		SessionID: sessionID,
		Step:      domain.StepVerified,
		Email:     sender,
	})
	s.sendConfirmation(ctx, sender)
	return nil
}

func (s *VerificationService) sendConfirmation(ctx context.Context, to string) {
	msg, err := mailer.ConfirmationMessage(to)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.log.Warn("confirmation email not sent", zap.String("email", to), zap.Error(err))
	}
}

// PollStatus reports whether sessionID has been verified for email. A
// verified session is consumed and exchanged for a token; later polls see it
// as pending again.
func (s *VerificationService) PollStatus(ctx context.Context, email, sessionID string) (*domain.PollResult, error) {
	email = strings.TrimSpace(email)
	sessionID = strings.TrimSpace(sessionID)
	if email == "" || sessionID == "" {
		return nil, domain.ErrMissingFields
	}
	if !domain.IsInstitutionalEmail(email, s.cfg.Domain) {
		return nil, domain.ErrInvalidEmail
	}

	key := domain.VerifiedKey(sessionID)
	verified, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return &domain.PollResult{Verified: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !strings.EqualFold(verified, email) {
		s.metrics.RecordVerification(flowSession, "mismatch")
		return nil, domain.ErrEmailMismatch
	}

	if err := s.kv.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("consume session: %w", err)
	}
	token, err := s.mint(ctx, verified)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVerification(flowSession, "verified")
	return &domain.PollResult{Verified: true, Token: token}, nil
}

func (s *VerificationService) mint(ctx context.Context, email string) (string, error) {
	token, err := s.tokens.Mint(ctx, email)
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	s.metrics.RecordTokenMinted()
	return token, nil
}

var codeSpace = big.NewInt(1_000_000)

// generateCode returns a uniformly distributed six-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", domain.CodeLength, n.Int64()), nil
}
