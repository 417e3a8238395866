package smtp

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"pittmc/backend/internal/config"
	"pittmc/backend/internal/domain"
	"pittmc/backend/internal/monitoring"
)

const (
	defaultMaxMessageBytes = 1 << 20
	defaultResolveTimeout  = 10 * time.Second
)

// Resolver completes an out-of-band verification for the sender of a mail.
type Resolver interface {
	ResolveInbound(ctx context.Context, from, to string) error
}

// Options configures a Backend.
type Options struct {
	// InboundAddresses are the only recipients accepted. Anything else is
	// refused at RCPT time so the server can never relay.
	InboundAddresses []string
	// Authenticator vets the sender before a session is resolved. Nil
	// selects a DNS backed MailAuthenticator.
	Authenticator    SenderAuthenticator
	Limiter          *ConnectionLimiter
	MaxMessageBytes  int64
	ResolveTimeout   time.Duration
	Metrics          *monitoring.Metrics
	Logger           *zap.Logger
}

// Backend implements gosmtp.Backend for the verification inbox. It is
// receive-only: there is no AUTH and no relaying.
type Backend struct {
	resolver        Resolver
	inbound         map[string]struct{}
	auth            SenderAuthenticator
	limiter         *ConnectionLimiter
	maxMessageBytes int64
	resolveTimeout  time.Duration
	metrics         *monitoring.Metrics
	log             *zap.Logger
}

// NewBackend creates a Backend feeding resolver.
func NewBackend(resolver Resolver, opts Options) *Backend {
	inbound := make(map[string]struct{}, len(opts.InboundAddresses))
	for _, addr := range opts.InboundAddresses {
		if addr = normalizeAddress(addr); addr != "" {
			inbound[addr] = struct{}{}
		}
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = defaultMaxMessageBytes
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = defaultResolveTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Authenticator == nil {
		opts.Authenticator = NewMailAuthenticator(opts.Logger)
	}
	return &Backend{
		resolver:        resolver,
		inbound:         inbound,
		auth:            opts.Authenticator,
		limiter:         opts.Limiter,
		maxMessageBytes: opts.MaxMessageBytes,
		resolveTimeout:  opts.ResolveTimeout,
		metrics:         opts.Metrics,
		log:             opts.Logger.Named("smtp"),
	}
}

// NewServer wraps backend in a go-smtp server configured from cfg.
func NewServer(cfg config.SMTPConfig, backend *Backend) *gosmtp.Server {
	srv := gosmtp.NewServer(backend)
	srv.Addr = cfg.BindAddr
	srv.Domain = cfg.Domain
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.MaxMessageBytes = backend.maxMessageBytes
	srv.MaxRecipients = 5
	return srv
}

// NewSession is called by go-smtp for every accepted connection.
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	ip := ""
	if nc := c.Conn(); nc != nil {
		ip = remoteIP(nc.RemoteAddr())
	}
	sess, err := b.open(ip)
	if err != nil {
		return nil, err
	}
	sess.helo = c.Hostname()
	return sess, nil
}

func (b *Backend) open(ip string) (*session, error) {
	if b.limiter != nil && !b.limiter.Acquire(ip) {
		b.metrics.RecordInboundMail("throttled")
		b.log.Warn("smtp connection refused by limiter", zap.String("ip", ip))
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "too many connections, try again later",
		}
	}
	return &session{backend: b, ip: ip}, nil
}

func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

type session struct {
	backend    *Backend
	ip         string
	helo       string
	from       string
	recipients []string
	closed     bool
}

// Mail records the envelope sender.
func (s *session) Mail(from string, _ *gosmtp.MailOptions) error {
	s.from = normalizeAddress(from)
	return nil
}

// Rcpt accepts only the configured verification addresses.
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)
	if _, ok := s.backend.inbound[addr]; !ok {
		s.backend.metrics.RecordInboundMail("relay_denied")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied",
		}
	}
	s.recipients = append(s.recipients, addr)
	return nil
}

// Data authenticates the sender and resolves their pending session. The
// message body is read only for its headers and DKIM.
func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(io.LimitReader(r, s.backend.maxMessageBytes))
	if err != nil {
		return err
	}
	if len(s.recipients) == 0 {
		return &gosmtp.SMTPError{
			Code:         554,
			EnhancedCode: gosmtp.EnhancedCode{5, 5, 1},
			Message:      "no valid recipients",
		}
	}

	sender := s.from
	headers, err := ParseHeaders(raw)
	if err != nil {
		s.backend.log.Debug("unparseable inbound message headers", zap.String("ip", s.ip), zap.Error(err))
	}
	if sender == "" && headers != nil {
		sender = headers.From
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.backend.resolveTimeout)
	defer cancel()

	if sender != "" {
		err := s.backend.auth.Authenticate(ctx, Envelope{
			IP:       net.ParseIP(s.ip),
			Helo:     s.helo,
			MailFrom: s.from,
			Sender:   sender,
			Raw:      raw,
		})
		if err != nil {
			return s.backend.reject(sender, err)
		}
	}

	to := s.recipients[0]
	if err := s.backend.resolver.ResolveInbound(ctx, sender, to); err != nil {
		return s.backend.reject(sender, err)
	}

	s.backend.metrics.RecordInboundMail("resolved")
	fields := []zap.Field{zap.String("from", sender), zap.String("to", to), zap.String("ip", s.ip)}
	if headers != nil {
		fields = append(fields, zap.String("subject", headers.Subject), zap.String("message_id", headers.MessageID))
	}
	s.backend.log.Info("inbound verification mail accepted", fields...)
	return nil
}

// reject maps resolver errors to SMTP replies: business rejections are
// permanent, anything else asks the sending MTA to retry.
func (b *Backend) reject(sender string, err error) error {
	switch {
	case errors.Is(err, ErrSenderNotAuthenticated):
		b.metrics.RecordInboundMail("unauthenticated")
		b.log.Warn("inbound mail failed sender authentication", zap.String("from", sender))
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 26},
			Message:      "sender domain did not pass SPF or DKIM",
		}
	case errors.Is(err, ErrSenderAuthUnavailable):
		b.metrics.RecordInboundMail("auth_tempfail")
		return &gosmtp.SMTPError{
			Code:         451,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "sender authentication unavailable, try again later",
		}
	case errors.Is(err, domain.ErrMissingFields), errors.Is(err, domain.ErrInvalidEmail):
		b.metrics.RecordInboundMail("invalid_sender")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "sender is not a valid institutional address",
		}
	case errors.Is(err, domain.ErrNoPendingVerification):
		b.metrics.RecordInboundMail("no_pending")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "no pending verification for " + strings.ToLower(sender),
		}
	default:
		b.metrics.RecordInboundMail("error")
		b.log.Error("inbound verification failed", zap.String("from", sender), zap.Error(err))
		return &gosmtp.SMTPError{
			Code:         451,
			EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
			Message:      "temporary failure, try again later",
		}
	}
}

// Reset clears the transaction state.
func (s *session) Reset() {
	s.from = ""
	s.recipients = nil
}

// Logout releases the connection slot.
func (s *session) Logout() error {
	if !s.closed && s.backend.limiter != nil {
		s.backend.limiter.Release(s.ip)
	}
	s.closed = true
	return nil
}
