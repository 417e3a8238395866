package smtp

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"

	"blitiri.com.ar/go/spf"
	"github.com/emersion/go-msgauth/dkim"
	"go.uber.org/zap"
)

var (
	// ErrSenderNotAuthenticated means neither DKIM nor SPF vouches for the
	// sender's domain.
	ErrSenderNotAuthenticated = errors.New("sender not authenticated")
	// ErrSenderAuthUnavailable means a DNS lookup failed temporarily and the
	// sending MTA should retry.
	ErrSenderAuthUnavailable = errors.New("sender authentication temporarily unavailable")
)

// Envelope is what a SenderAuthenticator gets to judge a message by.
type Envelope struct {
	IP       net.IP
	Helo     string
	MailFrom string // envelope sender, may be empty
	Sender   string // address the verification is resolved for
	Raw      []byte // full message as received
}

// SenderAuthenticator decides whether a message really comes from
// Envelope.Sender.
type SenderAuthenticator interface {
	Authenticate(ctx context.Context, env Envelope) error
}

// SPFFunc evaluates the SPF policy of sender's domain for ip.
type SPFFunc func(ctx context.Context, ip net.IP, helo, sender string) (spf.Result, error)

// MailAuthenticator accepts a message when it carries a valid DKIM signature
// aligned with the sender's domain, or when SPF passes for an envelope sender
// in that domain.
type MailAuthenticator struct {
	checkSPF  SPFFunc
	lookupTXT func(domain string) ([]string, error)
	log       *zap.Logger
}

// AuthOption customises a MailAuthenticator.
type AuthOption func(*MailAuthenticator)

// WithSPFFunc replaces the DNS backed SPF evaluation.
func WithSPFFunc(fn SPFFunc) AuthOption {
	return func(a *MailAuthenticator) { a.checkSPF = fn }
}

// WithTXTLookup replaces the DNS TXT lookup used for DKIM keys.
func WithTXTLookup(fn func(domain string) ([]string, error)) AuthOption {
	return func(a *MailAuthenticator) { a.lookupTXT = fn }
}

// NewMailAuthenticator creates an authenticator that queries DNS.
func NewMailAuthenticator(log *zap.Logger, opts ...AuthOption) *MailAuthenticator {
	if log == nil {
		log = zap.NewNop()
	}
	a := &MailAuthenticator{
		checkSPF: checkHostSPF,
		log:      log.Named("smtp.auth"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func checkHostSPF(ctx context.Context, ip net.IP, helo, sender string) (spf.Result, error) {
	return spf.CheckHostWithSender(ip, helo, sender, spf.WithContext(ctx))
}

// Authenticate returns nil, ErrSenderNotAuthenticated or
// ErrSenderAuthUnavailable.
func (a *MailAuthenticator) Authenticate(ctx context.Context, env Envelope) error {
	senderDomain := domainOf(env.Sender)
	if senderDomain == "" {
		return ErrSenderNotAuthenticated
	}
	tempFail := false

	verifications, err := dkim.VerifyWithOptions(bytes.NewReader(env.Raw), &dkim.VerifyOptions{
		LookupTXT: a.lookupTXT,
	})
	if err != nil {
		a.log.Debug("dkim verification failed", zap.String("sender", env.Sender), zap.Error(err))
	}
	for _, v := range verifications {
		if v.Err == nil && aligned(v.Domain, senderDomain) {
			return nil
		}
		if v.Err != nil && dkim.IsTempFail(v.Err) {
			tempFail = true
		}
	}

	mailFrom := strings.ToLower(env.MailFrom)
	if env.IP != nil && aligned(domainOf(mailFrom), senderDomain) {
		result, err := a.checkSPF(ctx, env.IP, env.Helo, mailFrom)
		switch result {
		case spf.Pass:
			return nil
		case spf.TempError:
			tempFail = true
		}
		a.log.Debug("spf did not pass",
			zap.String("mail_from", mailFrom),
			zap.String("ip", env.IP.String()),
			zap.String("result", string(result)),
			zap.Error(err),
		)
	}

	if tempFail {
		return ErrSenderAuthUnavailable
	}
	return ErrSenderNotAuthenticated
}

// aligned reports whether signer is the sender's domain or a parent of it.
func aligned(signer, sender string) bool {
	signer = strings.ToLower(strings.TrimSuffix(signer, "."))
	if !strings.Contains(signer, ".") || sender == "" {
		return false
	}
	return sender == signer || strings.HasSuffix(sender, "."+signer)
}

func domainOf(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(addr[at+1:])
}
