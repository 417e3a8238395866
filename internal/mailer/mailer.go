package mailer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/go-gomail/gomail"
	"go.uber.org/zap"

	"pittmc/backend/internal/config"
	"pittmc/backend/internal/domain"
)

const (
	codeSubject         = "Your Requested Pitt Minecraft Code"
	confirmationSubject = "Your Pitt email has been verified"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Message is a rendered email ready to send.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Validate rejects messages missing a recipient, subject or body.
func (m Message) Validate() error {
	if m.To == "" {
		return errors.New("empty to")
	}
	if m.Subject == "" || (m.Text == "" && m.HTML == "") {
		return errors.New("empty subject/body")
	}
	return nil
}

// CodeMessage renders the email carrying a verification code.
func CodeMessage(to, code string, ttl time.Duration) (Message, error) {
	html, err := render("verification_code.html", map[string]string{
		"Code":      code,
		"ExpiresIn": humanMinutes(ttl),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: codeSubject,
		Text:    fmt.Sprintf("Your PittMC code is: %s\n\nIf you didn't request this code, please ignore this email.\n", code),
		HTML:    html,
	}, nil
}

// ConfirmationMessage renders the reply sent after an out-of-band verification.
func ConfirmationMessage(to string) (Message, error) {
	html, err := render("verification_confirmed.html", map[string]string{"Email": to})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: confirmationSubject,
		Text:    fmt.Sprintf("We've successfully verified your Pitt email address: %s\n", to),
		HTML:    html,
	}, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("email data injection failed: %w", err)
	}
	return buf.String(), nil
}

func humanMinutes(d time.Duration) string {
	m := int(d.Round(time.Minute) / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// readiness is implemented by senders that know up front they cannot deliver.
type readiness interface {
	Ready() error
}

// Ready reports whether s can deliver mail at all. Senders without a
// readiness check are assumed ready.
func Ready(s Sender) error {
	if r, ok := s.(readiness); ok {
		return r.Ready()
	}
	return nil
}

// SMTPSender relays messages through an SMTP submission server.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	log    *zap.Logger
}

// NewSMTPSender builds a sender from the mail section of the config.
func NewSMTPSender(cfg config.MailConfig, log *zap.Logger) *SMTPSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		log:    log.Named("mailer"),
	}
}

// Send dials the relay and delivers msg. gomail has no context support, so
// ctx is only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.dialer.DialAndSend(s.build(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	s.log.Info("email sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

func (s *SMTPSender) build(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		if msg.HTML != "" {
			m.AddAlternative("text/html", msg.HTML)
		}
	} else {
		m.SetBody("text/html", msg.HTML)
	}
	return m
}

// LogSender replaces SMTP delivery in development. It logs the recipient and
// subject only.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender creates a LogSender. A nil logger discards the log lines.
func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log.Named("mailer")}
}

// Send validates msg and logs it instead of delivering it.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.log.Warn("mail delivery disabled, message not sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// DisabledSender stands in when no mail relay is configured outside
// development. Every send fails with domain.ErrMailNotConfigured.
type DisabledSender struct{}

// Ready always fails.
func (DisabledSender) Ready() error { return domain.ErrMailNotConfigured }

// Send always fails.
func (DisabledSender) Send(context.Context, Message) error { return domain.ErrMailNotConfigured }

// New picks the SMTP sender when mail is enabled. Without a relay,
// development gets the log sender and every other mode a DisabledSender.
func New(cfg config.MailConfig, development bool, log *zap.Logger) Sender {
	switch {
	case cfg.Enabled:
		return NewSMTPSender(cfg, log)
	case development:
		return NewLogSender(log)
	default:
		return DisabledSender{}
	}
}
