package mailer

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pittmc/backend/internal/config"
	"pittmc/backend/internal/domain"
)

func TestCodeMessage(t *testing.T) {
	msg, err := CodeMessage("panther@pitt.edu", "012345", 15*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "panther@pitt.edu", msg.To)
	assert.Equal(t, "Your Requested Pitt Minecraft Code", msg.Subject)
	assert.Contains(t, msg.HTML, "<strong style=\"font-size: 24px;\">012345</strong>")
	assert.Contains(t, msg.HTML, "15 minutes")
	assert.Contains(t, msg.Text, "012345")
	assert.NoError(t, msg.Validate())
}

func TestConfirmationMessageEscapes(t *testing.T) {
	msg, err := ConfirmationMessage("<b>x</b>@pitt.edu")
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<b>x</b>")
	assert.Contains(t, msg.HTML, "&lt;b&gt;")
}

func TestMessageValidate(t *testing.T) {
	assert.Error(t, Message{Subject: "s", Text: "t"}.Validate())
	assert.Error(t, Message{To: "a@pitt.edu", Text: "t"}.Validate())
	assert.Error(t, Message{To: "a@pitt.edu", Subject: "s"}.Validate())
	assert.NoError(t, Message{To: "a@pitt.edu", Subject: "s", HTML: "<p/>"}.Validate())
}

// captureBackend is a minimal go-smtp backend recording delivered mail.
type captureBackend struct {
	mu   sync.Mutex
	from string
	to   []string
	data []byte
}

func (b *captureBackend) NewSession(*gosmtp.Conn) (gosmtp.Session, error) {
	return &captureSession{b: b}, nil
}

type captureSession struct{ b *captureBackend }

func (s *captureSession) Mail(from string, _ *gosmtp.MailOptions) error {
	s.b.mu.Lock()
	s.b.from = from
	s.b.mu.Unlock()
	return nil
}

func (s *captureSession) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	s.b.mu.Lock()
	s.b.to = append(s.b.to, to)
	s.b.mu.Unlock()
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.b.mu.Lock()
	s.b.data = data
	s.b.mu.Unlock()
	return nil
}

func (s *captureSession) Reset()        {}
func (s *captureSession) Logout() error { return nil }

func TestSMTPSender_Send(t *testing.T) {
	backend := &captureBackend{}
	srv := gosmtp.NewServer(backend)
	srv.Domain = "localhost"
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	sender := NewSMTPSender(config.MailConfig{
		Host: host,
		Port: port,
		From: "PittMC <help@pittmc.com>",
	}, nil)

	msg, err := CodeMessage("panther@pitt.edu", "123456", 15*time.Minute)
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), msg))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, "help@pittmc.com", backend.from)
	assert.Equal(t, []string{"panther@pitt.edu"}, backend.to)
	assert.True(t, bytes.Contains(backend.data, []byte("Subject: Your Requested Pitt Minecraft Code")))
	assert.True(t, strings.Contains(string(backend.data), "123456"))
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	sender := NewSMTPSender(config.MailConfig{Host: "127.0.0.1", Port: 1, From: "help@pittmc.com"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg, err := CodeMessage("panther@pitt.edu", "123456", time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, sender.Send(ctx, msg), context.Canceled)
}

func TestNewPicksSender(t *testing.T) {
	_, ok := New(config.MailConfig{}, true, nil).(*LogSender)
	assert.True(t, ok)

	_, ok = New(config.MailConfig{Enabled: true, Host: "smtp.example.com", Port: 587}, false, nil).(*SMTPSender)
	assert.True(t, ok)

	assert.NoError(t, NewLogSender(nil).Send(context.Background(), Message{To: "a@pitt.edu", Subject: "s", Text: "t"}))
}

func TestNewWithoutRelayOutsideDevelopment(t *testing.T) {
	sender := New(config.MailConfig{}, false, nil)
	_, ok := sender.(DisabledSender)
	require.True(t, ok)

	assert.ErrorIs(t, Ready(sender), domain.ErrMailNotConfigured)
	msg, err := CodeMessage("panther@pitt.edu", "123456", time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, sender.Send(context.Background(), msg), domain.ErrMailNotConfigured)

	assert.NoError(t, Ready(NewLogSender(nil)))
	assert.NoError(t, Ready(NewSMTPSender(config.MailConfig{Host: "smtp.example.com", Port: 587}, nil)))
}
