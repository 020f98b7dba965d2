package notify

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/tenantonboard/internal/domain"
	"github.com/yourorg/tenantonboard/internal/observability/metrics"
	"github.com/yourorg/tenantonboard/internal/reliability/circuitbreaker"
	"github.com/yourorg/tenantonboard/internal/reliability/retry"
	"github.com/yourorg/tenantonboard/pkg/config"
)

const (
	portImplicitTLS = 465
	portStartTLS    = 587
)

// ErrUnsupportedPort is returned for ports other than 465 and 587.
var ErrUnsupportedPort = errors.New("unsupported smtp port: use 465 for implicit TLS or 587 for STARTTLS")

// smtpClient is the subset of *smtp.Client the mailer drives.
type smtpClient interface {
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// SMTPMailer delivers messages over authenticated SMTP.
type SMTPMailer struct {
	cfg     config.SMTPConfig
	retry   *retry.Config
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
	dial    func(ctx context.Context) (smtpClient, error)
	now     func() time.Time
}

// NewSMTPMailer validates the port and returns a mailer.
func NewSMTPMailer(cfg config.SMTPConfig, logger *slog.Logger) (*SMTPMailer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Port != portImplicitTLS && cfg.Port != portStartTLS {
		return nil, fmt.Errorf("%w (got %d)", ErrUnsupportedPort, cfg.Port)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	m := &SMTPMailer{
		cfg:     cfg,
		retry:   retry.DefaultConfig(),
		breaker: circuitbreaker.NewCircuitBreaker(5, 1, time.Minute),
		logger:  logger.With(slog.String("component", "smtp")),
		now:     time.Now,
	}
	m.dial = m.dialSMTP
	m.breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		m.logger.Warn("smtp circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
		metrics.SetBreakerState("smtp", int(to))
	})
	return m, nil
}

// Send delivers msg, retrying transient failures. An open breaker fails fast.
func (m *SMTPMailer) Send(ctx context.Context, msg domain.Message) error {
	return retry.Run(ctx, m.retry, m.logger, "smtp.send", func(ctx context.Context) error {
		err := m.breaker.Execute(func() error { return m.deliver(ctx, msg) })
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return retry.Permanent(err)
		}
		return err
	})
}

func (m *SMTPMailer) deliver(ctx context.Context, msg domain.Message) error {
	from, err := mail.ParseAddress(msg.Sender)
	if err != nil {
		return retry.Permanent(fmt.Errorf("invalid sender %q: %w", msg.Sender, err))
	}
	to, err := mail.ParseAddress(msg.Recipient)
	if err != nil {
		return retry.Permanent(fmt.Errorf("invalid recipient %q: %w", msg.Recipient, err))
	}
	body, err := buildMessage(msg, from, to, m.now())
	if err != nil {
		return retry.Permanent(err)
	}

	c, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if m.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from.Address); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to.Address); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}

func (m *SMTPMailer) dialSMTP(ctx context.Context) (smtpClient, error) {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	netDialer := &net.Dialer{Timeout: m.cfg.Timeout}
	tlsConfig := &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}

	var (
		conn net.Conn
		err  error
	)
	switch m.cfg.Port {
	case portImplicitTLS:
		conn, err = (&tls.Dialer{NetDialer: netDialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	case portStartTLS:
		conn, err = netDialer.DialContext(ctx, "tcp", addr)
	default:
		return nil, ErrUnsupportedPort
	}
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}

	deadline := time.Now().Add(m.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}
	if m.cfg.Port == portStartTLS {
		if err := c.StartTLS(tlsConfig); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("smtp starttls: %w", err)
		}
	}
	return c, nil
}

// buildMessage renders an RFC 5322 message with a quoted-printable HTML body.
func buildMessage(msg domain.Message, from, to *mail.Address, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	headers := [][2]string{
		{"From", from.String()},
		{"To", to.String()},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", now.Format(time.RFC1123Z)},
		{"Message-ID", messageID(from.Address)},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/html; charset="utf-8"`},
		{"Content-Transfer-Encoding", "quoted-printable"},
	}
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h[0], h[1])
	}
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(msg.HTMLBody)); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return buf.Bytes(), nil
}

func messageID(sender string) string {
	domainPart := "localhost"
	if at := strings.LastIndexByte(sender, '@'); at >= 0 {
		domainPart = sender[at+1:]
	}
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("<%d@%s>", time.Now().UnixNano(), domainPart)
	}
	return "<" + hex.EncodeToString(b) + "@" + domainPart + ">"
}
