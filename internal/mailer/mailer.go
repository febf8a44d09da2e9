// Package mailer sends operator-facing email. The alerting engine only
// depends on the Mailer contract; the SMTP implementation is the deployment
// default.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// defaultSendTimeout bounds one delivery attempt so a slow or unreachable
// recipient server cannot stall the rest of an alert cycle.
const defaultSendTimeout = 15 * time.Second

// Mailer delivers one HTML message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Config holds SMTP connection settings.
type Config struct {
	Host     string        // SMTP server host.
	Port     int           // SMTP server port.
	Username string        // Auth username; empty disables auth.
	Password string        // Auth password.
	From     string        // Envelope and header From address.
	Timeout  time.Duration // Per-send timeout; zero uses the default.
}

// SMTPMailer sends mail over SMTP with a bounded per-send timeout.
type SMTPMailer struct {
	cfg Config
}

// NewSMTP constructs an SMTPMailer.
func NewSMTP(cfg Config) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSendTimeout
	}
	return &SMTPMailer{cfg: cfg}
}

// Send delivers one HTML message. The attempt is bounded by the configured
// timeout and the context deadline, whichever is sooner.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m == nil {
		return errors.New("mailer: not configured")
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("mailer: empty recipient")
	}
	if strings.TrimSpace(m.cfg.Host) == "" {
		return errors.New("mailer: smtp host not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	deadline := time.Now().Add(m.cfg.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	conn, errDial := net.DialTimeout("tcp", addr, time.Until(deadline))
	if errDial != nil {
		return fmt.Errorf("mailer: dial %s: %w", addr, errDial)
	}
	if errDeadline := conn.SetDeadline(deadline); errDeadline != nil {
		_ = conn.Close()
		return fmt.Errorf("mailer: set deadline: %w", errDeadline)
	}

	client, errClient := smtp.NewClient(conn, m.cfg.Host)
	if errClient != nil {
		_ = conn.Close()
		return fmt.Errorf("mailer: handshake: %w", errClient)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if errTLS := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); errTLS != nil {
			return fmt.Errorf("mailer: starttls: %w", errTLS)
		}
	}
	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if errAuth := client.Auth(auth); errAuth != nil {
			return fmt.Errorf("mailer: auth: %w", errAuth)
		}
	}

	if errMail := client.Mail(m.cfg.From); errMail != nil {
		return fmt.Errorf("mailer: mail from: %w", errMail)
	}
	if errRcpt := client.Rcpt(to); errRcpt != nil {
		return fmt.Errorf("mailer: rcpt to %s: %w", to, errRcpt)
	}

	writer, errData := client.Data()
	if errData != nil {
		return fmt.Errorf("mailer: data: %w", errData)
	}
	msg := buildMessage(m.cfg.From, to, subject, htmlBody)
	if _, errWrite := writer.Write([]byte(msg)); errWrite != nil {
		_ = writer.Close()
		return fmt.Errorf("mailer: write body: %w", errWrite)
	}
	if errClose := writer.Close(); errClose != nil {
		return fmt.Errorf("mailer: finish body: %w", errClose)
	}
	return client.Quit()
}

func buildMessage(from, to, subject, htmlBody string) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return b.String()
}
