// Package mailer sends outbound email over SMTP. The auth plugin only ever
// hands it a recipient, subject, and plain-text body; everything about
// transport (STARTTLS vs implicit TLS, auth, timeouts) stays in here.
//
// With no SMTP host configured the mailer runs disabled: messages are
// logged instead of sent, which is the right behavior for development and
// for tests that exercise the surrounding flows.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	gosmtp "net/smtp"
	"strings"
	"time"

	"github.com/oakmund/gatehouse/internal/config"
)

// dialTimeout bounds the initial TCP/TLS connection to the SMTP server.
const dialTimeout = 10 * time.Second

// Mailer sends a plain-text email to the given recipients.
type Mailer interface {
	SendMail(ctx context.Context, to []string, subject, body string) error
}

// smtpMailer implements Mailer over net/smtp with the configured transport.
type smtpMailer struct {
	cfg config.MailConfig
}

// disabledMailer logs messages instead of delivering them.
type disabledMailer struct{}

// New creates a Mailer from config. An empty SMTP host yields the disabled
// logging mailer.
func New(cfg config.MailConfig) Mailer {
	if cfg.Host == "" {
		slog.Info("smtp not configured, outbound email disabled")
		return disabledMailer{}
	}
	return &smtpMailer{cfg: cfg}
}

// SendMail logs the message instead of sending it.
func (disabledMailer) SendMail(ctx context.Context, to []string, subject, body string) error {
	slog.Info("email suppressed (smtp disabled)",
		slog.String("to", strings.Join(to, ", ")),
		slog.String("subject", subject),
	)
	return nil
}

// SendMail builds an RFC 2822 message and delivers it using the configured
// encryption mode.
func (m *smtpMailer) SendMail(ctx context.Context, to []string, subject, body string) error {
	from := mail.Address{Name: m.cfg.FromName, Address: m.cfg.FromAddress}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from.String()))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	switch m.cfg.Encryption {
	case "ssl":
		return m.sendSSL(addr, to, from.Address, msg.String())
	case "none":
		return m.sendPlain(addr, to, from.Address, msg.String())
	default: // "starttls"
		return m.sendStartTLS(addr, to, from.Address, msg.String())
	}
}

// sendStartTLS sends email using STARTTLS (port 587 typical).
func (m *smtpMailer) sendStartTLS(addr string, to []string, from, msg string) error {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := gosmtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("starting TLS: %w", err)
	}

	if err := m.authenticate(client); err != nil {
		return err
	}

	return m.sendMessage(client, from, to, msg)
}

// sendSSL sends email using implicit SSL/TLS (port 465 typical).
func (m *smtpMailer) sendSSL(addr string, to []string, from, msg string) error {
	tlsConfig := &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}
	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: dialTimeout}, "tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("connecting to %s (SSL): %w", addr, err)
	}
	defer conn.Close()

	client, err := gosmtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	if err := m.authenticate(client); err != nil {
		return err
	}

	return m.sendMessage(client, from, to, msg)
}

// sendPlain sends email without encryption.
func (m *smtpMailer) sendPlain(addr string, to []string, from, msg string) error {
	var auth gosmtp.Auth
	if m.cfg.Username != "" {
		auth = gosmtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := gosmtp.SendMail(addr, auth, from, to, []byte(msg)); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}

// authenticate runs SMTP AUTH when credentials are configured.
func (m *smtpMailer) authenticate(client *gosmtp.Client) error {
	if m.cfg.Username == "" {
		return nil
	}
	auth := gosmtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}
	return nil
}

// sendMessage handles MAIL FROM, RCPT TO, DATA for an existing SMTP client.
func (m *smtpMailer) sendMessage(client *gosmtp.Client, from string, to []string, msg string) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", recipient, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data: %w", err)
	}
	return client.Quit()
}
