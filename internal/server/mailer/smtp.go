package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// SMTPConfig holds the settings for the SMTP-backed Sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers mail over SMTP, with implicit TLS on port 465 and an
// opportunistic STARTTLS upgrade on every other port.
type SMTPSender struct {
	cfg SMTPConfig

	// tlsConfig overrides the TLS client config; tests point it at a
	// local certificate pool.
	tlsConfig *tls.Config
}

// NewSMTPSender constructs an SMTP-backed Sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) SendVerificationCode(ctx context.Context, email, code string) error {
	body := "Your verification code is: " + code + "\nIt expires in a few minutes."
	return s.send(ctx, email, "Verify your email address", body)
}

func (s *SMTPSender) SendAlreadyRegistered(ctx context.Context, email string) error {
	body := "An account with this email address already exists.\n" +
		"If this was not you, you can safely ignore this message."
	return s.send(ctx, email, "Account already registered", body)
}

func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	msg := s.buildMessage(to, subject, body)

	client, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer client.Close()

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(parseAddress(s.cfg.From)); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		_ = writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	dialer := &net.Dialer{}
	if s.cfg.Port == 465 {
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, s.tlsClientConfig())
		if err != nil {
			return nil, err
		}
		return smtp.NewClient(conn, s.cfg.Host)
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return nil, err
	}
	// PlainAuth refuses to send credentials over a plaintext connection
	// to anything but localhost, so upgrade whenever the server offers it.
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(s.tlsClientConfig()); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return client, nil
}

func (s *SMTPSender) tlsClientConfig() *tls.Config {
	if s.tlsConfig != nil {
		return s.tlsConfig
	}
	return &tls.Config{ServerName: s.cfg.Host}
}

func (s *SMTPSender) buildMessage(to, subject, body string) string {
	var b strings.Builder
	b.WriteString("From: " + s.cfg.From + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.String()
}

// parseAddress extracts the bare address from "Name <addr>" style senders.
func parseAddress(from string) string {
	if start := strings.Index(from, "<"); start >= 0 {
		if end := strings.Index(from[start:], ">"); end > 0 {
			return from[start+1 : start+end]
		}
	}
	return from
}
