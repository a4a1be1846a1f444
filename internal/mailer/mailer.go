// Package mailer sends the OTP verification email.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"mentorbridge/backend/internal/config"
	"mentorbridge/backend/internal/localization"
	"mentorbridge/backend/internal/logger"

	"github.com/rs/zerolog"
)

// Mailer delivers an OTP code to a user.
type Mailer interface {
	SendOTP(ctx context.Context, to, name, code string) error
}

// Email is a rendered plain-text message.
type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Bytes encodes the message as RFC 5322 text.
func (e Email) Bytes() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.From)
	fmt.Fprintf(&b, "To: %s\r\n", e.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", e.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(e.Body, "\n", "\r\n"))
	return []byte(b.String())
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	host, username, password string
	port                     int
	fromName, fromEmail      string
	lang                     string
	localizer                *localization.Localizer
	send                     sendFunc
}

func NewSMTPMailer(cfg *config.Config, l *localization.Localizer) *SMTPMailer {
	return &SMTPMailer{
		host:      cfg.SMTP.Host,
		port:      cfg.SMTP.Port,
		username:  cfg.SMTP.Username,
		password:  cfg.SMTP.Password,
		fromName:  cfg.SMTP.FromName,
		fromEmail: cfg.SMTP.FromEmail,
		lang:      cfg.SMTP.Language,
		localizer: l,
		send:      smtp.SendMail,
	}
}

func (m *SMTPMailer) SendOTP(ctx context.Context, to, name, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	email := renderOTP(m.localizer, m.lang, fmt.Sprintf("%q <%s>", m.fromName, m.fromEmail), to, name, code)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	if err := m.send(addr, auth, m.fromEmail, []string{to}, email.Bytes()); err != nil {
		return fmt.Errorf("send otp email to %s: %w", to, err)
	}
	return nil
}

// LogMailer only logs the rendered email. It is used when no SMTP host is configured.
type LogMailer struct {
	lang      string
	localizer *localization.Localizer
	log       zerolog.Logger
}

func NewLogMailer(lang string, l *localization.Localizer) *LogMailer {
	return &LogMailer{lang: lang, localizer: l, log: logger.With("mailer")}
}

func (m *LogMailer) SendOTP(_ context.Context, to, name, code string) error {
	email := renderOTP(m.localizer, m.lang, "log", to, name, code)
	m.log.Info().Str("to", to).Str("subject", email.Subject).Str("otp", code).Msg("SMTP not configured, OTP email not sent")
	return nil
}

// New picks SMTP when a host is configured and the log mailer otherwise.
func New(cfg *config.Config, l *localization.Localizer) Mailer {
	if cfg.SMTP.Host == "" {
		return NewLogMailer(cfg.SMTP.Language, l)
	}
	return NewSMTPMailer(cfg, l)
}

func renderOTP(l *localization.Localizer, lang, from, to, name, code string) Email {
	if name == "" {
		name = to
	}
	return Email{
		From:    from,
		To:      to,
		Subject: l.GetString(lang, "otp_email_subject"),
		Body:    l.Format(lang, "otp_email_body", name, code, int(config.OTPValidity.Minutes())),
	}
}
