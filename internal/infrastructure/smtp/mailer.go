package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/go-user-auth/internal/config"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	send     sendFunc
}

func NewMailer(cfg config.SMTP) Mailer {
	return newMailer(cfg, smtp.SendMail)
}

func newMailer(cfg config.SMTP, send sendFunc) *mailer {
	return &mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		from:     cfg.From,
		username: cfg.Username,
		password: cfg.Password,
		send:     send,
	}
}

func (m *mailer) SendEmail(to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("send email: header contains line break")
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		m.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return m.send(addr, auth, m.from, []string{to}, []byte(msg))
}

// VerificationSender renders the verification email and hands it to a Mailer.
type VerificationSender struct {
	mailer   Mailer
	linkBase string
}

func NewVerificationSender(m Mailer, linkBase string) *VerificationSender {
	return &VerificationSender{mailer: m, linkBase: linkBase}
}

// SendVerification delivers the link for token to the recipient. net/smtp has
// no deadline support, so ctx is only checked before the send starts.
func (s *VerificationSender) SendVerification(ctx context.Context, to, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	link, err := s.link(token)
	if err != nil {
		return err
	}
	body := fmt.Sprintf(`<p>Welcome!</p><p>Please confirm your email address by clicking the link below:</p><p><a href="%s">Verify email</a></p><p>If you did not create an account you can ignore this message.</p>`, link)
	if err := s.mailer.SendEmail(to, "Verify your email", body); err != nil {
		return fmt.Errorf("send verification to %s: %w", to, err)
	}
	return nil
}

func (s *VerificationSender) link(token string) (string, error) {
	u, err := url.Parse(s.linkBase)
	if err != nil {
		return "", fmt.Errorf("parse verify link base: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
