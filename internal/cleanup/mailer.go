package cleanup

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

type Email struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers one plain-text email.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// LogMailer writes emails to the log instead of sending them. It backs EMAIL_SERVICE=console.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, e Email) error {
	log.Printf("[cleanup] email to=%s subject=%q (%d bytes)", e.To, e.Subject, len(e.Body))
	return nil
}

// SMTPMailer sends through an SMTP relay with PLAIN auth when a username is set.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{Host: host, Port: port, Username: username, Password: password, From: from, send: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	from, err := mail.ParseAddress(m.From)
	if err != nil {
		return fmt.Errorf("invalid sender %q: %w", m.From, err)
	}
	to, err := mail.ParseAddress(e.To)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", e.To, err)
	}

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	send := m.send
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(addr, auth, from.Address, []string{to.Address}, buildMessage(from, to, e, time.Now())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to.Address, err)
	}
	return nil
}

func buildMessage(from, to *mail.Address, e Email, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", e.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(e.Body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}

// NewMailer picks the mailer named by EMAIL_SERVICE. Unknown names fall back to the console.
func NewMailer(service, host string, port int, username, password, from string) Mailer {
	if strings.EqualFold(service, "smtp") {
		if host == "" {
			log.Printf("[cleanup] EMAIL_SERVICE=smtp but SMTP_HOST is empty, logging emails instead")
			return LogMailer{}
		}
		return NewSMTPMailer(host, port, username, password, from)
	}
	return LogMailer{}
}
