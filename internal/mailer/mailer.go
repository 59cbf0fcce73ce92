// Package mailer provides the outbound email transport. The notifier only
// depends on the Transport interface, so tests can substitute a fake and the
// SMTP details stay contained here.
package mailer

import (
	"errors"

	gomail "gopkg.in/gomail.v2"
)

// Transport sends a single plain-text email and reports success or failure.
type Transport interface {
	Send(to, subject, body string) error
}

// ErrNotConfigured is returned when no SMTP credentials were supplied. The
// attempt is still recorded in email_logs by the caller, matching how an
// unconfigured deployment behaves.
var ErrNotConfigured = errors.New("mailer: no SMTP credentials configured")

// SMTP is the production Transport, sending through an SMTP relay with
// STARTTLS (gomail negotiates it automatically on port 587).
type SMTP struct {
	dialer *gomail.Dialer
	sender string
}

// NewSMTP constructs an SMTP transport. sender is the From address.
func NewSMTP(host string, port int, username, password, sender string) *SMTP {
	return &SMTP{
		dialer: gomail.NewDialer(host, port, username, password),
		sender: sender,
	}
}

// Send delivers one message. Each call dials a fresh connection; send volume
// here is a handful of messages per scheduled run, so pooling would buy nothing.
func (s *SMTP) Send(to, subject, body string) error {
	if s.dialer.Username == "" {
		return ErrNotConfigured
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.sender)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	return s.dialer.DialAndSend(m)
}
