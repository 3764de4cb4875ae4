package mailer

import (
	"fmt"
	"os"

	"gopkg.in/gomail.v2"
)

// NotifyError carries a human-readable reason for a failed delivery.
// Notification failures are non-fatal to the submission: callers log the
// reason and report a degraded outcome instead of aborting.
type NotifyError struct {
	Reason string
}

func (e *NotifyError) Error() string {
	return "notification failed: " + e.Reason
}

// Config holds the fixed outbound relay and recipient identity.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Mailer delivers submission notifications over SMTP. One attempt per call,
// no retry, no queue.
type Mailer struct {
	cfg Config
}

func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg}
}

// Notify sends one message with the given attachments (each attached as a
// binary part named by its base filename) to the configured recipient.
// Every failure mode — missing configuration, unreadable attachment,
// transport or auth error — comes back as a *NotifyError; Notify never
// panics into the caller.
func (m *Mailer) Notify(subject, body string, attachments []string) error {
	if m.cfg.Host == "" || m.cfg.To == "" {
		return &NotifyError{Reason: "mail relay not configured (SMTP_HOST / MAIL_TO)"}
	}

	// stat up front so the error names the unreadable file instead of
	// surfacing as an opaque send failure
	for _, path := range attachments {
		if _, err := os.Stat(path); err != nil {
			return &NotifyError{Reason: fmt.Sprintf("attachment %s unreadable: %v", path, err)}
		}
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", m.cfg.To)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	for _, path := range attachments {
		msg.Attach(path)
	}

	d := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if err := d.DialAndSend(msg); err != nil {
		return &NotifyError{Reason: fmt.Sprintf("smtp %s:%d: %v", m.cfg.Host, m.cfg.Port, err)}
	}
	return nil
}
