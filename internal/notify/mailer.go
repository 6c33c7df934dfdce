// Package notify sends alert emails over SMTP.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/kozaktomas/cybereye/internal/config"
)

// ErrEmailDisabled is returned when sender credentials are not configured.
var ErrEmailDisabled = errors.New("email not configured")

// Alert is one outgoing notification.
type Alert struct {
	Subject    string
	Body       string
	Attachment string // path of the photo to attach, optional
}

// Mailer sends alerts through an authenticated SMTP server.
type Mailer struct {
	cfg config.EmailConfig
}

// NewMailer creates a mailer for the given SMTP settings.
func NewMailer(cfg config.EmailConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Enabled reports whether the sender address and app password are set.
func (m *Mailer) Enabled() bool {
	return m.cfg.Enabled()
}

// Recipient returns the address alerts are delivered to.
func (m *Mailer) Recipient() string {
	return m.cfg.Recipient()
}

func (m *Mailer) buildMessage(a Alert) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.Username); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(m.Recipient()); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(a.Subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, a.Body)
	if a.Attachment != "" {
		msg.AttachFile(a.Attachment)
	}
	return msg, nil
}

func (m *Mailer) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
	}
	if m.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(m.cfg.Timeout))
	}
	// Port 465 speaks TLS from the first byte; anything else negotiates STARTTLS.
	if m.cfg.SMTPPort == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(m.cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return client, nil
}

// Send delivers the alert. It makes a single attempt.
func (m *Mailer) Send(ctx context.Context, a Alert) error {
	if !m.Enabled() {
		return ErrEmailDisabled
	}

	msg, err := m.buildMessage(a)
	if err != nil {
		return err
	}
	client, err := m.newClient()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
