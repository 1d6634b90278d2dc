// Package email delivers new tender batches over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/JakeFAU/tenderwatch/internal/tender"
)

// Config holds the relay, account and recipient for notification mails.
type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	To            string
	SubjectPrefix string
	Timeout       time.Duration
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Notifier mails the JSON batch with the artifact attached.
type Notifier struct {
	cfg    Config
	sender sender
}

// New validates cfg and builds an implicit-TLS SMTP client with PLAIN auth.
func New(cfg Config) (*Notifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &Notifier{cfg: cfg, sender: client}, nil
}

func newWithSender(cfg Config, s sender) (*Notifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Notifier{cfg: cfg, sender: s}, nil
}

func (c Config) validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("mail.host is required")
	case c.Port <= 0:
		return fmt.Errorf("mail.port must be > 0")
	case c.Username == "":
		return fmt.Errorf("mail account is required (GMAIL_USER)")
	case c.Password == "":
		return fmt.Errorf("mail app password is required (APP_PASSWORD)")
	case c.To == "":
		return fmt.Errorf("mail recipient is required (MAIL_TO)")
	}
	return nil
}

// Name identifies the notifier in logs.
func (n *Notifier) Name() string {
	return "email"
}

// Notify composes and sends the notification mail.
func (n *Notifier) Notify(ctx context.Context, note tender.Notification) error {
	msg, err := n.Compose(note)
	if err != nil {
		return err
	}
	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Compose builds the message: JSON body as plain text plus the artifact attachment.
func (n *Notifier) Compose(note tender.Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.Username); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(n.cfg.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(Subject(n.cfg.SubjectPrefix, note.Date))
	msg.SetDateWithValue(note.Date)
	msg.SetBodyString(mail.TypeTextPlain, string(note.Body))
	if note.ArtifactName != "" {
		msg.AttachReadSeeker(note.ArtifactName, bytes.NewReader(note.Body))
	}
	return msg, nil
}

// Subject renders "<prefix> - YYYY-MM-DD".
func Subject(prefix string, day time.Time) string {
	if prefix == "" {
		prefix = "NEW eZamowienia Found"
	}
	return fmt.Sprintf("%s - %s", prefix, day.Format("2006-01-02"))
}
