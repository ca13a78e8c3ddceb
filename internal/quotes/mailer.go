package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

var ErrMailNotConfigured = errors.New("smtp not configured")

// Mailer delivers a quote to the shop administrator.
type Mailer interface {
	SendQuote(ctx context.Context, r Record) error
}

type SMTPConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	AdminEmail string
}

func (c SMTPConfig) complete() bool {
	return c.Host != "" && c.Port != 0 && c.User != "" && c.Password != "" && c.AdminEmail != ""
}

type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// SendQuote mails the record as indented JSON. An incomplete configuration
// fails with ErrMailNotConfigured at send time.
func (m *SMTPMailer) SendQuote(ctx context.Context, r Record) error {
	if !m.cfg.complete() {
		return ErrMailNotConfigured
	}

	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	email := r.Email()
	if email == "" {
		email = "sin email"
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.User); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(m.cfg.AdminEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject("Nueva cotización - " + email)
	msg.SetBodyString(mail.TypeTextPlain, string(body))

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.User),
		mail.WithPassword(m.cfg.Password),
	}
	if m.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
