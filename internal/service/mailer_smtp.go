package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPMailer struct {
	client *mail.Client
	from   string
}

func NewSMTPMailer(config SMTPConfig) (*SMTPMailer, error) {
	if strings.TrimSpace(config.Host) == "" || strings.TrimSpace(config.From) == "" {
		return nil, errors.New("smtp mailer requires a host and sender address")
	}
	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}
	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: config.From}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to string, template string, vars map[string]string) error {
	email, err := RenderEmail(template, vars)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, email.HTML)

	return m.client.DialAndSendWithContext(ctx, msg)
}
