package service

import (
	"context"
	"errors"
	"strings"

	"github.com/resend/resend-go/v2"
)

type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(apiKey string, from string) (*ResendMailer, error) {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return nil, errors.New("resend mailer requires an API key and sender address")
	}
	return &ResendMailer{client: resend.NewClient(apiKey), from: from}, nil
}

func (m *ResendMailer) Send(ctx context.Context, to string, template string, vars map[string]string) error {
	email, err := RenderEmail(template, vars)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err = m.client.Emails.Send(&resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	})
	return err
}
