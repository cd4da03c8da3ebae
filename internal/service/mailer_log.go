package service

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"
)

// LogMailer renders mail and logs it instead of delivering. Used when no transport is configured.
// Links carry live tokens, so only the redacted form is logged at info level.
type LogMailer struct {
	Logger logrus.FieldLogger
}

func (m LogMailer) Send(ctx context.Context, to string, template string, vars map[string]string) error {
	email, err := RenderEmail(template, vars)
	if err != nil {
		return err
	}
	logger := m.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithFields(logrus.Fields{
		"to":       to,
		"template": template,
		"subject":  email.Subject,
	})
	entry.WithField("link", redactLink(vars["link"])).Info("email delivery skipped: no mail transport configured")
	entry.WithField("link", vars["link"]).Debug("undelivered email link")
	return nil
}

func redactLink(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}
	query := parsed.Query()
	if query.Has("token") {
		query.Set("token", "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}
