package service

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

type emailTemplate struct {
	subject string
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

type RenderedEmail struct {
	Subject string
	HTML    string
	Text    string
}

var emailTemplates = map[string]emailTemplate{
	TemplateEmailVerification: {
		subject: "Verify your email address",
		html: htmltemplate.Must(htmltemplate.New("verify_html").Parse(
			`<p>Hello {{.name}},</p><p>Confirm your email address for the school portal:</p>` +
				`<p><a href="{{.link}}">Verify Email</a></p><p>The link expires in 24 hours.</p>`)),
		text: texttemplate.Must(texttemplate.New("verify_text").Parse(
			"Hello {{.name}},\n\nConfirm your email address for the school portal:\n{{.link}}\n\nThe link expires in 24 hours.\n")),
	},
	TemplatePasswordReset: {
		subject: "Reset your password",
		html: htmltemplate.Must(htmltemplate.New("reset_html").Parse(
			`<p>Hello {{.name}},</p><p>Use the link below to choose a new password:</p>` +
				`<p><a href="{{.link}}">Reset Password</a></p><p>The link expires in 1 hour. Ignore this email if you did not ask for it.</p>`)),
		text: texttemplate.Must(texttemplate.New("reset_text").Parse(
			"Hello {{.name}},\n\nUse the link below to choose a new password:\n{{.link}}\n\nThe link expires in 1 hour. Ignore this email if you did not ask for it.\n")),
	},
}

func RenderEmail(name string, vars map[string]string) (*RenderedEmail, error) {
	tmpl, ok := emailTemplates[name]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", name)
	}

	var html bytes.Buffer
	if err := tmpl.html.Execute(&html, vars); err != nil {
		return nil, fmt.Errorf("render %s html: %w", name, err)
	}
	var text bytes.Buffer
	if err := tmpl.text.Execute(&text, vars); err != nil {
		return nil, fmt.Errorf("render %s text: %w", name, err)
	}
	return &RenderedEmail{Subject: tmpl.subject, HTML: html.String(), Text: text.String()}, nil
}
