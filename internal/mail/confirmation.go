package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// confirmationSubject is the subject line of the registration email.
const confirmationSubject = "Please confirm your registration"

// ConfirmationSender renders and sends registration confirmation mail.
type ConfirmationSender struct {
	mailer Mailer
	origin string
	tmpl   *template.Template
}

// NewConfirmationSender creates a confirmation sender. origin is the
// client base URL confirmation links point to.
func NewConfirmationSender(mailer Mailer, origin string) (*ConfirmationSender, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/confirmation.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse confirmation template: %w", err)
	}

	return &ConfirmationSender{
		mailer: mailer,
		origin: strings.TrimRight(origin, "/"),
		tmpl:   tmpl,
	}, nil
}

// confirmationData is the template payload.
type confirmationData struct {
	Login      string
	Origin     string
	ConfirmURL string
}

// Send renders the confirmation email for the given user and token
// and hands it to the mailer.
func (s *ConfirmationSender) Send(ctx context.Context, to, login, token string) error {
	data := confirmationData{
		Login:      login,
		Origin:     s.origin,
		ConfirmURL: fmt.Sprintf("%s/api/v1/auth/verify/%s", s.origin, token),
	}

	var body bytes.Buffer
	if err := s.tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render confirmation email: %w", err)
	}

	return s.mailer.Send(ctx, to, confirmationSubject, body.String())
}
