// Package mail delivers outbound email. The only message the service
// sends today is the registration confirmation.
package mail

import "context"

// Mailer sends a single HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// NopMailer discards every message. Used in tests and when mail
// delivery is disabled in config.
type NopMailer struct{}

// Send does nothing.
func (NopMailer) Send(context.Context, string, string, string) error { return nil }

// Ensure NopMailer implements Mailer.
var _ Mailer = NopMailer{}
