package mailer

import "context"

type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers one message and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, email Email) (string, error)
}
