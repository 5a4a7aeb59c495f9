package magiclink

import (
	"context"
	"fmt"

	mg "github.com/mailgun/mailgun-go/v4"
)

// Mailgun sends emails via the Mailgun API.
type Mailgun struct {
	Domain string
	APIKey string

	// Sender is the sender address.
	Sender string

	// APIBase overrides the Mailgun API base URL if not empty (e.g. the EU region).
	APIBase string
}

// NewMailgun creates a new Mailgun sender.
func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{Domain: domain, APIKey: apiKey, Sender: sender}
}

// Send sends a plain text email. It implements SendEmailFunc.
func (m *Mailgun) Send(ctx context.Context, to, subject, body string) error {
	if m.Domain == "" || m.APIKey == "" {
		return fmt.Errorf("%w: Mailgun domain or API key not set", ErrMisconfigured)
	}
	if m.Sender == "" {
		return fmt.Errorf("%w: sender address not set", ErrMisconfigured)
	}

	client := mg.NewMailgun(m.Domain, m.APIKey)
	if m.APIBase != "" {
		client.SetAPIBase(m.APIBase)
	}
	msg := client.NewMessage(m.Sender, subject, body, to)

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if _, _, err := client.Send(ctx, msg); err != nil {
		return fmt.Errorf("mailgun send failed: %w", err)
	}
	return nil
}
