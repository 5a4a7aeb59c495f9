package magiclink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMailjetURL is the Mailjet send API endpoint.
const DefaultMailjetURL = "https://api.mailjet.com/v3.1/send"

// sendTimeout limits a single email API call.
const sendTimeout = 10 * time.Second

// Mailjet sends emails via the Mailjet HTTP API.
type Mailjet struct {
	APIKey    string
	APISecret string

	// From is the sender address.
	From string

	// URL of the send endpoint, DefaultMailjetURL if empty.
	URL string

	// HTTPClient to use, http.DefaultClient if nil.
	HTTPClient *http.Client
}

// NewMailjet creates a new Mailjet sender.
func NewMailjet(apiKey, apiSecret, from string) *Mailjet {
	return &Mailjet{APIKey: apiKey, APISecret: apiSecret, From: from}
}

type mailjetAddress struct {
	Email string `json:"Email"`
}

type mailjetMessage struct {
	From     mailjetAddress   `json:"From"`
	To       []mailjetAddress `json:"To"`
	Subject  string           `json:"Subject"`
	TextPart string           `json:"TextPart"`
}

type mailjetPayload struct {
	Messages []mailjetMessage `json:"Messages"`
}

// Send sends a plain text email. It implements SendEmailFunc.
func (m *Mailjet) Send(ctx context.Context, to, subject, body string) error {
	if m.APIKey == "" || m.APISecret == "" {
		return fmt.Errorf("%w: Mailjet API key or secret not set", ErrMisconfigured)
	}
	if m.From == "" {
		return fmt.Errorf("%w: sender address not set", ErrMisconfigured)
	}

	payload, err := json.Marshal(mailjetPayload{Messages: []mailjetMessage{{
		From:     mailjetAddress{Email: m.From},
		To:       []mailjetAddress{{Email: to}},
		Subject:  subject,
		TextPart: body,
	}}})
	if err != nil {
		return err
	}

	url := m.URL
	if url == "" {
		url = DefaultMailjetURL
	}
	client := m.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.SetBasicAuth(m.APIKey, m.APISecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("mailjet request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mailjet responded %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}
