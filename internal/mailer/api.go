package mailer

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/alex-rublevsky/rublevsky-studio/pkg/httpclient"
)

// APIConfig configures delivery through a JSON email API that accepts
// POST {from, to, subject, html, text} with a bearer key.
type APIConfig struct {
	Endpoint string
	APIKey   string
	From     string
}

type doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// APISender posts messages to an HTTP email provider.
type APISender struct {
	client doer
	cfg    APIConfig
}

// NewAPISender creates a sender that goes through client, normally a
// *httpclient.CircuitBreakerClient.
func NewAPISender(client doer, cfg APIConfig) *APISender {
	return &APISender{client: client, cfg: cfg}
}

type apiPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// Name returns "api".
func (s *APISender) Name() string { return "api" }

// Send posts msg. Any non-2xx response is an error.
func (s *APISender) Send(ctx context.Context, msg *Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, s.cfg.Endpoint, apiPayload{
		From:    s.cfg.From,
		To:      []string{msg.To},
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("email api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email api: status %d: %s", resp.StatusCode, body)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
