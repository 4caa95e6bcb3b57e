// Package slack posts notifications to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/access-realty/directlist/internal/resilience"
)

// Client defines the Slack webhook operations used for lead alerts.
type Client interface {
	Post(ctx context.Context, msg Message) error
}

// Message is the incoming-webhook payload. Blocks take precedence over Text
// when both are set; Text then serves as the notification fallback.
type Message struct {
	Text   string  `json:"text,omitempty"`
	Blocks []Block `json:"blocks,omitempty"`
}

// Block is a Block Kit layout block.
type Block struct {
	Type   string       `json:"type"`
	Text   *TextObject  `json:"text,omitempty"`
	Fields []TextObject `json:"fields,omitempty"`
}

// TextObject is a Block Kit text object.
type TextObject struct {
	Type string `json:"type"` // "plain_text" or "mrkdwn"
	Text string `json:"text"`
}

// SectionBlock builds a mrkdwn section block.
func SectionBlock(text string) Block {
	return Block{Type: "section", Text: &TextObject{Type: "mrkdwn", Text: text}}
}

// FieldsBlock builds a section block with side-by-side mrkdwn fields.
func FieldsBlock(fields ...string) Block {
	b := Block{Type: "section"}
	for _, f := range fields {
		b.Fields = append(b.Fields, TextObject{Type: "mrkdwn", Text: f})
	}
	return b
}

// APIError is returned when Slack responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	webhookURL string
	http       *http.Client
	retry      resilience.Policy
}

// NewClient creates a Slack webhook client.
func NewClient(webhookURL string, opts ...Option) Client {
	c := &httpClient{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 10 * time.Second},
		retry:      resilience.DefaultPolicy("slack"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Post(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "slack: marshal message")
	}

	return c.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return eris.Wrap(err, "slack: create request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "slack: post webhook")
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
			if resilience.RetryableStatus(resp.StatusCode) {
				return resilience.MarkRetryable(apiErr, resp.StatusCode)
			}
			return apiErr
		}
		return nil
	})
}
