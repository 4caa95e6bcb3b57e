// Package calendly fetches scheduled events and verifies webhook signatures.
package calendly

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/access-realty/directlist/internal/resilience"
)

const defaultBaseURL = "https://api.calendly.com"

// Client defines the Calendly API operations used by meeting sync.
type Client interface {
	GetEvent(ctx context.Context, eventURI string) (*Event, error)
	ListInvitees(ctx context.Context, eventURI string) ([]Invitee, error)
}

// Event is a scheduled Calendly event.
type Event struct {
	URI       string    `json:"uri"`
	Name      string    `json:"name"`
	Status    string    `json:"status"` // "active" or "canceled"
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Invitee is a person booked on an event.
type Invitee struct {
	URI    string `json:"uri"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

// APIError is returned when Calendly responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("calendly: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
}

// NewClient creates a Calendly client with a personal access token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(5, 5),
		retry:   resilience.DefaultPolicy("calendly"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetEvent fetches a scheduled event. eventURI is the full API URI delivered
// in webhook payloads; only its path is reused against the configured base.
func (c *httpClient) GetEvent(ctx context.Context, eventURI string) (*Event, error) {
	var resp struct {
		Resource Event `json:"resource"`
	}
	if err := c.get(ctx, eventPath(eventURI), &resp); err != nil {
		return nil, eris.Wrapf(err, "calendly: get event %s", eventURI)
	}
	return &resp.Resource, nil
}

func (c *httpClient) ListInvitees(ctx context.Context, eventURI string) ([]Invitee, error) {
	var resp struct {
		Collection []Invitee `json:"collection"`
	}
	if err := c.get(ctx, eventPath(eventURI)+"/invitees", &resp); err != nil {
		return nil, eris.Wrapf(err, "calendly: list invitees %s", eventURI)
	}
	return resp.Collection, nil
}

// eventPath reduces a full event URI to its API path so tests can point the
// client at a local server.
func eventPath(eventURI string) string {
	const marker = "/scheduled_events/"
	if i := strings.LastIndex(eventURI, marker); i >= 0 {
		return eventURI[i:]
	}
	return marker + eventURI
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limit wait")
	}

	return c.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "execute request")
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "read response body")
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
			if resilience.RetryableStatus(resp.StatusCode) {
				return resilience.MarkRetryable(apiErr, resp.StatusCode)
			}
			return apiErr
		}
		return eris.Wrap(json.Unmarshal(data, out), "decode response")
	})
}
