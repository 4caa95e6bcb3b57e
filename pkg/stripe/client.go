// Package stripe creates Checkout Sessions for flat-fee listing purchases.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/access-realty/directlist/internal/resilience"
)

const defaultBaseURL = "https://api.stripe.com/v1"

// Client defines the Stripe operations used by checkout.
type Client interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
}

// CheckoutSessionRequest describes a one-time payment session.
type CheckoutSessionRequest struct {
	// PriceID references a pre-configured Stripe Price for the product.
	PriceID    string
	Quantity   int64
	SuccessURL string
	CancelURL  string

	// CustomerEmail pre-fills the payment page when known.
	CustomerEmail string

	// Metadata is attached to the session for reconciliation (lead ID,
	// selling option, property address).
	Metadata map[string]string
}

// CheckoutSession is the subset of Stripe's session object we consume.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	CustomerEmail string            `json:"customer_email"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// APIError is returned when Stripe responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
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

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.Policy
}

// NewClient creates a Stripe client with the given secret key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.DefaultPolicy("stripe"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	if req.PriceID == "" {
		return nil, eris.New("stripe: price ID is required")
	}
	if req.SuccessURL == "" || req.CancelURL == "" {
		return nil, eris.New("stripe: success and cancel URLs are required")
	}

	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price]", req.PriceID)
	form.Set("line_items[0][quantity]", strconv.FormatInt(qty, 10))
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var session CheckoutSession
	if err := c.postForm(ctx, "/checkout/sessions", form, &session); err != nil {
		return nil, eris.Wrap(err, "stripe: create checkout session")
	}
	return &session, nil
}

func (c *httpClient) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := c.get(ctx, "/checkout/sessions/"+id, &session); err != nil {
		return nil, eris.Wrapf(err, "stripe: get checkout session %s", id)
	}
	return &session, nil
}

func (c *httpClient) postForm(ctx context.Context, path string, form url.Values, out any) error {
	body := form.Encode()
	return c.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return c.do(req, out)
	})
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	return c.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		return c.do(req, out)
	})
}

func (c *httpClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

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
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wrapper struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &wrapper) == nil {
			apiErr.Code = wrapper.Error.Code
			apiErr.Message = wrapper.Error.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = string(data)
		}
		if resilience.RetryableStatus(resp.StatusCode) {
			return resilience.MarkRetryable(apiErr, resp.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return eris.Wrap(err, "decode response")
		}
	}
	return nil
}
