// Package parcelapi queries a county parcel data service for property
// attributes and boundary geometry.
package parcelapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"golang.org/x/time/rate"

	"github.com/access-realty/directlist/internal/resilience"
)

// Client defines the parcel service operations.
type Client interface {
	LookupAddress(ctx context.Context, address string) (*ParcelRecord, error)
}

// ParcelRecord is a single parcel match.
type ParcelRecord struct {
	APN       string  `json:"apn"`
	Address   string  `json:"address"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Zip       string  `json:"zip"`
	AreaSqFt  float64 `json:"area_sqft"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// Geometry holds the boundary as GeoJSON-style polygon rings
	// ([ring][vertex][lon lat]). May be empty when the service returns
	// attributes only.
	Geometry [][][]float64 `json:"geometry,omitempty"`
}

// Centroid returns the parcel's representative point. When the service
// omits a precomputed point, it is derived from the boundary geometry.
func (r *ParcelRecord) Centroid() (lat, lon float64, ok bool) {
	if r.Latitude != 0 || r.Longitude != 0 {
		return r.Latitude, r.Longitude, true
	}
	if len(r.Geometry) == 0 || len(r.Geometry[0]) < 3 {
		return 0, 0, false
	}

	var flat []float64
	ends := make([]int, 0, len(r.Geometry))
	for _, ring := range r.Geometry {
		for _, vertex := range ring {
			if len(vertex) < 2 {
				return 0, 0, false
			}
			flat = append(flat, vertex[0], vertex[1])
		}
		ends = append(ends, len(flat))
	}

	poly := geom.NewPolygonFlat(geom.XY, flat, ends)
	c, err := xy.Centroid(poly)
	if err != nil {
		return 0, 0, false
	}
	return c.Y(), c.X(), true
}

// APIError is returned when the parcel service responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("parcelapi: HTTP %d: %s", e.StatusCode, e.Body)
}

// ErrNoMatch is returned when no parcel matches the queried address.
var ErrNoMatch = eris.New("parcelapi: no matching parcel")

// Option configures the httpClient.
type Option func(*httpClient)

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
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
}

// NewClient creates a parcel service client. baseURL points at the county
// data provider configured for the deployment.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(10, 10),
		retry:   resilience.DefaultPolicy("parcelapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) LookupAddress(ctx context.Context, address string) (*ParcelRecord, error) {
	if address == "" {
		return nil, eris.New("parcelapi: address is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "parcelapi: rate limit wait")
	}

	query := url.Values{}
	query.Set("address", address)

	var resp struct {
		Parcels []ParcelRecord `json:"parcels"`
	}
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.baseURL+"/parcels?"+query.Encode(), nil)
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		r, err := c.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "execute request")
		}
		defer r.Body.Close()

		data, err := io.ReadAll(r.Body)
		if err != nil {
			return eris.Wrap(err, "read response body")
		}

		if r.StatusCode < 200 || r.StatusCode >= 300 {
			apiErr := &APIError{StatusCode: r.StatusCode, Body: string(data)}
			if resilience.RetryableStatus(r.StatusCode) {
				return resilience.MarkRetryable(apiErr, r.StatusCode)
			}
			return apiErr
		}
		return eris.Wrap(json.Unmarshal(data, &resp), "decode response")
	})
	if err != nil {
		return nil, eris.Wrapf(err, "parcelapi: lookup %s", address)
	}

	if len(resp.Parcels) == 0 {
		return nil, ErrNoMatch
	}
	return &resp.Parcels[0], nil
}
