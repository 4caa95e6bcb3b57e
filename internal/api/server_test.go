package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/access-realty/directlist/internal/attribution"
	"github.com/access-realty/directlist/internal/brand"
	"github.com/access-realty/directlist/internal/lead"
	"github.com/access-realty/directlist/internal/model"
	"github.com/access-realty/directlist/internal/parcel"
	"github.com/access-realty/directlist/internal/store"
	"github.com/access-realty/directlist/pkg/calendly"
	"github.com/access-realty/directlist/pkg/stripe"
)

const testSigningKey = "whsec_test"

type fakePayments struct {
	lastReq stripe.CheckoutSessionRequest
	err     error
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, req stripe.CheckoutSessionRequest) (*stripe.CheckoutSession, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}, nil
}

func (f *fakePayments) GetCheckoutSession(_ context.Context, id string) (*stripe.CheckoutSession, error) {
	return &stripe.CheckoutSession{ID: id}, nil
}

func newTestServer(t *testing.T, opts ...Option) (*Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	tracker := attribution.NewTracker(st)
	leads := lead.NewService(st, tracker)

	cfg := Config{
		CalendlySigningKey: testSigningKey,
		Checkout: CheckoutConfig{
			Prices:     map[string]string{"uplist": "price_uplist", "directlist": "price_directlist"},
			SuccessURL: "https://accessrealty.com/checkout/success",
			CancelURL:  "https://accessrealty.com/checkout/cancel",
		},
		Brand: brand.Config{
			PrimaryHost:   "accessrealty.com",
			SecondaryHost: "directlist.com",
			RoutePrefix:   "/directlist",
		},
	}
	return NewServer(cfg, st, tracker, leads, opts...), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResp(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestVisitorCookieIssued(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/track", map[string]string{"url": "https://accessrealty.com/"})
	assert.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, VisitorCookie, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestTrackThenAttribution(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	visitor := &http.Cookie{Name: VisitorCookie, Value: "0e84e8a9-29fb-4a5c-a2f1-fb47dca1a53a"}

	rec := doJSON(t, h, http.MethodPost, "/api/track",
		map[string]string{"url": "https://accessrealty.com/?utm_source=google&utm_medium=cpc&utm_campaign=spring_sale"}, visitor)
	require.Equal(t, http.StatusOK, rec.Code)

	// later visit from a different campaign moves latest, not first
	rec = doJSON(t, h, http.MethodPost, "/api/track",
		map[string]string{"url": "https://accessrealty.com/?utm_source=facebook&utm_medium=social"}, visitor)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/attribution?url="+
		"https%3A%2F%2Faccessrealty.com%2Fsell%3Futm_source%3Dnewsletter", nil, visitor)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		FirstTouch      *attribution.TrackingParams `json:"first_touch"`
		LatestTouch     *attribution.TrackingParams `json:"latest_touch"`
		ConvertingTouch *attribution.TrackingParams `json:"converting_touch"`
		Ready           bool                        `json:"ready"`
	}
	decodeResp(t, rec, &resp)
	assert.True(t, resp.Ready)
	require.NotNil(t, resp.FirstTouch)
	assert.Equal(t, "google", resp.FirstTouch.UTMSource)
	require.NotNil(t, resp.LatestTouch)
	assert.Equal(t, "facebook", resp.LatestTouch.UTMSource)
	require.NotNil(t, resp.ConvertingTouch)
	assert.Equal(t, "newsletter", resp.ConvertingTouch.UTMSource)
}

func TestCreateLead(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Handler()
	visitor := &http.Cookie{Name: VisitorCookie, Value: "0e84e8a9-29fb-4a5c-a2f1-fb47dca1a53a"}

	doJSON(t, h, http.MethodPost, "/api/track",
		map[string]string{"url": "https://accessrealty.com/?utm_source=google&utm_medium=cpc"}, visitor)

	rec := doJSON(t, h, http.MethodPost, "/api/leads", map[string]string{
		"name":     "Jordan Reyes",
		"email":    "jordan@example.com",
		"source":   "sell_form",
		"page_url": "https://accessrealty.com/sell",
	}, visitor)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created model.Lead
	decodeResp(t, rec, &created)
	assert.NotEmpty(t, created.ID)
	require.NotNil(t, created.FirstTouch)
	assert.Equal(t, "google", created.FirstTouch.UTMSource)

	stored, err := st.GetLead(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jordan Reyes", stored.Name)
}

func TestCreateLeadValidation(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/leads", map[string]string{
		"email": "jordan@example.com", "source": "sell_form",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/leads", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateInquiry(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/inquiries", map[string]string{
		"name":    "Sam Ortiz",
		"email":   "sam@example.com",
		"program": "seller_finance",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created model.Inquiry
	decodeResp(t, rec, &created)
	assert.Equal(t, "seller_finance", created.Program)
}

func TestQuizRecommend(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/quiz/recommend", map[string]any{
		"timeline":          "under_2_weeks",
		"condition":         "needs_major_repairs",
		"goal":              "certain_close",
		"mortgage":          "small_balance",
		"open_to_showings":  false,
		"needs_funds_early": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Best struct {
			Option string `json:"option"`
			Card   struct {
				Title string `json:"title"`
			} `json:"card"`
		} `json:"best"`
		Secondary []json.RawMessage `json:"secondary"`
	}
	decodeResp(t, rec, &resp)
	assert.Equal(t, "cash_offer", resp.Best.Option)
	assert.NotEmpty(t, resp.Best.Card.Title)
	assert.LessOrEqual(t, len(resp.Secondary), 2)
}

func TestQuizRecommendIncomplete(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/quiz/recommend", map[string]any{
		"timeline": "under_2_weeks",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCheckout(t *testing.T) {
	payments := &fakePayments{}
	s, _ := newTestServer(t, WithPayments(payments))

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/checkout", map[string]string{
		"option":  "uplist",
		"email":   "seller@example.com",
		"address": "101 Maple St",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	decodeResp(t, rec, &resp)
	assert.Equal(t, "cs_1", resp["session_id"])
	assert.Contains(t, resp["checkout_url"], "checkout.stripe.com")

	assert.Equal(t, "price_uplist", payments.lastReq.PriceID)
	assert.Equal(t, "uplist", payments.lastReq.Metadata["selling_option"])
}

func TestCheckoutUnknownOption(t *testing.T) {
	s, _ := newTestServer(t, WithPayments(&fakePayments{}))
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/checkout", map[string]string{
		"option": "timeshare",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutUnpricedOption(t *testing.T) {
	s, _ := newTestServer(t, WithPayments(&fakePayments{}))
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/checkout", map[string]string{
		"option": "cash_offer",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no package price")
}

func TestCheckoutUnconfigured(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/checkout", map[string]string{
		"option": "uplist",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestParcelLookup(t *testing.T) {
	s, st := newTestServer(t)
	s.resolver = parcel.NewResolver(st, nil)

	_, err := st.UpsertParcels(context.Background(), []model.Parcel{
		{APN: "123-45-678", Address: "101 Maple St", City: "Boise", State: "ID"},
	})
	require.NoError(t, err)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/parcels?address=101+Maple+St", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var p model.Parcel
	decodeResp(t, rec, &p)
	assert.Equal(t, "123-45-678", p.APN)

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/parcels?address=999+Nowhere+Ln", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/parcels", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func signWebhook(body []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testSigningKey))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return "t=" + strconv.FormatInt(ts, 10) + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, h http.Handler, body []byte, sig string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/calendly", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set(calendly.SignatureHeader, sig)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCalendlyWebhookCreatesMeeting(t *testing.T) {
	s, st := newTestServer(t)
	body := []byte(`{
		"event": "invitee.created",
		"payload": {
			"name": "Sam Ortiz",
			"email": "sam@example.com",
			"scheduled_event": {
				"uri": "https://api.calendly.com/scheduled_events/abc-123",
				"name": "Seller Consult",
				"start_time": "2026-04-01T15:00:00Z"
			}
		}
	}`)

	rec := postWebhook(t, s.Handler(), body, signWebhook(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// cancel flows through to the stored meeting
	cancelBody := []byte(`{
		"event": "invitee.canceled",
		"payload": {
			"scheduled_event": {"uri": "https://api.calendly.com/scheduled_events/abc-123"}
		}
	}`)
	rec = postWebhook(t, s.Handler(), cancelBody, signWebhook(cancelBody))
	assert.Equal(t, http.StatusOK, rec.Code)

	err := st.CancelMeeting(context.Background(), "https://api.calendly.com/scheduled_events/abc-123")
	require.NoError(t, err) // still present, already canceled
}

func TestCalendlyWebhookRejectsBadSignature(t *testing.T) {
	s, _ := newTestServer(t)
	body := []byte(`{"event":"invitee.created","payload":{}}`)

	rec := postWebhook(t, s.Handler(), body, "t=1,v1=deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(t, s.Handler(), body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCalendlyWebhookIgnoresUnknownEvents(t *testing.T) {
	s, _ := newTestServer(t)
	body := []byte(`{"event":"routing_form.submitted","payload":{}}`)
	rec := postWebhook(t, s.Handler(), body, signWebhook(body))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBrandHostServesAPI(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "http://directlist.com/health", nil)
	req.Host = "directlist.com"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
