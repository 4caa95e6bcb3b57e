package attribution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasTrackingParams(t *testing.T) {
	tests := []struct {
		name   string
		params TrackingParams
		want   bool
	}{
		{"all absent", TrackingParams{}, false},
		{"landing url alone is not tracking data", TrackingParams{LandingURL: "https://accessrealty.com/"}, false},
		{"utm_source", TrackingParams{UTMSource: "google"}, true},
		{"utm_medium", TrackingParams{UTMMedium: "cpc"}, true},
		{"utm_campaign", TrackingParams{UTMCampaign: "spring"}, true},
		{"utm_term", TrackingParams{UTMTerm: "sell fast"}, true},
		{"utm_content", TrackingParams{UTMContent: "ad1"}, true},
		{"gclid", TrackingParams{GCLID: "g123"}, true},
		{"fbclid", TrackingParams{FBCLID: "f456"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasTrackingParams(tt.params))
		})
	}
}

func TestFirstTouchEligible(t *testing.T) {
	tests := []struct {
		name string
		term string
		want bool
	}{
		{"absent term", "", true},
		{"ordinary term", "sell my house", true},
		{"nurture lowercase", "nurture", false},
		{"nurture mixed case", "Nurture", false},
		{"remarketing lowercase", "remarketing", false},
		{"remarketing upper case", "REMARKETING", false},
		{"term containing nurture is eligible", "nurture-adjacent", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstTouchEligible(TrackingParams{UTMTerm: tt.term}))
		})
	}
}

func TestApplyEmptyParamsIsNoop(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	existing := StoredTracking{
		FirstTouch: &TrackingParams{UTMSource: "google", CapturedAt: now.Add(-time.Hour)},
	}

	got := Apply(existing, TrackingParams{LandingURL: "https://accessrealty.com/"}, now)
	assert.Equal(t, existing, got)

	got = Apply(StoredTracking{}, TrackingParams{}, now)
	assert.Equal(t, StoredTracking{}, got)
}

func TestApplySetsBothTouchesOnEmptyRecord(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	params := TrackingParams{UTMSource: "google", UTMMedium: "cpc", LandingURL: "https://accessrealty.com/?utm_source=google"}

	got := Apply(StoredTracking{}, params, now)

	require.NotNil(t, got.FirstTouch)
	require.NotNil(t, got.LatestTouch)
	assert.Equal(t, "google", got.FirstTouch.UTMSource)
	assert.Equal(t, now, got.FirstTouch.CapturedAt)
	assert.Equal(t, *got.FirstTouch, *got.LatestTouch)
}

func TestApplyFirstTouchIsSticky(t *testing.T) {
	first := TrackingParams{UTMSource: "google", UTMMedium: "cpc"}
	second := TrackingParams{UTMSource: "facebook", UTMMedium: "paid_social"}
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(48 * time.Hour)

	rec := Apply(StoredTracking{}, first, t0)
	rec = Apply(rec, second, t1)

	require.NotNil(t, rec.FirstTouch)
	require.NotNil(t, rec.LatestTouch)
	assert.Equal(t, "google", rec.FirstTouch.UTMSource)
	assert.Equal(t, t0, rec.FirstTouch.CapturedAt)
	assert.Equal(t, "facebook", rec.LatestTouch.UTMSource)
	assert.Equal(t, t1, rec.LatestTouch.CapturedAt)
}

func TestApplyNurtureSkipsFirstTouchOnly(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	params := TrackingParams{UTMSource: "email", UTMTerm: "Nurture"}

	got := Apply(StoredTracking{}, params, now)

	assert.Nil(t, got.FirstTouch)
	require.NotNil(t, got.LatestTouch)
	assert.Equal(t, "email", got.LatestTouch.UTMSource)
}

func TestApplyEligibleTouchAfterNurtureClaimsFirstTouch(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	rec := Apply(StoredTracking{}, TrackingParams{UTMSource: "email", UTMTerm: "remarketing"}, t0)
	rec = Apply(rec, TrackingParams{UTMSource: "google", UTMMedium: "organic"}, t1)

	require.NotNil(t, rec.FirstTouch)
	assert.Equal(t, "google", rec.FirstTouch.UTMSource)
	assert.Equal(t, t1, rec.FirstTouch.CapturedAt)
	assert.Equal(t, "google", rec.LatestTouch.UTMSource)
}

func TestApplyDoesNotAliasTouches(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	rec := Apply(StoredTracking{}, TrackingParams{UTMSource: "google"}, now)

	require.NotNil(t, rec.FirstTouch)
	require.NotNil(t, rec.LatestTouch)
	assert.NotSame(t, rec.FirstTouch, rec.LatestTouch)

	// Mutating the latest touch must not reach the first touch.
	rec.LatestTouch.UTMSource = "bing"
	assert.Equal(t, "google", rec.FirstTouch.UTMSource)
}

func TestApplyInputIsNotMutated(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	params := TrackingParams{UTMSource: "google"}

	Apply(StoredTracking{}, params, now)
	assert.True(t, params.CapturedAt.IsZero())
}

func TestApplyStampsUTC(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	local := time.Date(2026, 3, 14, 6, 0, 0, 0, loc)

	rec := Apply(StoredTracking{}, TrackingParams{GCLID: "g1"}, local)
	require.NotNil(t, rec.LatestTouch)
	assert.Equal(t, time.UTC, rec.LatestTouch.CapturedAt.Location())
	assert.True(t, rec.LatestTouch.CapturedAt.Equal(local))
}
