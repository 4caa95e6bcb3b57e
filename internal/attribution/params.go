// Package attribution implements multi-touch campaign attribution: capture of
// UTM and click-identifier parameters, first/latest-touch bookkeeping, and the
// snapshot consumed by lead submission.
package attribution

import (
	"net/url"
	"strings"
	"time"
)

// TrackingParams is one marketing touch-point snapshot. A field is absent
// when empty; a present field is always non-empty, so the zero string never
// conflates "empty" with "set to empty".
type TrackingParams struct {
	UTMSource   string    `json:"utm_source,omitempty"`
	UTMMedium   string    `json:"utm_medium,omitempty"`
	UTMCampaign string    `json:"utm_campaign,omitempty"`
	UTMTerm     string    `json:"utm_term,omitempty"`
	UTMContent  string    `json:"utm_content,omitempty"`
	GCLID       string    `json:"gclid,omitempty"`
	FBCLID      string    `json:"fbclid,omitempty"`
	LandingURL  string    `json:"landing_url,omitempty"`
	CapturedAt  time.Time `json:"captured_at,omitzero"`
}

// StoredTracking is the durable attribution record for one visitor.
// FirstTouch is sticky: set at most once until explicitly cleared.
// LatestTouch is overwritten by every touch that carries tracking data.
type StoredTracking struct {
	FirstTouch  *TrackingParams `json:"first_touch,omitempty"`
	LatestTouch *TrackingParams `json:"latest_touch,omitempty"`
}

// Summary renders the touch as the short human-readable string the
// program-inquiry payload carries, e.g. "google / cpc / spring_sale". Click
// identifiers stand in when no UTM fields are present; an empty touch
// summarizes to "".
func (p TrackingParams) Summary() string {
	var parts []string
	for _, v := range []string{p.UTMSource, p.UTMMedium, p.UTMCampaign, p.UTMTerm} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " / ")
	}
	if p.GCLID != "" {
		return "google ads (gclid)"
	}
	if p.FBCLID != "" {
		return "facebook (fbclid)"
	}
	return ""
}

// ExtractParams reads the recognized campaign parameters from the URL's query
// string and stamps the full URL as the landing URL. A nil URL yields an
// all-absent record. CapturedAt is never set here; that is the merge step's
// job.
func ExtractParams(u *url.URL) TrackingParams {
	var p TrackingParams
	if u == nil {
		return p
	}

	q := u.Query()
	set := func(dst *string, key string) {
		if v := q.Get(key); v != "" {
			*dst = v
		}
	}
	set(&p.UTMSource, "utm_source")
	set(&p.UTMMedium, "utm_medium")
	set(&p.UTMCampaign, "utm_campaign")
	set(&p.UTMTerm, "utm_term")
	set(&p.UTMContent, "utm_content")
	set(&p.GCLID, "gclid")
	set(&p.FBCLID, "fbclid")

	p.LandingURL = u.String()

	return p
}
