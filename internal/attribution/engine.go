package attribution

import (
	"strings"
	"time"
)

// Campaign terms that target already-known leads. A touch carrying one of
// these must not claim first-touch credit.
var excludedFirstTouchTerms = []string{"nurture", "remarketing"}

// HasTrackingParams reports whether at least one of the seven tracked fields
// is present. Records without tracking data are never persisted.
func HasTrackingParams(p TrackingParams) bool {
	return p.UTMSource != "" ||
		p.UTMMedium != "" ||
		p.UTMCampaign != "" ||
		p.UTMTerm != "" ||
		p.UTMContent != "" ||
		p.GCLID != "" ||
		p.FBCLID != ""
}

// FirstTouchEligible reports whether the touch may claim first-touch credit.
// Nurture and remarketing campaigns (matched on utm_term, case-insensitively)
// are excluded; every other touch, including one with no utm_term, is
// eligible.
func FirstTouchEligible(p TrackingParams) bool {
	for _, term := range excludedFirstTouchTerms {
		if strings.EqualFold(p.UTMTerm, term) {
			return false
		}
	}
	return true
}

// Apply merges one touch into the stored attribution record and returns the
// updated record. It is pure: the caller owns reading and writing the durable
// medium.
//
// A touch with no tracking data leaves the record unchanged. Otherwise the
// touch is stamped with now and always becomes the latest touch; it becomes
// the first touch only when none is recorded yet and the touch is eligible.
// An existing first touch is never overwritten.
func Apply(stored StoredTracking, p TrackingParams, now time.Time) StoredTracking {
	if !HasTrackingParams(p) {
		return stored
	}

	stamped := p
	stamped.CapturedAt = now.UTC()

	if stored.FirstTouch == nil && FirstTouchEligible(p) {
		first := stamped
		stored.FirstTouch = &first
	}

	latest := stamped
	stored.LatestTouch = &latest

	return stored
}
