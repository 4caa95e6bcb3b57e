package attribution

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// TrackingStore persists one StoredTracking record per visitor.
// Implementations must treat a missing record as empty, not as an error.
type TrackingStore interface {
	GetTracking(ctx context.Context, visitorID string) (StoredTracking, error)
	PutTracking(ctx context.Context, visitorID string, rec StoredTracking) error
	ClearTracking(ctx context.Context, visitorID string) error
}

// Snapshot exposes the attribution state a form needs at submission time.
// Converting is re-extracted from the submitting page's URL on every call and
// never cached, since the visitor may navigate between page load and submit.
type Snapshot struct {
	FirstTouch  *TrackingParams `json:"first_touch,omitempty"`
	LatestTouch *TrackingParams `json:"latest_touch,omitempty"`
	Converting  TrackingParams  `json:"converting_touch"`
	Ready       bool            `json:"ready"`
}

// Tracker applies the attribution rules against the durable store.
// Attribution is a best-effort enhancement: store failures are logged and
// swallowed, never surfaced to the visitor.
type Tracker struct {
	store TrackingStore
	now   func() time.Time
}

// NewTracker creates a Tracker backed by the given store.
func NewTracker(store TrackingStore) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Track records one touch for the visitor and returns the updated record.
// Touches without tracking data are a no-op. Read and write failures degrade
// to an empty record and a dropped write respectively.
func (t *Tracker) Track(ctx context.Context, visitorID string, u *url.URL) StoredTracking {
	params := ExtractParams(u)
	if !HasTrackingParams(params) {
		stored, _ := t.load(ctx, visitorID)
		return stored
	}

	stored, _ := t.load(ctx, visitorID)
	updated := Apply(stored, params, t.now())

	if err := t.store.PutTracking(ctx, visitorID, updated); err != nil {
		zap.L().Warn("attribution: tracking write dropped",
			zap.String("visitor_id", visitorID),
			zap.Error(err),
		)
	}

	return updated
}

// Snapshot returns the stored first/latest touches plus a fresh extraction of
// the current URL's parameters as the converting touch. Ready is false only
// when the store could not be read; a loaded-but-empty record is ready.
func (t *Tracker) Snapshot(ctx context.Context, visitorID string, u *url.URL) Snapshot {
	stored, ok := t.load(ctx, visitorID)
	return Snapshot{
		FirstTouch:  stored.FirstTouch,
		LatestTouch: stored.LatestTouch,
		Converting:  ExtractParams(u),
		Ready:       ok,
	}
}

// Clear removes the visitor's stored attribution, used after a lead converts.
// Idempotent; failures are logged and swallowed.
func (t *Tracker) Clear(ctx context.Context, visitorID string) {
	if err := t.store.ClearTracking(ctx, visitorID); err != nil {
		zap.L().Warn("attribution: clear failed",
			zap.String("visitor_id", visitorID),
			zap.Error(err),
		)
	}
}

func (t *Tracker) load(ctx context.Context, visitorID string) (StoredTracking, bool) {
	stored, err := t.store.GetTracking(ctx, visitorID)
	if err != nil {
		zap.L().Warn("attribution: tracking read failed",
			zap.String("visitor_id", visitorID),
			zap.Error(err),
		)
		return StoredTracking{}, false
	}
	return stored, true
}
