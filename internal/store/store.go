// Package store persists visitor attribution, leads, inquiries, meetings,
// and parcel data behind one interface with SQLite and Postgres backends.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/access-realty/directlist/internal/attribution"
	"github.com/access-realty/directlist/internal/model"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = eris.New("record not found")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Source string    `json:"source,omitempty"`
	Since  time.Time `json:"since,omitzero"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for the lead platform.
//
// GetTracking treats a missing or unreadable record as empty rather than an
// error: attribution is best-effort and malformed state is discarded, not
// repaired.
type Store interface {
	// Visitor attribution
	GetTracking(ctx context.Context, visitorID string) (attribution.StoredTracking, error)
	PutTracking(ctx context.Context, visitorID string, rec attribution.StoredTracking) error
	ClearTracking(ctx context.Context, visitorID string) error

	// Leads
	CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)

	// Program inquiries
	CreateInquiry(ctx context.Context, inq model.Inquiry) (*model.Inquiry, error)

	// Meetings (Calendly webhook)
	UpsertMeeting(ctx context.Context, m model.Meeting) error
	CancelMeeting(ctx context.Context, eventURI string) error

	// Parcels
	FindParcelByAddress(ctx context.Context, address string) (*model.Parcel, error)
	UpsertParcels(ctx context.Context, parcels []model.Parcel) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
