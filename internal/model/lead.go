// Package model defines the persisted records of the lead platform.
package model

import (
	"time"

	"github.com/access-realty/directlist/internal/attribution"
)

// Lead is one captured lead with its full attribution bundle. Any or all of
// the touches may be absent for an organic visitor.
type Lead struct {
	ID              string                        `json:"id"`
	Name            string                        `json:"name"`
	Email           string                        `json:"email"`
	Phone           string                        `json:"phone,omitempty"`
	Address         string                        `json:"address,omitempty"`
	Source          string                        `json:"source"` // submitting form identifier
	Message         string                        `json:"message,omitempty"`
	FirstTouch      *attribution.TrackingParams   `json:"first_touch,omitempty"`
	LatestTouch     *attribution.TrackingParams   `json:"latest_touch,omitempty"`
	ConvertingTouch *attribution.TrackingParams   `json:"converting_touch,omitempty"`
	CreatedAt       time.Time                     `json:"created_at"`
}

// Inquiry is a program-inquiry submission: contact fields, a free-text
// program identifier, and the attribution touches flattened into
// human-readable summary strings.
type Inquiry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Program     string    `json:"program"`
	FirstTouch  string    `json:"first_touch,omitempty"`
	LatestTouch string    `json:"latest_touch,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MeetingStatus tracks the lifecycle of a scheduled call.
type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingCanceled  MeetingStatus = "canceled"
)

// Meeting is a Calendly-scheduled call, written by the webhook handler.
type Meeting struct {
	ID           string        `json:"id"`
	EventURI     string        `json:"event_uri"`
	InviteeName  string        `json:"invitee_name"`
	InviteeEmail string        `json:"invitee_email"`
	EventType    string        `json:"event_type"`
	StartTime    time.Time     `json:"start_time"`
	Status       MeetingStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Parcel is one property parcel, loaded from a county shapefile or fetched
// from the parcel proxy.
type Parcel struct {
	APN         string    `json:"apn"`
	Address     string    `json:"address"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	Zip         string    `json:"zip,omitempty"`
	AreaSqFt    float64   `json:"area_sqft,omitempty"`
	CentroidLat float64   `json:"centroid_lat,omitempty"`
	CentroidLon float64   `json:"centroid_lon,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
