package parcelapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "key-123")
}

func TestLookupAddress(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parcels", r.URL.Path)
		assert.Equal(t, "101 Maple St", r.URL.Query().Get("address"))
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		w.Write([]byte(`{"parcels":[{"apn":"123-45-678","address":"101 Maple St","city":"Boise","state":"ID","zip":"83702","area_sqft":8400,"latitude":43.61,"longitude":-116.2}]}`))
	})

	p, err := c.LookupAddress(context.Background(), "101 Maple St")
	require.NoError(t, err)
	assert.Equal(t, "123-45-678", p.APN)
	assert.InDelta(t, 8400, p.AreaSqFt, 0.001)
}

func TestLookupAddressNoMatch(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"parcels":[]}`))
	})

	_, err := c.LookupAddress(context.Background(), "999 Nowhere Ln")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestLookupAddressValidation(t *testing.T) {
	c := NewClient("http://unused", "")
	_, err := c.LookupAddress(context.Background(), "")
	assert.ErrorContains(t, err, "address is required")
}

func TestCentroidFromPoint(t *testing.T) {
	r := &ParcelRecord{Latitude: 43.61, Longitude: -116.2}
	lat, lon, ok := r.Centroid()
	require.True(t, ok)
	assert.InDelta(t, 43.61, lat, 1e-9)
	assert.InDelta(t, -116.2, lon, 1e-9)
}

func TestCentroidFromGeometry(t *testing.T) {
	// unit square centered on (0.5, 0.5)
	r := &ParcelRecord{Geometry: [][][]float64{{
		{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0},
	}}}
	lat, lon, ok := r.Centroid()
	require.True(t, ok)
	assert.InDelta(t, 0.5, lat, 1e-9)
	assert.InDelta(t, 0.5, lon, 1e-9)
}

func TestCentroidUnavailable(t *testing.T) {
	r := &ParcelRecord{}
	_, _, ok := r.Centroid()
	assert.False(t, ok)
}
