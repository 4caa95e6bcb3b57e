package parcel

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/access-realty/directlist/internal/model"
	"github.com/access-realty/directlist/pkg/parcelapi"
)

type fakeRemote struct {
	rec   *parcelapi.ParcelRecord
	err   error
	calls int
}

func (f *fakeRemote) LookupAddress(_ context.Context, _ string) (*parcelapi.ParcelRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

func TestResolveLocalHit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.UpsertParcels(ctx, []model.Parcel{
		{APN: "123-45-678", Address: "101 Maple St", City: "Boise", State: "ID"},
	})
	require.NoError(t, err)

	remote := &fakeRemote{}
	r := NewResolver(st, remote)

	p, err := r.Resolve(ctx, "101 Maple St")
	require.NoError(t, err)
	assert.Equal(t, "123-45-678", p.APN)
	assert.Zero(t, remote.calls)
}

func TestResolveRemoteFallbackCaches(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	remote := &fakeRemote{rec: &parcelapi.ParcelRecord{
		APN: "999-00-111", Address: "77 Birch Ave", City: "Boise", State: "ID",
		AreaSqFt: 6500, Latitude: 43.6, Longitude: -116.2,
	}}
	r := NewResolver(st, remote)

	p, err := r.Resolve(ctx, "77 Birch Ave")
	require.NoError(t, err)
	assert.Equal(t, "999-00-111", p.APN)
	assert.InDelta(t, 43.6, p.CentroidLat, 1e-9)
	assert.Equal(t, 1, remote.calls)

	// second lookup is served locally
	p, err = r.Resolve(ctx, "77 Birch Ave")
	require.NoError(t, err)
	assert.Equal(t, "999-00-111", p.APN)
	assert.Equal(t, 1, remote.calls)
}

func TestResolveNoMatch(t *testing.T) {
	r := NewResolver(newTestStore(t), &fakeRemote{err: parcelapi.ErrNoMatch})

	_, err := r.Resolve(context.Background(), "999 Nowhere Ln")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRemoteDisabled(t *testing.T) {
	r := NewResolver(newTestStore(t), nil)

	_, err := r.Resolve(context.Background(), "999 Nowhere Ln")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRemoteError(t *testing.T) {
	r := NewResolver(newTestStore(t), &fakeRemote{err: eris.New("county outage")})

	_, err := r.Resolve(context.Background(), "101 Maple St")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestResolveEmptyAddress(t *testing.T) {
	r := NewResolver(newTestStore(t), nil)
	_, err := r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}
