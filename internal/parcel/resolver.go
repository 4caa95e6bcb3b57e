package parcel

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/access-realty/directlist/internal/model"
	"github.com/access-realty/directlist/internal/store"
	"github.com/access-realty/directlist/pkg/parcelapi"
)

// ErrNotFound is returned when no parcel matches an address.
var ErrNotFound = eris.New("parcel: not found")

// Resolver answers address lookups from the local parcel table, falling back
// to the county service for addresses outside the imported extract. Remote
// hits are written back so the next lookup is local.
type Resolver struct {
	store  store.Store
	remote parcelapi.Client
}

// NewResolver creates a Resolver. remote may be nil to disable the county
// service fallback.
func NewResolver(st store.Store, remote parcelapi.Client) *Resolver {
	return &Resolver{store: st, remote: remote}
}

func (r *Resolver) Resolve(ctx context.Context, address string) (*model.Parcel, error) {
	if address == "" {
		return nil, eris.Wrap(ErrNotFound, "empty address")
	}

	local, err := r.store.FindParcelByAddress(ctx, address)
	if err != nil {
		return nil, eris.Wrap(err, "parcel: local lookup")
	}
	if local != nil {
		return local, nil
	}

	if r.remote == nil {
		return nil, ErrNotFound
	}

	rec, err := r.remote.LookupAddress(ctx, address)
	if errors.Is(err, parcelapi.ErrNoMatch) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "parcel: remote lookup")
	}

	p := model.Parcel{
		APN:      rec.APN,
		Address:  rec.Address,
		City:     rec.City,
		State:    rec.State,
		Zip:      rec.Zip,
		AreaSqFt: rec.AreaSqFt,
	}
	if lat, lon, ok := rec.Centroid(); ok {
		p.CentroidLat = lat
		p.CentroidLon = lon
	}

	if _, err := r.store.UpsertParcels(ctx, []model.Parcel{p}); err != nil {
		// cache write failure shouldn't fail the lookup
		zap.L().Warn("parcel cache write failed",
			zap.String("apn", p.APN),
			zap.Error(err),
		)
	}
	return &p, nil
}
