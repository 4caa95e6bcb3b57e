// Package parcel imports county parcel shapefiles into the store and
// resolves parcels for seller-entered addresses.
package parcel

import (
	"context"
	"math"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/access-realty/directlist/internal/model"
	"github.com/access-realty/directlist/internal/store"
)

// FieldMap names the DBF attributes carrying parcel identity. Counties
// disagree on schema, so each deployment configures its own mapping.
type FieldMap struct {
	APN     string `yaml:"apn" mapstructure:"apn"`
	Address string `yaml:"address" mapstructure:"address"`
	City    string `yaml:"city" mapstructure:"city"`
	State   string `yaml:"state" mapstructure:"state"`
	Zip     string `yaml:"zip" mapstructure:"zip"`
}

// DefaultFieldMap matches the assessor schema used by most of our counties.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		APN:     "APN",
		Address: "SITEADDR",
		City:    "SITECITY",
		State:   "SITESTATE",
		Zip:     "SITEZIP",
	}
}

// Stats summarizes a load run.
type Stats struct {
	Read    int
	Loaded  int64
	Skipped int
	Batches int
}

// Loader streams shapefile records into the store in batches.
type Loader struct {
	store     store.Store
	fields    FieldMap
	batchSize int
}

// NewLoader creates a Loader. batchSize <= 0 uses 500.
func NewLoader(st store.Store, fields FieldMap, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Loader{store: st, fields: fields, batchSize: batchSize}
}

// Load reads the shapefile at path and upserts every parcel carrying an APN
// and address. Records with missing identity or degenerate geometry are
// skipped, not fatal. Area and centroid come from the polygon; area is in
// the source projection's squared unit, which for our county exports is
// square feet.
func (l *Loader) Load(ctx context.Context, path string) (Stats, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return Stats{}, eris.Wrapf(err, "parcel: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	attr := func(field string) string {
		idx, ok := fieldIdx[strings.ToLower(field)]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var stats Stats
	batch := make([]model.Parcel, 0, l.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := l.store.UpsertParcels(ctx, batch)
		stats.Loaded += n
		stats.Batches++
		batch = batch[:0]
		return err
	}

	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrap(err, "parcel: load canceled")
		}
		stats.Read++

		_, shape := reader.Shape()
		p := model.Parcel{
			APN:     attr(l.fields.APN),
			Address: attr(l.fields.Address),
			City:    attr(l.fields.City),
			State:   attr(l.fields.State),
			Zip:     attr(l.fields.Zip),
		}
		if p.APN == "" || p.Address == "" {
			stats.Skipped++
			continue
		}

		poly := shapePolygon(shape)
		if poly == nil {
			stats.Skipped++
			continue
		}
		// shapefile outer rings wind clockwise, which flips the signed area
		p.AreaSqFt = math.Abs(poly.Area())
		if c, err := xy.Centroid(poly); err == nil {
			p.CentroidLon = c.X()
			p.CentroidLat = c.Y()
		}

		batch = append(batch, p)
		if len(batch) >= l.batchSize {
			if err := flush(); err != nil {
				return stats, eris.Wrap(err, "parcel: flush batch")
			}
		}
	}

	if err := flush(); err != nil {
		return stats, eris.Wrap(err, "parcel: flush final batch")
	}

	zap.L().Info("parcel load complete",
		zap.String("path", path),
		zap.Int("read", stats.Read),
		zap.Int64("loaded", stats.Loaded),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// shapePolygon converts a shapefile polygon to a geom.Polygon. Multi-part
// shapes keep only the outer rings; nil for non-polygon or degenerate
// shapes.
func shapePolygon(shape shp.Shape) *geom.Polygon {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var flat []float64
	var ends []int
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 { // ring needs 3 vertices plus closure
			continue
		}
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ends = append(ends, len(flat))
	}
	if len(ends) == 0 {
		return nil
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}
