// Package dataset turns decrypted bytes into an immutable, sorted collection
// of parcels in WGS84.
//
// Three containers are understood, sniffed from their leading bytes:
//
//   - GeoPackage (SQLite): the format the bundled dataset ships in
//   - zipped ESRI shapefile (.shp + .dbf, optional .prj)
//   - GeoJSON FeatureCollection
//
// Whatever the source CRS, every geometry leaves Load in lon/lat. Records are
// ordered by variance_acres descending with NaN last, ties keeping parse
// order, and each record carries its centroid.
package dataset

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"parcelview/internal/errors"
	"parcelview/internal/projection"
	"parcelview/internal/types"
)

// Dataset is the loaded parcel table. It must not be modified after Load
// returns; surfaces share it read-only.
type Dataset struct {
	Parcels   []types.Parcel
	Columns   []string // attribute columns in source order, canonical names where known
	SourceCRS projection.CRS
	Key       string // content address, set by Loader
}

// Len returns the number of parcels.
func (d *Dataset) Len() int { return len(d.Parcels) }

// Centroid returns the equal-weight mean of all parcel centroids.
func (d *Dataset) Centroid() orb.Point {
	if len(d.Parcels) == 0 {
		return orb.Point{}
	}
	var sx, sy float64
	for _, p := range d.Parcels {
		sx += p.Centroid[0]
		sy += p.Centroid[1]
	}
	n := float64(len(d.Parcels))
	return orb.Point{sx / n, sy / n}
}

// Bound returns the bounding box of every geometry.
func (d *Dataset) Bound() orb.Bound {
	if len(d.Parcels) == 0 {
		return orb.Bound{}
	}
	b := d.Parcels[0].Geometry.Bound()
	for _, p := range d.Parcels[1:] {
		b = b.Union(p.Geometry.Bound())
	}
	return b
}

// feature is one parsed row before it becomes a Parcel.
type feature struct {
	geom  orb.Geometry
	attrs map[string]string // keyed by source column name
}

// table is what every container reader produces.
type table struct {
	columns  []string
	features []feature
	crs      projection.CRS
}

var (
	sqliteMagic = []byte("SQLite format 3\x00")
	zipMagic    = []byte("PK\x03\x04")
)

// Load parses raw container bytes into a Dataset.
func Load(ctx context.Context, raw []byte) (*Dataset, error) {
	t, err := readContainer(ctx, raw)
	if err != nil {
		return nil, err
	}
	return build(t)
}

func readContainer(ctx context.Context, raw []byte) (*table, error) {
	switch {
	case bytes.HasPrefix(raw, sqliteMagic):
		return readGeoPackage(ctx, raw)
	case bytes.HasPrefix(raw, zipMagic):
		return readShapefileZip(raw)
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")), " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return readGeoJSON(trimmed)
	}
	if len(raw) == 0 {
		return nil, errors.New(errors.ErrCodeParse, "dataset is empty")
	}
	return nil, errors.New(errors.ErrCodeParse, "unrecognised container format")
}

// knownColumns lists the canonical attribute names the viewer maps onto
// Parcel fields. Calculated acreage appears under either name upstream.
var knownColumns = []string{
	types.ColParcelID,
	types.ColAddress,
	types.ColCounty,
	types.ColState,
	types.ColZip,
	types.ColVarianceAcres,
	types.ColVariancePct,
	types.ColAssessorAcres,
	types.ColCalculatedAcres,
	types.ColCalculatedAlias,
	types.ColUseDesc,
	types.ColZoning,
	types.ColSalePrice,
}

// dbfNameLimit is the longest column name a DBF header can hold.
const dbfNameLimit = 10

// resolveColumns maps each source column to its canonical name. A source
// column matches a known name exactly (ignoring case) or as its DBF
// truncation, so "variance_a" resolves to variance_acres.
func resolveColumns(src []string) map[string]string {
	out := make(map[string]string, len(src))
	taken := make(map[string]bool)
	for _, c := range src {
		for _, k := range knownColumns {
			if strings.EqualFold(c, k) && !taken[k] {
				out[c] = k
				taken[k] = true
				break
			}
		}
	}
	for _, c := range src {
		if _, ok := out[c]; ok || len(c) != dbfNameLimit {
			continue
		}
		for _, k := range knownColumns {
			if len(k) > dbfNameLimit && strings.EqualFold(c, k[:dbfNameLimit]) && !taken[k] {
				out[c] = k
				taken[k] = true
				break
			}
		}
	}
	return out
}

// build reprojects, resolves attributes, computes centroids and sorts.
func build(t *table) (*Dataset, error) {
	canon := resolveColumns(t.columns)
	columns := make([]string, len(t.columns))
	for i, c := range t.columns {
		if k, ok := canon[c]; ok {
			columns[i] = k
		} else {
			columns[i] = c
		}
	}

	// With both acreage columns present, ll_gisacre owns the typed field and
	// calculated_acres keeps its own raw values.
	aliasOnly := !slices.Contains(columns, types.ColCalculatedAcres)

	parcels := make([]types.Parcel, 0, len(t.features))
	for i, f := range t.features {
		g, err := projection.Reproject(f.geom, t.crs)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		c, err := centroid(g)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		p := types.Parcel{Geometry: g, Centroid: c}
		for j, src := range t.columns {
			assign(&p, columns[j], f.attrs[src], aliasOnly)
		}
		parcels = append(parcels, p)
	}

	sortByVariance(parcels)

	return &Dataset{
		Parcels:   parcels,
		Columns:   columns,
		SourceCRS: t.crs,
	}, nil
}

func assign(p *types.Parcel, col, v string, aliasOnly bool) {
	switch col {
	case types.ColParcelID:
		p.ParcelID = v
	case types.ColAddress:
		p.Address = v
	case types.ColCounty:
		p.County = v
	case types.ColState:
		p.State = v
	case types.ColZip:
		p.Zip = v
	case types.ColVarianceAcres:
		p.VarianceAcres = types.ParseFloat(v)
	case types.ColVariancePct:
		p.VariancePct = types.ParseFloat(v)
	case types.ColAssessorAcres:
		p.AssessorAcres = types.ParseFloat(v)
	case types.ColCalculatedAcres:
		p.CalculatedAcres = types.ParseFloat(v)
	case types.ColCalculatedAlias:
		if aliasOnly {
			p.CalculatedAcres = types.ParseFloat(v)
		}
		setExtra(p, col, v)
	case types.ColUseDesc:
		p.UseDesc = v
	case types.ColZoning:
		p.Zoning = v
	case types.ColSalePrice:
		p.SalePrice = v
	default:
		setExtra(p, col, v)
	}
}

func setExtra(p *types.Parcel, col, v string) {
	if p.Extra == nil {
		p.Extra = make(map[string]string)
	}
	p.Extra[col] = v
}

// sortByVariance orders parcels by variance_acres descending. NaN sorts last
// and equal values keep their parse order.
func sortByVariance(ps []types.Parcel) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i].VarianceAcres, ps[j].VarianceAcres
		if math.IsNaN(a) {
			return false
		}
		if math.IsNaN(b) {
			return true
		}
		return a > b
	})
}

// centroid returns the planar area-weighted centroid, or the vertex mean for
// a geometry with no area.
func centroid(g orb.Geometry) (orb.Point, error) {
	c, area := planar.CentroidArea(g)
	if area > 0 && !math.IsNaN(c[0]) && !math.IsNaN(c[1]) {
		return c, nil
	}

	var sx, sy float64
	var n int
	visit := func(r orb.Ring) {
		for _, p := range r {
			sx += p[0]
			sy += p[1]
			n++
		}
	}
	switch gg := g.(type) {
	case orb.Polygon:
		for _, r := range gg {
			visit(r)
		}
	case orb.MultiPolygon:
		for _, poly := range gg {
			for _, r := range poly {
				visit(r)
			}
		}
	}
	if n == 0 {
		return orb.Point{}, errors.New(errors.ErrCodeParse, "geometry has no vertices")
	}
	return orb.Point{sx / float64(n), sy / float64(n)}, nil
}

// polygonal narrows a decoded geometry to the two types the viewer draws.
func polygonal(g orb.Geometry) (orb.Geometry, error) {
	switch gg := g.(type) {
	case orb.Polygon:
		return gg, nil
	case orb.MultiPolygon:
		return gg, nil
	case nil:
		return nil, errors.New(errors.ErrCodeParse, "feature has no geometry")
	}
	return nil, errors.New(errors.ErrCodeParse, "unsupported geometry type %s", g.GeoJSONType())
}
