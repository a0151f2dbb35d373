package dataset

import (
	"fmt"
	"sort"
	"strconv"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"

	"parcelview/internal/errors"
	"parcelview/internal/projection"
)

// readGeoJSON reads a FeatureCollection. RFC 7946 fixes the CRS to WGS84, so
// no reprojection is needed. Column order follows first appearance across
// features, keys of each feature sorted, because JSON objects are unordered.
func readGeoJSON(raw []byte) (*table, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "decode GeoJSON")
	}
	if fc.Type != "FeatureCollection" {
		return nil, errors.New(errors.ErrCodeParse, "GeoJSON root is %q, want FeatureCollection", fc.Type)
	}

	t := &table{crs: projection.WGS84}
	seen := make(map[string]bool)
	for i, f := range fc.Features {
		if f == nil {
			return nil, errors.New(errors.ErrCodeParse, "feature %d is null", i)
		}
		g, err := geometryFromGeoJSON(f.Geometry)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeParse, err, "feature %d", i)
		}

		keys := make([]string, 0, len(f.Properties))
		for k := range f.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		attrs := make(map[string]string, len(keys))
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				t.columns = append(t.columns, k)
			}
			attrs[k] = propertyString(f.Properties[k])
		}
		t.features = append(t.features, feature{geom: g, attrs: attrs})
	}
	return t, nil
}

func geometryFromGeoJSON(g *geojson.Geometry) (orb.Geometry, error) {
	if g == nil {
		return nil, errors.New(errors.ErrCodeParse, "feature has no geometry")
	}
	switch {
	case g.IsPolygon():
		return polygonFromCoords(g.Polygon), nil
	case g.IsMultiPolygon():
		mp := make(orb.MultiPolygon, 0, len(g.MultiPolygon))
		for _, p := range g.MultiPolygon {
			mp = append(mp, polygonFromCoords(p))
		}
		return mp, nil
	}
	return nil, errors.New(errors.ErrCodeParse, "unsupported geometry type %s", g.Type)
}

func polygonFromCoords(rings [][][]float64) orb.Polygon {
	poly := make(orb.Polygon, 0, len(rings))
	for _, r := range rings {
		ring := make(orb.Ring, 0, len(r))
		for _, c := range r {
			if len(c) < 2 {
				continue
			}
			ring = append(ring, orb.Point{c[0], c[1]})
		}
		poly = append(poly, ring)
	}
	return poly
}

func propertyString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}
