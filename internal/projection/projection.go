// Package projection detects a dataset's coordinate reference system and
// reprojects geometries to WGS84 longitude/latitude, which is what the map
// surfaces expect.
//
// Supported sources: geographic CRSs on a WGS84-equivalent datum (returned
// unchanged), Web Mercator (EPSG:3857 family) and Lambert Conformal Conic
// two-standard-parallel projections such as the US State Plane zones
// (EPSG:2276 and friends) described by ESRI or OGC WKT.
package projection

import (
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"parcelview/internal/errors"
)

// Kind identifies the family of a CRS.
type Kind int

const (
	Geographic Kind = iota
	WebMercator
	LambertConformalConic
)

func (k Kind) String() string {
	switch k {
	case Geographic:
		return "geographic"
	case WebMercator:
		return "web-mercator"
	case LambertConformalConic:
		return "lambert-conformal-conic"
	}
	return "unknown"
}

// CRS is a parsed coordinate reference system.
type CRS struct {
	Name string
	EPSG int
	Kind Kind

	// LCC parameters, degrees and projected linear units.
	LatOrigin     float64
	StdParallel1  float64
	StdParallel2  float64
	CentralMerid  float64
	FalseEasting  float64
	FalseNorthing float64
	UnitMeters    float64 // metres per projected unit
	SemiMajor     float64 // metres
	InvFlattening float64
}

// WGS84 is the canonical geographic CRS.
var WGS84 = CRS{Name: "WGS 84", EPSG: 4326, Kind: Geographic}

// IsCanonical reports whether geometries in c need no reprojection.
func (c CRS) IsCanonical() bool { return c.Kind == Geographic }

// String renders the CRS for logs.
func (c CRS) String() string {
	if c.EPSG != 0 {
		return "EPSG:" + strconv.Itoa(c.EPSG) + " (" + c.Name + ")"
	}
	return c.Name
}

// Transformer converts one point from a source CRS to WGS84.
type Transformer func(orb.Point) orb.Point

// ToWGS84 returns a point transformer for c.
func ToWGS84(c CRS) (Transformer, error) {
	switch c.Kind {
	case Geographic:
		return func(p orb.Point) orb.Point { return p }, nil
	case WebMercator:
		return Transformer(project.Mercator.ToWGS84), nil
	case LambertConformalConic:
		l, err := newLCC(c)
		if err != nil {
			return nil, err
		}
		return l.inverse, nil
	}
	return nil, errors.New(errors.ErrCodeProjection, "unsupported CRS %s", c)
}

// Reproject returns a copy of g in WGS84. The input is never modified, and a
// geometry already in a geographic CRS comes back coordinate-for-coordinate
// identical.
func Reproject(g orb.Geometry, c CRS) (orb.Geometry, error) {
	tf, err := ToWGS84(c)
	if err != nil {
		return nil, err
	}
	out := orb.Clone(g)
	if c.IsCanonical() {
		return out, nil
	}
	var bad bool
	apply := func(r orb.Ring) {
		for i, p := range r {
			q := tf(p)
			if math.IsNaN(q[0]) || math.IsNaN(q[1]) || math.IsInf(q[0], 0) || math.IsInf(q[1], 0) ||
				q.Lat() < -90 || q.Lat() > 90 {
				bad = true
			}
			r[i] = q
		}
	}
	switch gg := out.(type) {
	case orb.Polygon:
		for _, r := range gg {
			apply(r)
		}
	case orb.MultiPolygon:
		for _, poly := range gg {
			for _, r := range poly {
				apply(r)
			}
		}
	default:
		return nil, errors.New(errors.ErrCodeProjection, "cannot reproject %s geometry", g.GeoJSONType())
	}
	if bad {
		return nil, errors.New(errors.ErrCodeProjection, "transform from %s produced coordinates outside the globe", c)
	}
	return out, nil
}
