package projection

import (
	"math"

	"github.com/paulmach/orb"

	"parcelview/internal/errors"
)

// Lambert Conformal Conic (2SP) on an ellipsoid, after Snyder, "Map
// Projections: A Working Manual", pp. 107-109. Projected coordinates are in
// the CRS's linear unit (US survey feet for most Texas State Plane files).

const (
	grs80SemiMajor = 6378137.0
	grs80InvFlat   = 298.257222101

	usSurveyFoot = 0.3048006096012192 // metres
	deg          = math.Pi / 180
)

// TexasNorthCentral is NAD83 / Texas North Central (ftUS), EPSG:2276.
var TexasNorthCentral = CRS{
	Name:          "NAD83 / Texas North Central (ftUS)",
	EPSG:          2276,
	Kind:          LambertConformalConic,
	LatOrigin:     31.66666666666667,
	StdParallel1:  32.13333333333333,
	StdParallel2:  33.96666666666667,
	CentralMerid:  -98.5,
	FalseEasting:  1968500.0,
	FalseNorthing: 6561666.666666666,
	UnitMeters:    usSurveyFoot,
	SemiMajor:     grs80SemiMajor,
	InvFlattening: grs80InvFlat,
}

type lcc struct {
	e      float64 // eccentricity
	n      float64
	f      float64 // a·F in projected units
	rho0   float64
	lon0   float64 // radians
	fe, fn float64
}

func newLCC(c CRS) (*lcc, error) {
	a := c.SemiMajor
	if a == 0 {
		a = grs80SemiMajor
	}
	invf := c.InvFlattening
	if invf == 0 {
		invf = grs80InvFlat
	}
	unit := c.UnitMeters
	if unit == 0 {
		unit = 1
	}
	if c.StdParallel1 == 0 && c.StdParallel2 == 0 {
		return nil, errors.New(errors.ErrCodeProjection, "%s: missing standard parallels", c.Name)
	}

	fl := 1 / invf
	e2 := 2*fl - fl*fl
	e := math.Sqrt(e2)

	m := func(phi float64) float64 {
		return math.Cos(phi) / math.Sqrt(1-e2*math.Sin(phi)*math.Sin(phi))
	}
	t := func(phi float64) float64 {
		return math.Tan(math.Pi/4-phi/2) / math.Pow((1-e*math.Sin(phi))/(1+e*math.Sin(phi)), e/2)
	}

	phi1 := c.StdParallel1 * deg
	phi2 := c.StdParallel2 * deg
	phi0 := c.LatOrigin * deg

	m1, m2 := m(phi1), m(phi2)
	t1, t2, t0 := t(phi1), t(phi2), t(phi0)

	var n float64
	if math.Abs(phi1-phi2) < 1e-12 {
		n = math.Sin(phi1) // tangent cone (1SP)
	} else {
		n = math.Log(m1/m2) / math.Log(t1/t2)
	}
	if n == 0 || math.IsNaN(n) {
		return nil, errors.New(errors.ErrCodeProjection, "%s: degenerate cone constant", c.Name)
	}

	aUnits := a / unit
	F := m1 / (n * math.Pow(t1, n))
	return &lcc{
		e:    e,
		n:    n,
		f:    aUnits * F,
		rho0: aUnits * F * math.Pow(t0, n),
		lon0: c.CentralMerid * deg,
		fe:   c.FalseEasting,
		fn:   c.FalseNorthing,
	}, nil
}

// forward converts lon/lat degrees to projected easting/northing.
func (l *lcc) forward(p orb.Point) orb.Point {
	phi := p.Lat() * deg
	lambda := p.Lon() * deg

	t := math.Tan(math.Pi/4-phi/2) / math.Pow((1-l.e*math.Sin(phi))/(1+l.e*math.Sin(phi)), l.e/2)
	rho := l.f * math.Pow(t, l.n)
	theta := l.n * (lambda - l.lon0)

	x := rho*math.Sin(theta) + l.fe
	y := l.rho0 - rho*math.Cos(theta) + l.fn
	return orb.Point{x, y}
}

// inverse converts projected easting/northing to lon/lat degrees. Latitude is
// found by fixed-point iteration, which converges in a handful of steps for
// any terrestrial point.
func (l *lcc) inverse(p orb.Point) orb.Point {
	x := p[0] - l.fe
	y := l.rho0 - (p[1] - l.fn)

	sign := 1.0
	if l.n < 0 {
		sign = -1
	}
	rho := sign * math.Hypot(x, y)
	theta := math.Atan2(sign*x, sign*y)

	t := math.Pow(rho/l.f, 1/l.n)
	lambda := theta/l.n + l.lon0

	phi := math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 15; i++ {
		es := l.e * math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-es)/(1+es), l.e/2))
		if math.Abs(next-phi) < 1e-14 {
			phi = next
			break
		}
		phi = next
	}
	return orb.Point{lambda / deg, phi / deg}
}
