// Package colorscale maps a numeric parcel attribute onto the RdYlGn
// diverging gradient used by the map layer and its legend.
//
// A Scale is fitted once per dataset. ColorFor is a pure function of the
// value and the fitted parameters, so the map, the table swatches and the
// legend always agree.
package colorscale

import (
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"parcelview/internal/dataset"
	"parcelview/internal/errors"
	"parcelview/internal/types"
)

// Mode selects how values are normalized onto the gradient.
type Mode string

const (
	Linear Mode = "linear"
	Log    Mode = "log"
)

// ParseMode accepts "linear" or "log" (also "logarithmic"), case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return Linear, nil
	case "log", "logarithmic":
		return Log, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown scale mode %q (want linear or log)", s)
}

// InvalidColor marks values outside the scale's domain: NaN or infinite
// values, non-positive values in log mode, and every value of a scale with
// no valid domain.
const InvalidColor = "#cccccc"

// rdYlGn holds the eleven ColorBrewer RdYlGn control colors, low to high.
var rdYlGn = []string{
	"#a50026", "#d73027", "#f46d43", "#fdae61", "#fee08b", "#ffffbf",
	"#d9ef8b", "#a6d96a", "#66bd63", "#1a9850", "#006837",
}

var controls = mustParse(rdYlGn)

func mustParse(hexes []string) []colorful.Color {
	out := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(err)
		}
		out[i] = c
	}
	return out
}

// Low and High are the gradient's extreme control colors.
var (
	Low  = rdYlGn[0]
	High = rdYlGn[len(rdYlGn)-1]
	Mid  = rdYlGn[len(rdYlGn)/2]
)

// At returns the gradient color at position t, clamped to [0,1]. Positions
// between control colors are interpolated in RGB.
func At(t float64) string {
	if math.IsNaN(t) {
		return InvalidColor
	}
	t = math.Max(0, math.Min(1, t))
	seg := t * float64(len(controls)-1)
	i := int(math.Floor(seg))
	if i >= len(controls)-1 {
		i = len(controls) - 2
	}
	return controls[i].BlendRgb(controls[i+1], seg-float64(i)).Clamped().Hex()
}

// Scale is a fitted color scale.
type Scale struct {
	Attribute string
	Mode      Mode
	Min       float64
	Max       float64

	valid bool // false when no value qualified for the domain
}

// Build fits a scale to attribute over every parcel in ds.
func Build(ds *dataset.Dataset, attribute string, mode Mode) (*Scale, error) {
	if !types.IsNumericColumn(attribute) && !hasColumn(ds, attribute) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown attribute %q", attribute)
	}
	values := make([]float64, len(ds.Parcels))
	for i, p := range ds.Parcels {
		values[i] = p.Value(attribute)
	}
	return Fit(values, attribute, mode)
}

func hasColumn(ds *dataset.Dataset, col string) bool {
	for _, c := range ds.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Fit computes min and max over the values that belong to mode's domain:
// finite values, and in log mode only positive ones.
func Fit(values []float64, attribute string, mode Mode) (*Scale, error) {
	if mode != Linear && mode != Log {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown scale mode %q", mode)
	}
	s := &Scale{Attribute: attribute, Mode: mode, Min: math.NaN(), Max: math.NaN()}
	for _, v := range values {
		if !s.inDomain(v) {
			continue
		}
		if !s.valid {
			s.Min, s.Max, s.valid = v, v, true
			continue
		}
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	return s, nil
}

func (s *Scale) inDomain(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return s.Mode != Log || v > 0
}

// Valid reports whether any value qualified for the domain.
func (s *Scale) Valid() bool { return s.valid }

// Position normalizes v to [0,1]. ok is false for values outside the domain.
// A degenerate scale (Min == Max) puts every valid value at 0.5.
func (s *Scale) Position(v float64) (pos float64, ok bool) {
	if !s.valid || !s.inDomain(v) {
		return 0, false
	}
	if s.Min == s.Max {
		return 0.5, true
	}
	switch s.Mode {
	case Log:
		pos = (math.Log(v) - math.Log(s.Min)) / (math.Log(s.Max) - math.Log(s.Min))
	default:
		pos = (v - s.Min) / (s.Max - s.Min)
	}
	return math.Max(0, math.Min(1, pos)), true
}

// ColorFor returns the hex color for v.
func (s *Scale) ColorFor(v float64) string {
	pos, ok := s.Position(v)
	if !ok {
		return InvalidColor
	}
	return At(pos)
}

// Stop is one legend entry.
type Stop struct {
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// Legend returns n evenly spaced stops from Min to Max. Log scales space
// stops geometrically so each stop sits at an even gradient position.
func (s *Scale) Legend(n int) []Stop {
	if !s.valid {
		return nil
	}
	if n < 2 {
		n = 2
	}
	stops := make([]Stop, n)
	for i := range stops {
		f := float64(i) / float64(n-1)
		var v float64
		if s.Mode == Log {
			v = math.Exp(math.Log(s.Min) + f*(math.Log(s.Max)-math.Log(s.Min)))
		} else {
			v = s.Min + f*(s.Max-s.Min)
		}
		if i == 0 {
			v = s.Min
		} else if i == n-1 {
			v = s.Max
		}
		stops[i] = Stop{Value: v, Color: s.ColorFor(v)}
	}
	return stops
}

var attributeTitles = map[string]string{
	types.ColVarianceAcres:   "Variance (Acres)",
	types.ColVariancePct:     "Variance Percent",
	types.ColAssessorAcres:   "Deeded Acres",
	types.ColCalculatedAcres: "Calculated Acres",
	types.ColCalculatedAlias: "Calculated Acres",
}

// Caption is the legend title, e.g. "Variance (Acres) - Log Scaled".
func (s *Scale) Caption() string {
	title, ok := attributeTitles[s.Attribute]
	if !ok {
		title = s.Attribute
	}
	if s.Mode == Log {
		return title + " - Log Scaled"
	}
	return title + " - Linear"
}
