package types

import (
	"math"

	"github.com/paulmach/orb"
)

// Parcel holds one surveyed parcel: its boundary in WGS84 lon/lat and the
// attribute columns the viewer displays. Columns the viewer does not know
// about are kept in Extra so the CSV export can reproduce the full table.
type Parcel struct {
	Geometry orb.Geometry // orb.Polygon or orb.MultiPolygon
	Centroid orb.Point    // cached at load, [lon, lat]

	ParcelID string

	VarianceAcres   float64
	VariancePct     float64
	AssessorAcres   float64
	CalculatedAcres float64

	Address   string
	County    string
	State     string
	Zip       string
	UseDesc   string
	Zoning    string
	SalePrice string

	Extra map[string]string
}

// Known attribute column names, as written by the upstream parcel export.
const (
	ColParcelID        = "parcelnumb"
	ColAddress         = "address"
	ColCounty          = "county"
	ColState           = "state2"
	ColZip             = "szip"
	ColVarianceAcres   = "variance_acres"
	ColVariancePct     = "variance_pct"
	ColAssessorAcres   = "assessor_acres_clean"
	ColCalculatedAcres = "ll_gisacre"
	ColCalculatedAlias = "calculated_acres" // same measure under its descriptive name
	ColUseDesc         = "usedesc"
	ColZoning          = "zoning"
	ColSalePrice       = "saleprice"
)

// Lat returns the centroid latitude.
func (p Parcel) Lat() float64 { return p.Centroid.Lat() }

// Lon returns the centroid longitude.
func (p Parcel) Lon() float64 { return p.Centroid.Lon() }

// Numeric returns the named numeric attribute, NaN when the column is not numeric.
func (p Parcel) Numeric(col string) float64 {
	switch col {
	case ColVarianceAcres:
		return p.VarianceAcres
	case ColVariancePct:
		return p.VariancePct
	case ColAssessorAcres:
		return p.AssessorAcres
	case ColCalculatedAcres:
		return p.CalculatedAcres
	case ColCalculatedAlias:
		if v, ok := p.Extra[col]; ok {
			return ParseFloat(v)
		}
		return p.CalculatedAcres
	}
	return math.NaN()
}

// Value returns a numeric reading of any column: the typed field for known
// numeric columns, otherwise the parsed extra attribute.
func (p Parcel) Value(col string) float64 {
	if IsNumericColumn(col) {
		return p.Numeric(col)
	}
	return ParseFloat(p.Extra[col])
}

// IsNumericColumn reports whether col maps onto a typed numeric field.
func IsNumericColumn(col string) bool {
	switch col {
	case ColVarianceAcres, ColVariancePct, ColAssessorAcres, ColCalculatedAcres, ColCalculatedAlias:
		return true
	}
	return false
}

// Attribute returns the display value of any column, known or extra.
func (p Parcel) Attribute(col string) string {
	switch col {
	case ColParcelID:
		return p.ParcelID
	case ColAddress:
		return p.Address
	case ColCounty:
		return p.County
	case ColState:
		return p.State
	case ColZip:
		return p.Zip
	case ColVarianceAcres, ColVariancePct, ColAssessorAcres, ColCalculatedAcres:
		return FormatFloat(p.Numeric(col))
	case ColCalculatedAlias:
		if v, ok := p.Extra[col]; ok {
			return v
		}
		return FormatFloat(p.CalculatedAcres)
	case ColUseDesc:
		return p.UseDesc
	case ColZoning:
		return p.Zoning
	case ColSalePrice:
		return p.SalePrice
	}
	return p.Extra[col]
}
