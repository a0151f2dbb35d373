// Package style derives the per-parcel presentation used by both surfaces:
// polygon styling, hover tooltip rows and the curated table columns.
// Everything here is a pure function of a parcel and a fitted scale.
package style

import (
	"strings"

	"parcelview/internal/colorscale"
	"parcelview/internal/types"
)

// Attributes is the Leaflet path style for one parcel polygon.
type Attributes struct {
	FillColor   string  `json:"fillColor"`
	Color       string  `json:"color"`
	Weight      int     `json:"weight"`
	FillOpacity float64 `json:"fillOpacity"`
}

const (
	strokeColor = "black"
	strokeWidth = 1
	fillOpacity = 0.4
)

// For styles p by the scale's attribute.
func For(p types.Parcel, scale *colorscale.Scale) Attributes {
	return Attributes{
		FillColor:   scale.ColorFor(p.Value(scale.Attribute)),
		Color:       strokeColor,
		Weight:      strokeWidth,
		FillOpacity: fillOpacity,
	}
}

// Field pairs a column with its display alias.
type Field struct {
	Column string `json:"column"`
	Alias  string `json:"alias"`
}

// Title is the alias without its trailing colon, used as a table header.
func (f Field) Title() string { return strings.TrimSuffix(f.Alias, ":") }

// TooltipFields are shown when hovering a parcel, in order.
var TooltipFields = []Field{
	{types.ColParcelID, "Parcel Number:"},
	{types.ColAddress, "Address:"},
	{types.ColCounty, "County:"},
	{types.ColState, "State:"},
	{types.ColZip, "Zip:"},
	{types.ColVarianceAcres, "Variance Acres:"},
	{types.ColVariancePct, "Variance Percent:"},
	{types.ColAssessorAcres, "Deeded Acres:"},
	{types.ColCalculatedAcres, "Calculated Acres:"},
	{types.ColUseDesc, "Used Description:"},
	{types.ColZoning, "Zoning:"},
	{types.ColSalePrice, "Sale Price:"},
}

// TableColumns is the curated subset shown in the parcel table. It matches
// the tooltip fields.
var TableColumns = TooltipFields

// Row is one labelled value.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Tooltip returns the tooltip rows for p.
func Tooltip(p types.Parcel) []Row {
	rows := make([]Row, len(TooltipFields))
	for i, f := range TooltipFields {
		rows[i] = Row{Label: f.Alias, Value: p.Attribute(f.Column)}
	}
	return rows
}

// TableRow returns p's values for TableColumns.
func TableRow(p types.Parcel) []string {
	out := make([]string, len(TableColumns))
	for i, f := range TableColumns {
		out[i] = p.Attribute(f.Column)
	}
	return out
}

// Headers returns the table header titles.
func Headers() []string {
	out := make([]string, len(TableColumns))
	for i, f := range TableColumns {
		out[i] = f.Title()
	}
	return out
}
