package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 1234.5, ParseFloat(" 1,234.5 "))
	assert.Equal(t, -0.25, ParseFloat("-0.25"))
	assert.True(t, math.IsNaN(ParseFloat("")))
	assert.True(t, math.IsNaN(ParseFloat("n/a")))
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "5", FormatFloat(5))
	assert.Equal(t, "-1.25", FormatFloat(-1.25))
	assert.Equal(t, "", FormatFloat(math.NaN()))
}

func TestParcelAttribute(t *testing.T) {
	p := Parcel{
		ParcelID:        "R-1",
		Address:         "1 MAIN ST",
		VarianceAcres:   2.5,
		CalculatedAcres: 10,
		Extra:           map[string]string{"owner": "SMITH"},
	}

	assert.Equal(t, "R-1", p.Attribute(ColParcelID))
	assert.Equal(t, "1 MAIN ST", p.Attribute(ColAddress))
	assert.Equal(t, "2.5", p.Attribute(ColVarianceAcres))
	assert.Equal(t, "SMITH", p.Attribute("owner"))
	assert.Equal(t, "", p.Attribute("missing"))
	assert.Equal(t, 10.0, p.Numeric("calculated_acres"))
	assert.True(t, math.IsNaN(p.Numeric(ColAddress)))
}

func TestCalculatedAcresAlias(t *testing.T) {
	typed := Parcel{CalculatedAcres: 12.5}
	assert.Equal(t, "12.5", typed.Attribute(ColCalculatedAlias))
	assert.Equal(t, 12.5, typed.Numeric(ColCalculatedAlias))

	both := Parcel{CalculatedAcres: 12, Extra: map[string]string{ColCalculatedAlias: "12.5"}}
	assert.Equal(t, "12", both.Attribute(ColCalculatedAcres))
	assert.Equal(t, "12.5", both.Attribute(ColCalculatedAlias))
	assert.Equal(t, 12.5, both.Value(ColCalculatedAlias))
}

func TestParcelValue(t *testing.T) {
	p := Parcel{
		VarianceAcres: -3,
		Extra:         map[string]string{"land_value": "125,000", "owner": "SMITH"},
	}

	assert.Equal(t, -3.0, p.Value(ColVarianceAcres))
	assert.Equal(t, 125000.0, p.Value("land_value"))
	assert.True(t, math.IsNaN(p.Value("owner")))
	assert.True(t, IsNumericColumn(ColAssessorAcres))
	assert.False(t, IsNumericColumn(ColZoning))
}
