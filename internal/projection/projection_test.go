package projection

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelview/internal/errors"
)

const (
	esriTexasNC = `PROJCS["NAD_1983_StatePlane_Texas_North_Central_FIPS_4202_Feet",GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Lambert_Conformal_Conic"],PARAMETER["False_Easting",1968500.0],PARAMETER["False_Northing",6561666.666666666],PARAMETER["Central_Meridian",-98.5],PARAMETER["Standard_Parallel_1",32.13333333333333],PARAMETER["Standard_Parallel_2",33.96666666666667],PARAMETER["Latitude_Of_Origin",31.66666666666667],UNIT["Foot_US",0.3048006096012192]]`
	esriWGS84   = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
	esriWebMerc = `PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Mercator_Auxiliary_Sphere"],PARAMETER["False_Easting",0.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",0.0],PARAMETER["Standard_Parallel_1",0.0],PARAMETER["Auxiliary_Sphere_Type",0.0],UNIT["Meter",1.0]]`
	ogcWGS84    = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`
	esriNAD27   = `GEOGCS["GCS_North_American_1927",DATUM["D_North_American_1927",SPHEROID["Clarke_1866",6378206.4,294.9786982]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
)

func TestFromWKT(t *testing.T) {
	t.Run("esri state plane", func(t *testing.T) {
		c, err := FromWKT(esriTexasNC)
		require.NoError(t, err)
		assert.Equal(t, LambertConformalConic, c.Kind)
		assert.InDelta(t, 32.13333333333333, c.StdParallel1, 1e-12)
		assert.InDelta(t, 33.96666666666667, c.StdParallel2, 1e-12)
		assert.InDelta(t, 31.66666666666667, c.LatOrigin, 1e-12)
		assert.Equal(t, -98.5, c.CentralMerid)
		assert.Equal(t, 1968500.0, c.FalseEasting)
		assert.InDelta(t, usSurveyFoot, c.UnitMeters, 1e-15)
		assert.Equal(t, 6378137.0, c.SemiMajor)
		assert.False(t, c.IsCanonical())
	})

	t.Run("esri geographic", func(t *testing.T) {
		c, err := FromWKT(esriWGS84)
		require.NoError(t, err)
		assert.True(t, c.IsCanonical())
	})

	t.Run("ogc geographic with authority", func(t *testing.T) {
		c, err := FromWKT(ogcWGS84)
		require.NoError(t, err)
		assert.Equal(t, WGS84, c)
	})

	t.Run("web mercator", func(t *testing.T) {
		c, err := FromWKT(esriWebMerc)
		require.NoError(t, err)
		assert.Equal(t, WebMercator, c.Kind)
	})

	t.Run("non-wgs84 datum", func(t *testing.T) {
		_, err := FromWKT(esriNAD27)
		assert.True(t, errors.Is(err, errors.ErrCodeProjection))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := FromWKT(`PROJCS["broken"`)
		assert.True(t, errors.Is(err, errors.ErrCodeProjection))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := FromWKT("  ")
		assert.True(t, errors.Is(err, errors.ErrCodeProjection))
	})
}

func TestFromEPSG(t *testing.T) {
	c, err := FromEPSG(2276)
	require.NoError(t, err)
	assert.Equal(t, TexasNorthCentral, c)

	c, err = FromEPSG(3857)
	require.NoError(t, err)
	assert.Equal(t, WebMercator, c.Kind)

	_, err = FromEPSG(32614)
	assert.True(t, errors.Is(err, errors.ErrCodeProjection))
}

func TestLCCRoundTrip(t *testing.T) {
	l, err := newLCC(TexasNorthCentral)
	require.NoError(t, err)

	points := []orb.Point{
		{-97.3308, 32.7555}, // Fort Worth
		{-96.7970, 32.7767}, // Dallas
		{-98.5, 31.66666666666667},
		{-99.9, 34.1},
	}
	for _, p := range points {
		xy := l.forward(p)
		back := l.inverse(xy)
		assert.InDelta(t, p.Lon(), back.Lon(), 1e-9)
		assert.InDelta(t, p.Lat(), back.Lat(), 1e-9)
	}
}

func TestLCCFalseOrigin(t *testing.T) {
	l, err := newLCC(TexasNorthCentral)
	require.NoError(t, err)

	p := l.inverse(orb.Point{TexasNorthCentral.FalseEasting, TexasNorthCentral.FalseNorthing})
	assert.InDelta(t, -98.5, p.Lon(), 1e-9)
	assert.InDelta(t, 31.66666666666667, p.Lat(), 1e-9)
}

func TestReprojectCanonicalIsNoOp(t *testing.T) {
	poly := orb.Polygon{{{-97.1, 32.1}, {-97.0, 32.1}, {-97.0, 32.2}, {-97.1, 32.1}}}

	got, err := Reproject(poly, WGS84)
	require.NoError(t, err)
	assert.Equal(t, poly, got)

	// The copy is independent of the input.
	got.(orb.Polygon)[0][0] = orb.Point{0, 0}
	assert.Equal(t, orb.Point{-97.1, 32.1}, poly[0][0])
}

func TestReprojectStatePlane(t *testing.T) {
	l, err := newLCC(TexasNorthCentral)
	require.NoError(t, err)

	want := orb.Polygon{{{-97.33, 32.75}, {-97.32, 32.75}, {-97.32, 32.76}, {-97.33, 32.75}}}
	var projected orb.Ring
	for _, p := range want[0] {
		projected = append(projected, l.forward(p))
	}

	got, err := Reproject(orb.MultiPolygon{{projected}}, TexasNorthCentral)
	require.NoError(t, err)
	mp := got.(orb.MultiPolygon)
	for i, p := range mp[0][0] {
		assert.InDelta(t, want[0][i].Lon(), p.Lon(), 1e-9)
		assert.InDelta(t, want[0][i].Lat(), p.Lat(), 1e-9)
	}
}

func TestReprojectWebMercator(t *testing.T) {
	c, err := FromEPSG(3857)
	require.NoError(t, err)

	got, err := Reproject(orb.Polygon{{{0, 0}, {1000, 0}, {1000, 1000}, {0, 0}}}, c)
	require.NoError(t, err)
	p := got.(orb.Polygon)[0][0]
	assert.InDelta(t, 0, p.Lon(), 1e-12)
	assert.InDelta(t, 0, p.Lat(), 1e-12)
}

func TestReprojectUnsupported(t *testing.T) {
	_, err := Reproject(orb.Point{1, 2}, TexasNorthCentral)
	assert.True(t, errors.Is(err, errors.ErrCodeProjection))

	_, err = Reproject(orb.Polygon{}, CRS{Name: "mystery", Kind: Kind(42)})
	assert.True(t, errors.Is(err, errors.ErrCodeProjection))
}
