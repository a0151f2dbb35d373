package dataset

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	shp "github.com/jonas-p/go-shp"
	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/require"
)

// square returns a closed clockwise ring of half-width d around (lon, lat).
func square(lon, lat, d float64) orb.Ring {
	return orb.Ring{
		{lon - d, lat - d},
		{lon - d, lat + d},
		{lon + d, lat + d},
		{lon + d, lat - d},
		{lon - d, lat - d},
	}
}

type fixtureRow struct {
	id       string
	variance float64 // NaN writes a null
	ring     orb.Ring
}

func coords(r orb.Ring) [][]float64 {
	out := make([][]float64, len(r))
	for i, p := range r {
		out[i] = []float64{p[0], p[1]}
	}
	return out
}

func geoJSONFixture(t *testing.T, rows []fixtureRow) []byte {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	for _, r := range rows {
		f := geojson.NewPolygonFeature([][][]float64{coords(r.ring)})
		f.SetProperty("parcelnumb", r.id)
		if math.IsNaN(r.variance) {
			f.SetProperty("variance_acres", nil)
		} else {
			f.SetProperty("variance_acres", r.variance)
		}
		f.SetProperty("county", "Tarrant")
		f.SetProperty("owner", "Owner "+r.id)
		fc.AddFeature(f)
	}
	raw, err := json.Marshal(fc)
	require.NoError(t, err)
	return raw
}

// shapefileFixture writes rows with go-shp and zips the result. rings are
// written as given so tests control winding. prj may be empty.
func shapefileFixture(t *testing.T, rows []fixtureRow, extraRings map[int][]orb.Ring, prj string) []byte {
	t.Helper()
	dir := t.TempDir()
	base := filepath.Join(dir, "parcels")

	w, err := shp.Create(base+".shp", shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("parcelnumb", 20),
		shp.FloatField("variance_a", 19, 4),
		shp.StringField("county", 20),
	}))
	for i, r := range rows {
		parts := [][]shp.Point{toShpPoints(r.ring)}
		for _, extra := range extraRings[i] {
			parts = append(parts, toShpPoints(extra))
		}
		poly := shp.Polygon(*shp.NewPolyLine(parts))
		row := int(w.Write(&poly))
		require.NoError(t, w.WriteAttribute(row, 0, r.id))
		if !math.IsNaN(r.variance) {
			require.NoError(t, w.WriteAttribute(row, 1, r.variance))
		}
		require.NoError(t, w.WriteAttribute(row, 2, "Tarrant"))
	}
	w.Close()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	add := func(name string, data []byte) {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	add("parcels.shp", readFile(t, base+".shp"))
	add("parcels.shx", readFile(t, base+".shx"))
	add("parcels.dbf", readDBF(t, base))
	if prj != "" {
		add("parcels.prj", []byte(prj))
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func toShpPoints(r orb.Ring) []shp.Point {
	out := make([]shp.Point, len(r))
	for i, p := range r {
		out[i] = shp.Point{X: p[0], Y: p[1]}
	}
	return out
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

// readDBF finds the attribute table go-shp wrote. Some releases name it
// "<base>dbf" without the dot.
func readDBF(t *testing.T, base string) []byte {
	t.Helper()
	for _, p := range []string{base + ".dbf", base + "dbf"} {
		if b, err := os.ReadFile(p); err == nil {
			return b
		}
	}
	t.Fatalf("no dbf written next to %s", base)
	return nil
}

// gpkgBlob wraps WKB in a GeoPackage binary header with an XY envelope.
func gpkgBlob(t *testing.T, g orb.Geometry, srsID int32) []byte {
	t.Helper()
	body, err := wkb.Marshal(g, binary.LittleEndian)
	require.NoError(t, err)

	b := g.Bound()
	var buf bytes.Buffer
	buf.Write([]byte{'G', 'P', 0, 0x01 | 1<<1}) // little endian, 32-byte envelope
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, srsID))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, []float64{b.Min[0], b.Max[0], b.Min[1], b.Max[1]}))
	buf.Write(body)
	return buf.Bytes()
}

func geoPackageFixture(t *testing.T, rows []fixtureRow, srsID int32, srsDef string) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parcels.gpkg")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE gpkg_spatial_ref_sys (srs_name TEXT NOT NULL, srs_id INTEGER PRIMARY KEY, organization TEXT NOT NULL, organization_coordsys_id INTEGER NOT NULL, definition TEXT NOT NULL, description TEXT)`,
		`CREATE TABLE gpkg_contents (table_name TEXT PRIMARY KEY, data_type TEXT NOT NULL, identifier TEXT, srs_id INTEGER)`,
		`CREATE TABLE gpkg_geometry_columns (table_name TEXT NOT NULL, column_name TEXT NOT NULL, geometry_type_name TEXT NOT NULL, srs_id INTEGER NOT NULL, z TINYINT NOT NULL, m TINYINT NOT NULL)`,
		`CREATE TABLE parcel_polygon_stat (fid INTEGER PRIMARY KEY AUTOINCREMENT, geom BLOB, parcelnumb TEXT, variance_acres REAL, county TEXT, ll_gisacre REAL)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	_, err = db.Exec(`INSERT INTO gpkg_spatial_ref_sys VALUES ('custom', ?, 'NONE', ?, ?, NULL)`, srsID, srsID, srsDef)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO gpkg_contents VALUES ('parcel_polygon_stat', 'features', 'parcel_polygon_stat', ?)`, srsID)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO gpkg_geometry_columns VALUES ('parcel_polygon_stat', 'geom', 'MULTIPOLYGON', ?, 0, 0)`, srsID)
	require.NoError(t, err)

	for _, r := range rows {
		var v any
		if !math.IsNaN(r.variance) {
			v = r.variance
		}
		_, err := db.Exec(`INSERT INTO parcel_polygon_stat (geom, parcelnumb, variance_acres, county, ll_gisacre) VALUES (?, ?, ?, 'Tarrant', 1.5)`,
			gpkgBlob(t, orb.MultiPolygon{{r.ring}}, srsID), r.id, v)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())
	return readFile(t, path)
}
