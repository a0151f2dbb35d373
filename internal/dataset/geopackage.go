package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"parcelview/internal/errors"
	"parcelview/internal/projection"

	_ "modernc.org/sqlite"
)

// readGeoPackage reads the first feature table of an OGC GeoPackage. SQLite
// needs a file, so the plaintext is spooled to a private temp file that is
// removed before returning.
func readGeoPackage(ctx context.Context, raw []byte) (*table, error) {
	f, err := os.CreateTemp("", "parcelview-*.gpkg")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create temp file")
	}
	name := f.Name()
	defer os.Remove(name)

	if _, err := f.Write(raw); err != nil {
		f.Close()
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "spool geopackage")
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "spool geopackage")
	}

	db, err := sql.Open("sqlite", "file:"+name+"?mode=ro")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "open geopackage")
	}
	defer db.Close()

	return readFeatureTable(ctx, db)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func readFeatureTable(ctx context.Context, db *sql.DB) (*table, error) {
	var tableName, geomCol string
	var srsID int64
	err := db.QueryRowContext(ctx,
		`SELECT table_name, column_name, srs_id FROM gpkg_geometry_columns ORDER BY table_name LIMIT 1`,
	).Scan(&tableName, &geomCol, &srsID)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeParse, "geopackage has no feature table")
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "read gpkg_geometry_columns")
	}

	crs, err := geoPackageCRS(ctx, db, srsID)
	if err != nil {
		return nil, err
	}

	// PRAGMA table_info gives declared column order and the primary key,
	// which is the row id rather than an attribute.
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(tableName)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "describe %s", tableName)
	}
	var columns []string
	pk := ""
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			isPK      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &isPK); err != nil {
			rows.Close()
			return nil, errors.Wrap(errors.ErrCodeParse, err, "describe %s", tableName)
		}
		switch {
		case isPK > 0 && pk == "":
			pk = name
		case strings.EqualFold(name, geomCol):
		default:
			columns = append(columns, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "describe %s", tableName)
	}

	sel := make([]string, 0, len(columns)+1)
	sel = append(sel, quoteIdent(geomCol))
	for _, c := range columns {
		sel = append(sel, quoteIdent(c))
	}
	query := fmt.Sprintf(`SELECT %s FROM %s`, strings.Join(sel, ", "), quoteIdent(tableName))
	if pk != "" {
		query += " ORDER BY " + quoteIdent(pk)
	}

	rows, err = db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "read %s", tableName)
	}
	defer rows.Close()

	t := &table{columns: columns, crs: crs}
	vals := make([]any, len(sel))
	ptrs := make([]any, len(sel))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for n := 0; rows.Next(); n++ {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(errors.ErrCodeParse, err, "scan row %d", n)
		}
		blob, ok := vals[0].([]byte)
		if !ok {
			return nil, errors.New(errors.ErrCodeParse, "row %d: geometry is %T, want blob", n, vals[0])
		}
		g, err := decodeGeoPackageGeometry(blob)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeParse, err, "row %d", n)
		}
		attrs := make(map[string]string, len(columns))
		for i, c := range columns {
			attrs[c] = sqlString(vals[i+1])
		}
		t.features = append(t.features, feature{geom: g, attrs: attrs})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "read %s", tableName)
	}
	return t, nil
}

// geoPackageCRS resolves a gpkg srs_id. GeoPackage reserves 0 for undefined
// geographic coordinates, which are taken as WGS84.
func geoPackageCRS(ctx context.Context, db *sql.DB, srsID int64) (projection.CRS, error) {
	if srsID == 0 || srsID == 4326 {
		return projection.WGS84, nil
	}
	var org string
	var orgID int64
	var def sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT organization, organization_coordsys_id, definition FROM gpkg_spatial_ref_sys WHERE srs_id = ?`, srsID,
	).Scan(&org, &orgID, &def)
	if err != nil && err != sql.ErrNoRows {
		return projection.CRS{}, errors.Wrap(errors.ErrCodeParse, err, "read gpkg_spatial_ref_sys")
	}
	if err == nil && strings.EqualFold(org, "EPSG") {
		if c, err := projection.FromEPSG(int(orgID)); err == nil {
			return c, nil
		}
	}
	if def.Valid && strings.TrimSpace(def.String) != "" && !strings.EqualFold(strings.TrimSpace(def.String), "undefined") {
		return projection.FromWKT(def.String)
	}
	return projection.FromEPSG(int(srsID))
}

func sqlString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

// envelopeSize maps the GeoPackage envelope indicator to its byte length.
var envelopeSize = [...]int{0, 32, 48, 48, 64}

// decodeGeoPackageGeometry strips the GeoPackage binary header ("GP",
// version, flags, srs_id, optional envelope) and decodes the WKB body.
func decodeGeoPackageGeometry(b []byte) (orb.Geometry, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return nil, errors.New(errors.ErrCodeParse, "not a GeoPackage geometry blob")
	}
	flags := b[3]
	if flags&0x10 != 0 {
		return nil, errors.New(errors.ErrCodeParse, "empty geometry")
	}
	env := int(flags>>1) & 0x07
	if env >= len(envelopeSize) {
		return nil, errors.New(errors.ErrCodeParse, "invalid envelope indicator %d", env)
	}
	start := 8 + envelopeSize[env]
	if len(b) <= start {
		return nil, errors.New(errors.ErrCodeParse, "truncated geometry blob")
	}
	// Header bit 0 only sets the byte order of srs_id and the envelope; the
	// WKB body declares its own, and srs_id is resolved per table.
	g, err := wkb.Unmarshal(b[start:])
	if err != nil {
		return nil, err
	}
	return polygonal(g)
}
