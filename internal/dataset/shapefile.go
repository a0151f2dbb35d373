package dataset

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"parcelview/internal/errors"
	"parcelview/internal/projection"
)

// shapefileMembers locates the .shp/.dbf/.prj triple inside a zip archive.
// The first .shp wins; its .dbf must share the base name.
type shapefileMembers struct {
	shp, dbf, prj *zip.File
}

func findMembers(zr *zip.Reader) (shapefileMembers, error) {
	var m shapefileMembers
	byName := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "__MACOSX/") || f.FileInfo().IsDir() {
			continue
		}
		byName[strings.ToLower(f.Name)] = f
		if m.shp == nil && strings.EqualFold(path.Ext(f.Name), ".shp") {
			m.shp = f
		}
	}
	if m.shp == nil {
		return m, errors.New(errors.ErrCodeParse, "zip archive contains no .shp file")
	}
	base := strings.ToLower(strings.TrimSuffix(m.shp.Name, path.Ext(m.shp.Name)))
	m.dbf = byName[base+".dbf"]
	m.prj = byName[base+".prj"]
	if m.dbf == nil {
		return m, errors.New(errors.ErrCodeParse, "%s has no matching .dbf attribute table", m.shp.Name)
	}
	return m, nil
}

// readShapefileZip reads polygon features and their DBF attributes from a
// zipped shapefile.
func readShapefileZip(raw []byte) (*table, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "open zip archive")
	}
	m, err := findMembers(zr)
	if err != nil {
		return nil, err
	}

	shpRC, err := m.shp.Open()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "open %s", m.shp.Name)
	}
	dbfRC, err := m.dbf.Open()
	if err != nil {
		shpRC.Close()
		return nil, errors.Wrap(errors.ErrCodeParse, err, "open %s", m.dbf.Name)
	}

	r := shp.SequentialReaderFromExt(shpRC, dbfRC)
	defer r.Close()

	fields := r.Fields()
	t := &table{columns: make([]string, len(fields))}
	for i, f := range fields {
		t.columns[i] = f.String()
	}

	for r.Next() {
		idx, shape := r.Shape()
		rings, ok := shapeRings(shape)
		if !ok {
			return nil, errors.New(errors.ErrCodeParse, "record %d: unsupported shape type %T", idx, shape)
		}
		g, err := assemblePolygons(rings)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeParse, err, "record %d", idx)
		}

		attrs := make(map[string]string, len(fields))
		for i := range fields {
			attrs[t.columns[i]] = strings.Trim(r.Attribute(i), "\x00 ")
		}
		t.features = append(t.features, feature{geom: g, attrs: attrs})
	}
	if err := r.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "read %s", m.shp.Name)
	}

	t.crs, err = shapefileCRS(m.prj, t.features)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// shapeRings splits a polygon shape's flat point list into rings using its
// part offsets.
func shapeRings(s shp.Shape) ([]orb.Ring, bool) {
	var parts []int32
	var points []shp.Point
	switch p := s.(type) {
	case *shp.Polygon:
		parts, points = p.Parts, p.Points
	case *shp.PolygonZ:
		parts, points = p.Parts, p.Points
	case *shp.PolygonM:
		parts, points = p.Parts, p.Points
	default:
		return nil, false
	}

	rings := make([]orb.Ring, 0, len(parts))
	for i := range parts {
		start := parts[i]
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || start >= end {
			continue
		}
		ring := make(orb.Ring, 0, end-start)
		for _, pt := range points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		rings = append(rings, ring)
	}
	return rings, true
}

// assemblePolygons groups shapefile rings into polygons. Shapefiles wind
// outer rings clockwise and holes counter-clockwise; each hole joins the
// outer ring that contains it.
func assemblePolygons(rings []orb.Ring) (orb.Geometry, error) {
	if len(rings) == 0 {
		return nil, errors.New(errors.ErrCodeParse, "polygon has no rings")
	}

	var polys []orb.Polygon
	var holes []orb.Ring
	for _, r := range rings {
		if r.Orientation() == orb.CCW {
			holes = append(holes, r)
			continue
		}
		polys = append(polys, orb.Polygon{r})
	}
	if len(polys) == 0 {
		// Every ring wound the wrong way; treat them all as outers.
		for _, r := range holes {
			polys = append(polys, orb.Polygon{r})
		}
		holes = nil
	}

	for _, h := range holes {
		owner := len(polys) - 1
		for i, p := range polys {
			if planar.RingContains(p[0], h[0]) {
				owner = i
				break
			}
		}
		polys[owner] = append(polys[owner], h)
	}

	if len(polys) == 1 {
		return polys[0], nil
	}
	return orb.MultiPolygon(polys), nil
}

// shapefileCRS reads the .prj definition. Without one, the coordinates must
// already look like lon/lat.
func shapefileCRS(prj *zip.File, features []feature) (projection.CRS, error) {
	if prj == nil {
		for _, f := range features {
			b := f.geom.Bound()
			if b.Min[0] < -180 || b.Max[0] > 180 || b.Min[1] < -90 || b.Max[1] > 90 {
				return projection.CRS{}, errors.New(errors.ErrCodeProjection,
					"shapefile has no .prj and its coordinates are not longitude/latitude")
			}
		}
		return projection.WGS84, nil
	}

	rc, err := prj.Open()
	if err != nil {
		return projection.CRS{}, errors.Wrap(errors.ErrCodeParse, err, "open %s", prj.Name)
	}
	defer rc.Close()
	def, err := io.ReadAll(rc)
	if err != nil {
		return projection.CRS{}, errors.Wrap(errors.ErrCodeParse, err, "read %s", prj.Name)
	}
	return projection.FromWKT(string(def))
}
