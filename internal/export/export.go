// Package export serializes a loaded dataset: the CSV lead list offered as
// leads.csv and the styled GeoJSON layer the map page draws.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"

	"parcelview/internal/colorscale"
	"parcelview/internal/dataset"
	"parcelview/internal/errors"
	"parcelview/internal/style"
	"parcelview/internal/types"
)

// LeadsFileName is the download name of the CSV lead list.
const LeadsFileName = "leads.csv"

// Records returns the non-geometry attribute table of ds: the header in
// column order, then one row per parcel in dataset order.
func Records(ds *dataset.Dataset) (header []string, rows [][]string) {
	header = append([]string(nil), ds.Columns...)
	rows = make([][]string, len(ds.Parcels))
	for i, p := range ds.Parcels {
		row := make([]string, len(header))
		for j, col := range header {
			row[j] = p.Attribute(col)
		}
		rows[i] = row
	}
	return header, rows
}

// WriteCSV writes the lead list to w.
func WriteCSV(w io.Writer, ds *dataset.Dataset) error {
	header, rows := Records(ds)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(errors.ErrCodeExport, err, "write csv header")
	}
	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrap(errors.ErrCodeExport, err, "write csv rows")
	}
	return nil
}

// CSV returns the lead list as bytes.
func CSV(ds *dataset.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, ds); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Layer builds the GeoJSON feature collection for the map. Each feature
// carries its attributes, its table row index under "row" and its path
// style under "style". NaN numbers become null.
func Layer(ds *dataset.Dataset, scale *colorscale.Scale) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, p := range ds.Parcels {
		f := geojson.NewFeature(geometry(p.Geometry))
		for _, col := range ds.Columns {
			f.SetProperty(col, property(p, col))
		}
		f.SetProperty("row", i)
		f.SetProperty("style", style.For(p, scale))
		f.SetProperty("tooltip", style.Tooltip(p))
		fc.AddFeature(f)
	}
	return fc
}

// LayerJSON marshals Layer.
func LayerJSON(ds *dataset.Dataset, scale *colorscale.Scale) ([]byte, error) {
	b, err := json.Marshal(Layer(ds, scale))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExport, err, "encode geojson layer")
	}
	return b, nil
}

func property(p types.Parcel, col string) interface{} {
	if !types.IsNumericColumn(col) {
		return p.Attribute(col)
	}
	v := p.Numeric(col)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func geometry(g orb.Geometry) *geojson.Geometry {
	switch g := g.(type) {
	case orb.Polygon:
		return geojson.NewPolygonGeometry(polygonCoords(g))
	case orb.MultiPolygon:
		out := make([][][][]float64, len(g))
		for i, p := range g {
			out[i] = polygonCoords(p)
		}
		return geojson.NewMultiPolygonGeometry(out...)
	}
	return nil
}

func polygonCoords(p orb.Polygon) [][][]float64 {
	rings := make([][][]float64, len(p))
	for i, r := range p {
		pts := make([][]float64, len(r))
		for j, pt := range r {
			pts[j] = []float64{pt[0], pt[1]}
		}
		rings[i] = pts
	}
	return rings
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeExport, err, "create %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeExport, err, "write %s", path)
	}
	return nil
}
