package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelview/internal/crypt"
	"parcelview/internal/session"
	"parcelview/internal/viewstate"
)

const parcelsGeoJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"parcelnumb":"A","variance_acres":0.5},
 "geometry":{"type":"Polygon","coordinates":[[[-97.301,32.699],[-97.301,32.701],[-97.299,32.701],[-97.299,32.699],[-97.301,32.699]]]}},
{"type":"Feature","properties":{"parcelnumb":"C","variance_acres":5},
 "geometry":{"type":"Polygon","coordinates":[[[-97.321,32.719],[-97.321,32.721],[-97.319,32.721],[-97.319,32.719],[-97.321,32.719]]]}}
]}`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// withDataset encrypts the fixture under a fresh key and points the
// environment at it.
func withDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	key, err := crypt.GenerateKey()
	require.NoError(t, err)
	plain := filepath.Join(dir, "parcels.geojson")
	require.NoError(t, os.WriteFile(plain, []byte(parcelsGeoJSON), 0o600))

	t.Setenv("PARCELVIEW_ENCRYPTION_KEY", key)
	t.Setenv("PARCELVIEW_USERNAME", "surveyor")
	t.Setenv("PARCELVIEW_PASSWORD", "s3cret")
	t.Setenv("PARCELVIEW_DATA_PATH", filepath.Join(dir, "parcels.dat"))

	_, err = execute(t, "encrypt", "--in", plain)
	require.NoError(t, err)
	return dir
}

func TestKeygen(t *testing.T) {
	out, err := execute(t, "keygen")
	require.NoError(t, err)
	_, err = crypt.ParseKey(strings.TrimSpace(out))
	assert.NoError(t, err)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parcelview.toml")

	_, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[scale]")

	_, err = execute(t, "config", "init", path)
	assert.Error(t, err, "refuses to overwrite")

	_, err = execute(t, "config", "init", "--force", path)
	assert.NoError(t, err)
}

func TestExportWritesCSV(t *testing.T) {
	dir := withDataset(t)
	out := filepath.Join(dir, "leads.csv")
	layer := filepath.Join(dir, "layer.geojson")

	_, err := execute(t, "export", "--out", out, "--geojson", layer)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "parcelnumb,variance_acres\nC,5\nA,0.5\n", string(data))

	data, err = os.ReadFile(layer)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
}

func TestExportFailsWithWrongKey(t *testing.T) {
	withDataset(t)
	other, err := crypt.GenerateKey()
	require.NoError(t, err)
	t.Setenv("PARCELVIEW_ENCRYPTION_KEY", other)

	_, err = execute(t, "export", "--out", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DECRYPTION")
}

func TestInspect(t *testing.T) {
	withDataset(t)

	out, err := execute(t, "inspect", "--top", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Records:    2")
	assert.Contains(t, out, "Variance (Acres) - Log Scaled [0.5, 5]")
	assert.Contains(t, out, "Parcel Number")
}

func TestInvalidScaleModeIsRejected(t *testing.T) {
	withDataset(t)
	t.Setenv("PARCELVIEW_SCALE_MODE", "cubic")

	_, err := execute(t, "inspect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scale.mode")
}

func TestPromptRetriesAfterRejection(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	_, err = w.WriteString("surveyor\nwrong\nsurveyor\ns3cret\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var out bytes.Buffer
	mgr := session.NewManager(session.NewGate("surveyor", "s3cret"), session.NewMemoryStore(0), viewstate.DefaultLevels())
	s, err := newPrompt(r, &out).login(context.Background(), mgr)
	require.NoError(t, err)
	assert.Equal(t, "surveyor", s.User)
	assert.Equal(t, 1, strings.Count(out.String(), "User not found or password incorrect"))
}

func TestPromptStopsAtEOF(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, w.Close())

	mgr := session.NewManager(session.NewGate("surveyor", "s3cret"), session.NewMemoryStore(0), viewstate.DefaultLevels())
	_, err = newPrompt(r, &bytes.Buffer{}).login(context.Background(), mgr)
	assert.Error(t, err)
}
