package export

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setanarut/brdfseed"
	"github.com/setanarut/brdfseed/optimize"
)

func TestParametersRoundTrip(t *testing.T) {
	m := brdfseed.DefaultMaterial()
	m.Metallic = 0.63
	rec := Record{
		Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Parameters: FromMaterial(m),
		Losses:     []float64{1, 0.5, 0.25},
		Iterations: 3,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteParameters(&buf, rec))
	out := buf.String()
	assert.Contains(t, out, `"2024-05-01T12:00:00Z"`)
	assert.Contains(t, out, "\n  ")

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 3.0, doc["iterations"])
	assert.Len(t, doc["parameters"].(map[string]any)["albedo"], 3)

	got, err := ReadParameters(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(rec, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, m, got.Parameters.Material())
}

func TestWriteParametersEmptyLosses(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteParameters(&buf, Record{Parameters: FromMaterial(brdfseed.DefaultMaterial())}))
	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, []any{}, doc["losses"])
	assert.NotContains(t, doc, "spread")
}

func TestNewRecordSpread(t *testing.T) {
	a := brdfseed.DefaultMaterial()
	b := a
	b.Roughness = 0.7
	h := optimize.History{
		Losses: []float64{0.9, 0.4},
		Params: []brdfseed.MaterialEstimate{a, b},
	}
	ts := time.UnixMilli(7)
	rec := NewRecord(ts, b, h)
	assert.Equal(t, 2, rec.Iterations)
	assert.Equal(t, FromMaterial(b), rec.Parameters)
	require.Len(t, rec.Spread, 5)
	assert.Equal(t, "roughness", rec.Spread[optimize.ColRoughness].Name)
	assert.InDelta(t, 0.6, rec.Spread[optimize.ColRoughness].Mean, 1e-12)
	assert.Greater(t, rec.Spread[optimize.ColRoughness].StdDev, 0.0)
	assert.Zero(t, rec.Spread[optimize.ColMetallic].StdDev)

	var buf bytes.Buffer
	require.NoError(t, WriteParameters(&buf, rec))
	got, err := ReadParameters(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(rec.Spread, got.Spread, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("spread mismatch (-want +got):\n%s", diff)
	}

	empty := NewRecord(ts, a, optimize.History{})
	assert.Nil(t, empty.Spread)
	assert.Zero(t, empty.Iterations)
}

func TestReadParametersInvalid(t *testing.T) {
	_, err := ReadParameters(strings.NewReader("{not json"))
	assert.Error(t, err)
}

func TestFilenames(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	assert.Equal(t, "brdf_params_1700000000123.json", ParametersFilename(ts))
	assert.Equal(t, "brdf_render_1700000000123.png", RenderFilename(ts))
}

func TestSaveFiles(t *testing.T) {
	dir := t.TempDir()
	ts := time.UnixMilli(42)

	path, err := SaveParameters(dir, Record{Timestamp: ts})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "brdf_params_42.json"), path)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rec, err := ReadParameters(f)
	require.NoError(t, err)
	assert.True(t, rec.Timestamp.Equal(ts))

	path, err = SaveRender(dir, image.NewRGBA(image.Rect(0, 0, 2, 2)), ts)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)

	_, err = SaveParameters(filepath.Join(dir, "missing"), Record{})
	assert.Error(t, err)
}
