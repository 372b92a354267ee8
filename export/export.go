// Package export writes estimation results to disk.
package export

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/setanarut/brdfseed"
	"github.com/setanarut/brdfseed/optimize"
	"github.com/setanarut/brdfseed/utils"
)

// Parameters is the on-disk form of a MaterialEstimate.
type Parameters struct {
	Albedo    [3]float64 `json:"albedo"`
	Roughness float64    `json:"roughness"`
	Metallic  float64    `json:"metallic"`
}

func FromMaterial(m brdfseed.MaterialEstimate) Parameters {
	return Parameters{
		Albedo:    [3]float64{m.Albedo.R, m.Albedo.G, m.Albedo.B},
		Roughness: m.Roughness,
		Metallic:  m.Metallic,
	}
}

func (p Parameters) Material() brdfseed.MaterialEstimate {
	return brdfseed.MaterialEstimate{
		Albedo:    colorful.Color{R: p.Albedo[0], G: p.Albedo[1], B: p.Albedo[2]},
		Roughness: p.Roughness,
		Metallic:  p.Metallic,
	}
}

// Record is the exported document. Iterations counts recorded parameter
// steps across all runs since the last reset.
type Record struct {
	Timestamp  time.Time  `json:"timestamp"`
	Parameters Parameters `json:"parameters"`
	Losses     []float64  `json:"losses"`
	Iterations int        `json:"iterations"`
	// Spread is omitted when no optimization has run.
	Spread []optimize.ParamSpread `json:"spread,omitempty"`
}

// NewRecord builds the document for the current parameters and the
// optimization history h.
func NewRecord(t time.Time, params brdfseed.MaterialEstimate, h optimize.History) Record {
	return Record{
		Timestamp:  t,
		Parameters: FromMaterial(params),
		Losses:     h.Losses,
		Iterations: len(h.Params),
		Spread:     h.Spread(),
	}
}

func WriteParameters(w io.Writer, rec Record) error {
	if rec.Losses == nil {
		rec.Losses = []float64{}
	}
	b, err := json.Marshal(rec, jsontext.WithIndent("  "))
	if err != nil {
		return errors.Wrap(err, "marshal parameters")
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return errors.Wrap(err, "write parameters")
}

func ReadParameters(r io.Reader) (Record, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Record{}, errors.Wrap(err, "read parameters")
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, errors.Wrap(err, "unmarshal parameters")
	}
	return rec, nil
}

func ParametersFilename(t time.Time) string {
	return fmt.Sprintf("brdf_params_%d.json", t.UnixMilli())
}

func RenderFilename(t time.Time) string {
	return fmt.Sprintf("brdf_render_%d.png", t.UnixMilli())
}

// SaveParameters writes rec into dir under ParametersFilename(rec.Timestamp)
// and returns the path.
func SaveParameters(dir string, rec Record) (string, error) {
	path := filepath.Join(dir, ParametersFilename(rec.Timestamp))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create parameters file")
	}
	if err := WriteParameters(f, rec); err != nil {
		f.Close()
		return "", err
	}
	return path, errors.Wrapf(f.Close(), "close %s", path)
}

// SaveRender writes img into dir under RenderFilename(t) and returns the path.
func SaveRender(dir string, img image.Image, t time.Time) (string, error) {
	path := filepath.Join(dir, RenderFilename(t))
	if err := utils.SaveImage(img, path); err != nil {
		return "", err
	}
	return path, nil
}
