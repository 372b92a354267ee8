package optimize

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/setanarut/brdfseed"
)

// Metrics are simulated quality figures derived from a loss value alone.
// They are not measured against any image.
type Metrics struct {
	PSNR float64 // dB
	SSIM float64
	Loss float64
}

// MetricsFromLoss maps a loss onto display-friendly PSNR and SSIM values.
func MetricsFromLoss(loss float64) Metrics {
	return Metrics{
		PSNR: 28 - (math.Log10(loss)+3)*4.3,
		SSIM: max(0.3, 1-loss*100),
		Loss: loss,
	}
}

// History is the per-iteration record of one or more runs.
type History struct {
	Losses []float64
	Params []brdfseed.MaterialEstimate
}

func (h History) Len() int { return len(h.Losses) }

// Metrics reports the figures for the last recorded loss.
func (h History) Metrics() (Metrics, bool) {
	if len(h.Losses) == 0 {
		return Metrics{}, false
	}
	return MetricsFromLoss(h.Losses[len(h.Losses)-1]), true
}

// BestLoss returns the lowest loss and its iteration, or (-1, NaN) when empty.
func (h History) BestLoss() (int, float64) {
	if len(h.Losses) == 0 {
		return -1, math.NaN()
	}
	i := floats.MinIdx(h.Losses)
	return i, h.Losses[i]
}

// Trajectory columns.
const (
	ColAlbedoR = iota
	ColAlbedoG
	ColAlbedoB
	ColRoughness
	ColMetallic
	numCols
)

var colNames = [numCols]string{"albedo_r", "albedo_g", "albedo_b", "roughness", "metallic"}

// Trajectory returns the parameter history as an iterations x 5 matrix, or
// nil when empty.
func (h History) Trajectory() *mat.Dense {
	if len(h.Params) == 0 {
		return nil
	}
	data := make([]float64, 0, len(h.Params)*numCols)
	for _, p := range h.Params {
		data = append(data, p.Albedo.R, p.Albedo.G, p.Albedo.B, p.Roughness, p.Metallic)
	}
	return mat.NewDense(len(h.Params), numCols, data)
}

// ParamSpread is the mean and standard deviation of one trajectory column.
type ParamSpread struct {
	Name   string  `json:"name"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Spread summarizes how far each parameter wandered over the history.
func (h History) Spread() []ParamSpread {
	m := h.Trajectory()
	if m == nil {
		return nil
	}
	rows, _ := m.Dims()
	col := make([]float64, rows)
	out := make([]ParamSpread, numCols)
	for j := 0; j < numCols; j++ {
		mat.Col(col, j, m)
		mean, std := stat.MeanStdDev(col, nil)
		if rows < 2 {
			std = 0
		}
		out[j] = ParamSpread{Name: colNames[j], Mean: mean, StdDev: std}
	}
	return out
}
