package brdfseed

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultAnalysisSize is the side length photos are cropped and resampled to
// before estimation.
const DefaultAnalysisSize = 96

const (
	highlightThreshold = 0.8
	clipLow            = 0.05
	clipHigh           = 0.95

	roughnessMin = 0.15
	roughnessMax = 0.98
)

var (
	ErrEmptyImage  = errors.New("brdfseed: empty image")
	ErrNotSquare   = errors.New("brdfseed: image is not square")
	ErrPixelLength = errors.New("brdfseed: pixel data does not match dimensions")
)

// ImageBuffer is a read-only snapshot of non-premultiplied RGBA pixels,
// row-major, top to bottom.
type ImageBuffer struct {
	w, h int
	pix  []uint8 // len = w*h*4
}

// NewImageBuffer copies pix into a new buffer after checking that the
// dimensions are square and match the data.
func NewImageBuffer(w, h int, pix []uint8) (*ImageBuffer, error) {
	if err := checkDims(w, h, len(pix)); err != nil {
		return nil, err
	}
	buf := &ImageBuffer{w: w, h: h, pix: make([]uint8, len(pix))}
	copy(buf.pix, pix)
	return buf, nil
}

// BufferFromImage snapshots img. The image must already be square; see
// utils.PrepareSquare for cropping arbitrary photos.
func BufferFromImage(img image.Image) (*ImageBuffer, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if err := checkDims(w, h, w*h*4); err != nil {
		return nil, err
	}
	buf := &ImageBuffer{w: w, h: h, pix: make([]uint8, w*h*4)}
	if src, ok := img.(*image.NRGBA); ok {
		row := w * 4
		for y := 0; y < h; y++ {
			i := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(buf.pix[y*row:(y+1)*row], src.Pix[i:i+row])
		}
		return buf, nil
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			off := pixOffset(w, x, y)
			buf.pix[off] = c.R
			buf.pix[off+1] = c.G
			buf.pix[off+2] = c.B
			buf.pix[off+3] = c.A
		}
	}
	return buf, nil
}

func (b *ImageBuffer) Width() int  { return b.w }
func (b *ImageBuffer) Height() int { return b.h }

// At returns the stored bytes of pixel (x, y).
func (b *ImageBuffer) At(x, y int) color.NRGBA {
	off := pixOffset(b.w, x, y)
	return color.NRGBA{R: b.pix[off], G: b.pix[off+1], B: b.pix[off+2], A: b.pix[off+3]}
}

func checkDims(w, h, n int) error {
	if w <= 0 || h <= 0 {
		return ErrEmptyImage
	}
	if w != h {
		return ErrNotSquare
	}
	if n != w*h*4 {
		return ErrPixelLength
	}
	return nil
}

func (b *ImageBuffer) validate() error {
	if b == nil {
		return ErrEmptyImage
	}
	return checkDims(b.w, b.h, len(b.pix))
}

func pixOffset(w, x, y int) int {
	return (y*w + x) * 4
}

// MaterialEstimate is an initial guess for the material parameters.
// Albedo channels and Metallic lie in [0,1], Roughness in [0.15,0.98].
type MaterialEstimate struct {
	Albedo    colorful.Color
	Roughness float64
	Metallic  float64
}

// DefaultMaterial is the neutral starting point used before any image is
// analyzed.
func DefaultMaterial() MaterialEstimate {
	return MaterialEstimate{
		Albedo:    colorful.Color{R: 0.5, G: 0.5, B: 0.5},
		Roughness: 0.5,
		Metallic:  0,
	}
}

// Clamped returns a copy with every field forced into [0,1]. Used for
// hand-edited values, which are not held to the estimator's roughness band.
func (m MaterialEstimate) Clamped() MaterialEstimate {
	return MaterialEstimate{
		Albedo:    m.Albedo.Clamped(),
		Roughness: clamp(m.Roughness, 0, 1),
		Metallic:  clamp(m.Metallic, 0, 1),
	}
}

// ImageStats holds the aggregates of one pass over an ImageBuffer.
type ImageStats struct {
	PixelCount     int
	ValidCount     int
	HighlightCount int

	AvgR, AvgG, AvgB float64
	AvgL             float64
	Variance         float64
	StdDev           float64
	Saturation       float64
	HighlightRatio   float64

	// Fallback is set when every pixel was clipped and the averages were
	// taken over the whole image instead.
	Fallback bool
}

type accumulator struct {
	r, g, b, l, l2 float64
	count          int
}

func (a *accumulator) add(r, g, b, l float64) {
	a.r += r
	a.g += g
	a.b += b
	a.l += l
	a.l2 += l * l
	a.count++
}

func luminance(r, g, b float64) float64 {
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// ============ STATISTICS ============

// Analyze makes a single pass over buf and returns its statistics.
func Analyze(buf *ImageBuffer) (ImageStats, error) {
	if err := buf.validate(); err != nil {
		return ImageStats{}, err
	}
	var valid, all accumulator
	highlights := 0
	for i := 0; i < len(buf.pix); i += 4 {
		r := float64(buf.pix[i]) / 255.0
		g := float64(buf.pix[i+1]) / 255.0
		b := float64(buf.pix[i+2]) / 255.0
		l := luminance(r, g, b)
		all.add(r, g, b, l)
		if l > highlightThreshold {
			highlights++
		}
		if l < clipLow || l > clipHigh {
			continue
		}
		valid.add(r, g, b, l)
	}

	st := ImageStats{
		PixelCount:     all.count,
		ValidCount:     valid.count,
		HighlightCount: highlights,
	}
	if valid.count > 0 {
		n := float64(valid.count)
		st.AvgR = valid.r / n
		st.AvgG = valid.g / n
		st.AvgB = valid.b / n
		st.AvgL = valid.l / n
		st.Variance = max(0, valid.l2/n-st.AvgL*st.AvgL)
	} else {
		n := float64(all.count)
		st.AvgR = all.r / n
		st.AvgG = all.g / n
		st.AvgB = all.b / n
		st.AvgL = luminance(st.AvgR, st.AvgG, st.AvgB)
		st.Fallback = true
	}
	st.StdDev = math.Sqrt(st.Variance)

	maxRGB := max(st.AvgR, st.AvgG, st.AvgB)
	minRGB := min(st.AvgR, st.AvgG, st.AvgB)
	if maxRGB != 0 {
		st.Saturation = (maxRGB - minRGB) / maxRGB
	}
	st.HighlightRatio = float64(highlights) / float64(all.count)
	return st, nil
}

// ============ ESTIMATE ============

// Estimate derives initial albedo, roughness and metallic guesses from the
// pixel statistics of buf.
func Estimate(buf *ImageBuffer) (MaterialEstimate, error) {
	st, err := Analyze(buf)
	if err != nil {
		return MaterialEstimate{}, err
	}
	return EstimateFromStats(st), nil
}

// EstimateFromStats maps precomputed statistics to a MaterialEstimate.
//
// Neutral, highlight-heavy, low-variance images lean metallic; saturated
// color and luminance variance pull metallic down. Albedo is blended toward
// the average luminance in proportion to metallic.
func EstimateFromStats(st ImageStats) MaterialEstimate {
	neutralness := 1 - st.Saturation
	colorPenalty := st.Saturation * 0.7
	variancePenalty := st.StdDev * 0.5
	metallic := clamp(0.08+neutralness*0.55+st.HighlightRatio*0.7-colorPenalty-variancePenalty, 0, 1)

	gray := st.AvgL
	blend := func(v float64) float64 {
		return clamp(v*(1-metallic)+gray*metallic, 0, 1)
	}
	return MaterialEstimate{
		Albedo:    colorful.Color{R: blend(st.AvgR), G: blend(st.AvgG), B: blend(st.AvgB)},
		Roughness: clamp(0.3+st.StdDev*0.7-st.HighlightRatio*0.25, roughnessMin, roughnessMax),
		Metallic:  metallic,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
