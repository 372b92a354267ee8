package brdfseed

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rand"
)

func uniform(t *testing.T, size int, c color.NRGBA) *ImageBuffer {
	t.Helper()
	pix := make([]uint8, size*size*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
	}
	buf, err := NewImageBuffer(size, size, pix)
	require.NoError(t, err)
	return buf
}

func assertInRange(t *testing.T, m MaterialEstimate) {
	t.Helper()
	for _, v := range []float64{m.Albedo.R, m.Albedo.G, m.Albedo.B, m.Metallic} {
		assert.False(t, math.IsNaN(v))
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.GreaterOrEqual(t, m.Roughness, 0.15)
	assert.LessOrEqual(t, m.Roughness, 0.98)
}

func TestEstimateMidGray(t *testing.T) {
	buf := uniform(t, DefaultAnalysisSize, color.NRGBA{128, 128, 128, 255})
	m, err := Estimate(buf)
	require.NoError(t, err)

	gray := 128.0 / 255.0
	assert.InDelta(t, 0.63, m.Metallic, 1e-6)
	assert.InDelta(t, gray, m.Albedo.R, 1e-6)
	assert.InDelta(t, gray, m.Albedo.G, 1e-6)
	assert.InDelta(t, gray, m.Albedo.B, 1e-6)
	assert.InDelta(t, 0.3, m.Roughness, 1e-6)
}

func TestEstimateAllBlackFallback(t *testing.T) {
	buf := uniform(t, 16, color.NRGBA{0, 0, 0, 255})
	st, err := Analyze(buf)
	require.NoError(t, err)
	assert.True(t, st.Fallback)
	assert.Zero(t, st.ValidCount)
	assert.Zero(t, st.Saturation)
	assert.Zero(t, st.StdDev)

	m := EstimateFromStats(st)
	assertInRange(t, m)
	assert.InDelta(t, 0.63, m.Metallic, 1e-9)
	assert.Zero(t, m.Albedo.R)
	assert.InDelta(t, 0.3, m.Roughness, 1e-9)
}

func TestEstimateAllWhiteFallback(t *testing.T) {
	buf := uniform(t, 8, color.NRGBA{255, 255, 255, 255})
	st, err := Analyze(buf)
	require.NoError(t, err)
	assert.True(t, st.Fallback)
	assert.Equal(t, 1.0, st.HighlightRatio)
	assert.InDelta(t, 1.0, st.AvgL, 1e-9)

	m := EstimateFromStats(st)
	assertInRange(t, m)
	// 0.08 + 0.55 + 0.7 saturates.
	assert.Equal(t, 1.0, m.Metallic)
	assert.InDelta(t, 0.15, m.Roughness, 1e-9)
}

func TestEstimateSaturatedRed(t *testing.T) {
	red, err := Estimate(uniform(t, 32, color.NRGBA{255, 0, 0, 255}))
	require.NoError(t, err)
	gray, err := Estimate(uniform(t, 32, color.NRGBA{128, 128, 128, 255}))
	require.NoError(t, err)

	assert.Less(t, red.Metallic, gray.Metallic)
	assert.Zero(t, red.Metallic)
	assert.Equal(t, 1.0, red.Albedo.R)
	assert.Zero(t, red.Albedo.G)
	assert.Zero(t, red.Albedo.B)
}

func TestEstimateHighlightsRaiseMetallic(t *testing.T) {
	const size = 20
	pix := make([]uint8, size*size*4)
	for i := 0; i < len(pix); i += 4 {
		v := uint8(128)
		if (i/4)%2 == 0 {
			v = 255
		}
		pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, 255
	}
	buf, err := NewImageBuffer(size, size, pix)
	require.NoError(t, err)

	st, err := Analyze(buf)
	require.NoError(t, err)
	assert.Equal(t, 0.5, st.HighlightRatio)
	assert.Equal(t, size*size/2, st.ValidCount)
	assert.False(t, st.Fallback)

	withHighlights := EstimateFromStats(st)
	plain, err := Estimate(uniform(t, size, color.NRGBA{128, 128, 128, 255}))
	require.NoError(t, err)

	assert.Greater(t, withHighlights.Metallic, plain.Metallic)
	assert.InDelta(t, 0.98, withHighlights.Metallic, 1e-6)
	assert.InDelta(t, 0.175, withHighlights.Roughness, 1e-6)
}

func TestEstimateVarianceRaisesRoughness(t *testing.T) {
	const size = 10
	pix := make([]uint8, size*size*4)
	for i := 0; i < len(pix); i += 4 {
		v := uint8(40)
		if (i/4)%2 == 0 {
			v = 200
		}
		pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, 255
	}
	buf, err := NewImageBuffer(size, size, pix)
	require.NoError(t, err)

	st, err := Analyze(buf)
	require.NoError(t, err)
	wantStd := (200.0 - 40.0) / 255.0 / 2
	assert.InDelta(t, wantStd, st.StdDev, 1e-9)

	m := EstimateFromStats(st)
	assert.InDelta(t, 0.3+wantStd*0.7, m.Roughness, 1e-9)
}

func TestEstimateRangesRandomImages(t *testing.T) {
	r := rand.New(7)
	for i := 0; i < 50; i++ {
		size := 1 + r.Intn(24)
		pix := make([]uint8, size*size*4)
		for i := range pix {
			pix[i] = uint8(r.Intn(256))
		}
		buf, err := NewImageBuffer(size, size, pix)
		require.NoError(t, err)
		m, err := Estimate(buf)
		require.NoError(t, err)
		assertInRange(t, m)
	}
}

func TestEstimateIdempotent(t *testing.T) {
	r := rand.New(42)
	pix := make([]uint8, 24*24*4)
	for i := range pix {
		pix[i] = uint8(r.Intn(256))
	}
	buf, err := NewImageBuffer(24, 24, pix)
	require.NoError(t, err)

	a, err := Estimate(buf)
	require.NoError(t, err)
	b, err := Estimate(buf)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNewImageBufferErrors(t *testing.T) {
	_, err := NewImageBuffer(0, 0, nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = NewImageBuffer(4, 3, make([]uint8, 4*3*4))
	assert.ErrorIs(t, err, ErrNotSquare)

	_, err = NewImageBuffer(4, 4, make([]uint8, 10))
	assert.ErrorIs(t, err, ErrPixelLength)

	_, err = Estimate(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = Estimate(&ImageBuffer{})
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestNewImageBufferCopies(t *testing.T) {
	pix := []uint8{10, 20, 30, 255}
	buf, err := NewImageBuffer(1, 1, pix)
	require.NoError(t, err)
	pix[0] = 99
	assert.Equal(t, color.NRGBA{10, 20, 30, 255}, buf.At(0, 0))
}

func TestBufferFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(5, 5, 9, 9))
	img.Set(5, 5, color.RGBA{200, 100, 50, 255})
	img.Set(8, 8, color.RGBA{1, 2, 3, 255})

	buf, err := BufferFromImage(img)
	require.NoError(t, err)
	assert.Equal(t, 4, buf.Width())
	assert.Equal(t, 4, buf.Height())
	assert.Equal(t, color.NRGBA{200, 100, 50, 255}, buf.At(0, 0))
	assert.Equal(t, color.NRGBA{1, 2, 3, 255}, buf.At(3, 3))

	_, err = BufferFromImage(image.NewRGBA(image.Rect(0, 0, 4, 2)))
	assert.ErrorIs(t, err, ErrNotSquare)
}

func TestBufferFromNRGBASubImage(t *testing.T) {
	r := rand.New(3)
	full := image.NewNRGBA(image.Rect(0, 0, 10, 8))
	for i := range full.Pix {
		full.Pix[i] = uint8(r.Uint32())
	}
	sub := full.SubImage(image.Rect(3, 2, 9, 8)).(*image.NRGBA)
	require.NotEqual(t, sub.Stride, sub.Bounds().Dx()*4)

	fast, err := BufferFromImage(sub)
	require.NoError(t, err)
	require.Equal(t, 6, fast.Width())
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			assert.Equal(t, full.NRGBAAt(3+x, 2+y), fast.At(x, y), "pixel (%d, %d)", x, y)
		}
	}

	// Hiding the concrete type forces the per-pixel conversion.
	generic, err := BufferFromImage(struct{ image.Image }{sub})
	require.NoError(t, err)
	assert.Equal(t, generic, fast)

	_, err = BufferFromImage(full)
	assert.ErrorIs(t, err, ErrNotSquare)
}

func TestClampedMaterial(t *testing.T) {
	m := MaterialEstimate{Roughness: 1.4, Metallic: -0.2}
	m.Albedo.R = 1.2
	c := m.Clamped()
	assert.Equal(t, 1.0, c.Roughness)
	assert.Equal(t, 0.0, c.Metallic)
	assert.Equal(t, 1.0, c.Albedo.R)
}
