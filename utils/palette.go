package utils

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

type PaletteMethod int

const (
	PaletteMethodDominantColor PaletteMethod = iota
	PaletteMethodKMeans
)

func (m PaletteMethod) String() string {
	switch m {
	case PaletteMethodKMeans:
		return "kmeans"
	default:
		return "dominantcolor"
	}
}

// ParsePaletteMethod accepts the names produced by PaletteMethod.String.
func ParsePaletteMethod(s string) (PaletteMethod, error) {
	switch s {
	case "dominantcolor", "":
		return PaletteMethodDominantColor, nil
	case "kmeans":
		return PaletteMethodKMeans, nil
	}
	return 0, fmt.Errorf("unknown palette method %q", s)
}

type weightedColor struct {
	col    colorful.Color
	weight float64
}

func luma(c colorful.Color) float64 {
	r, g, b := c.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// SortPaletteByBrightness orders colors from darkest to brightest.
func SortPaletteByBrightness(palette []colorful.Color) {
	slices.SortFunc(palette, func(a, b colorful.Color) int {
		ya, yb := luma(a), luma(b)
		switch {
		case ya < yb:
			return -1
		case ya > yb:
			return 1
		}
		return 0
	})
}

// NearestPaletteColor returns the index of the palette entry perceptually
// closest to c, or -1 for an empty palette.
func NearestPaletteColor(palette []colorful.Color, c colorful.Color) int {
	best, bestD := -1, math.MaxFloat64
	for i, p := range palette {
		if d := p.DistanceCIEDE2000(c); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// ExtractPalette returns up to k representative colors of img, heaviest
// first. An empty k-means result falls back to dominant color.
func ExtractPalette(img image.Image, k int, method PaletteMethod) []colorful.Color {
	if k <= 0 {
		return nil
	}
	var cands []weightedColor
	if method == PaletteMethodKMeans {
		cands = kmeansCandidates(img, k)
	}
	if len(cands) == 0 {
		cands = dominantCandidates(img, k)
	}
	return selectDiverse(cands, k)
}

func dominantCandidates(img image.Image, k int) []weightedColor {
	found := dominantcolor.FindWeight(img, max(24, k*8))
	if len(found) == 0 {
		return []weightedColor{{col: colorful.Color{R: 0.5, G: 0.5, B: 0.5}, weight: 1}}
	}
	out := make([]weightedColor, 0, len(found))
	for _, c := range found {
		col, _ := colorful.MakeColor(c.RGBA)
		out = append(out, weightedColor{col: col.Clamped(), weight: max(c.Weight, 1e-6)})
	}
	return out
}

func kmeansCandidates(img image.Image, k int) []weightedColor {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}
	// Subsample large inputs; analysis images are small and never hit this.
	const maxSamples = 12000
	step := 1
	if n := b.Dx() * b.Dy(); n > maxSamples {
		step = int(math.Sqrt(float64(n)/maxSamples)) + 1
	}
	var obs clusters.Observations
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			obs = append(obs, clusters.Coordinates{
				float64(r) / 65535.0,
				float64(g) / 65535.0,
				float64(bl) / 65535.0,
			})
		}
	}
	if len(obs) == 0 {
		return nil
	}
	cc, err := kmeans.New().Partition(obs, min(k*2, len(obs)))
	if err != nil {
		return nil
	}
	out := make([]weightedColor, 0, len(cc))
	for _, c := range cc {
		if len(c.Observations) == 0 || len(c.Center) < 3 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped()
		out = append(out, weightedColor{col: col, weight: float64(len(c.Observations))})
	}
	return out
}

// selectDiverse seeds with the heaviest candidate, then greedily adds the
// candidate farthest (in Lab) from those already picked, biased by weight.
func selectDiverse(cands []weightedColor, k int) []colorful.Color {
	if len(cands) == 0 {
		return nil
	}
	slices.SortStableFunc(cands, func(a, b weightedColor) int {
		switch {
		case a.weight > b.weight:
			return -1
		case a.weight < b.weight:
			return 1
		}
		return 0
	})
	k = min(k, len(cands))
	maxW := cands[0].weight
	picked := []int{0}
	used := make([]bool, len(cands))
	used[0] = true
	for len(picked) < k {
		best, bestScore := -1, -1.0
		for i, c := range cands {
			if used[i] {
				continue
			}
			minD := math.MaxFloat64
			for _, p := range picked {
				minD = min(minD, c.col.DistanceLab(cands[p].col))
			}
			score := minD * (0.55 + 0.45*math.Sqrt(c.weight/maxW))
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		used[best] = true
		picked = append(picked, best)
	}
	out := make([]colorful.Color, len(picked))
	for i, p := range picked {
		out[i] = cands[p].col
	}
	return out
}

func to8(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Swatch lays the palette out as tiles in the top row and fills the bottom
// row with the estimated albedo.
func Swatch(palette []colorful.Color, albedo colorful.Color, tileSize int) *image.RGBA {
	if tileSize <= 0 {
		tileSize = 64
	}
	cols := max(len(palette), 1)
	img := image.NewRGBA(image.Rect(0, 0, tileSize*cols, tileSize*2))
	for i, c := range palette {
		fillRect(img, image.Rect(i*tileSize, 0, (i+1)*tileSize, tileSize), to8(c))
	}
	fillRect(img, image.Rect(0, tileSize, tileSize*cols, tileSize*2), to8(albedo))
	return img
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func SaveSwatch(palette []colorful.Color, albedo colorful.Color, tileSize int, filename string) error {
	return SaveImage(Swatch(palette, albedo, tileSize), filename)
}
