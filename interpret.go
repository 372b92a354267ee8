package brdfseed

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

type Level int

const (
	Low Level = iota
	Medium
	High
)

func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case Medium:
		return "medium"
	default:
		return "high"
	}
}

func levelOf(v float64) Level {
	switch {
	case v < 0.3:
		return Low
	case v < 0.7:
		return Medium
	default:
		return High
	}
}

// Interpretation is a qualitative reading of a MaterialEstimate. It describes
// physical tendencies, not material classes.
type Interpretation struct {
	Brightness Level
	Surface    Level
	Metal      Level
}

// Interpret buckets brightness (mean albedo), roughness and metallic at
// 0.3 and 0.7.
func Interpret(m MaterialEstimate) Interpretation {
	mean := (m.Albedo.R + m.Albedo.G + m.Albedo.B) / 3
	// Compared at two decimals, matching the precision the values are shown at.
	mean = math.Round(mean*100) / 100
	return Interpretation{
		Brightness: levelOf(mean),
		Surface:    levelOf(m.Roughness),
		Metal:      levelOf(m.Metallic),
	}
}

var (
	brightnessText = [...]string{
		Low:    "Dark material with low reflectance.",
		Medium: "Material with moderate reflectance.",
		High:   "Bright material with high reflectance.",
	}
	surfaceText = [...]string{
		Low:    "Smooth surface with sharp (specular) reflections.",
		Medium: "Surface with mixed diffuse and specular character.",
		High:   "Rough surface dominated by diffuse reflection.",
	}
	metalText = [...]string{
		Low:    "Shows non-metallic (dielectric) behaviour.",
		Medium: "Shows behaviour between metal and non-metal.",
		High:   "Shows metallic (conductive) behaviour.",
	}
)

func (in Interpretation) Lines() []string {
	return []string{
		brightnessText[in.Brightness],
		surfaceText[in.Surface],
		metalText[in.Metal],
	}
}

func (in Interpretation) String() string {
	return strings.Join(in.Lines(), " ")
}

// String lists the parameters at two decimals.
func (m MaterialEstimate) String() string {
	return fmt.Sprintf("albedo=RGB(%.2f, %.2f, %.2f) roughness=%.2f metallic=%.2f",
		m.Albedo.R, m.Albedo.G, m.Albedo.B, m.Roughness, m.Metallic)
}

// ============ GLOSSARY ============

type GlossaryEntry struct {
	Title string
	Text  string
}

var glossary = map[string]GlossaryEntry{
	"albedo": {
		Title: "Albedo",
		Text:  "RGB base color and diffuse reflectance of the material. Higher values mean a brighter, more reflective surface.",
	},
	"roughness": {
		Title: "Roughness",
		Text: "Micro-texture of the surface.\n" +
			"  0.0: smooth, mirror-like reflections\n" +
			"  0.5: mix of diffuse and specular\n" +
			"  1.0: rough, diffuse reflection dominates",
	},
	"metallic": {
		Title: "Metallic",
		Text: "How metal-like the material is.\n" +
			"  0.0: non-metal (dielectric)\n" +
			"  0.5: transition between metal and non-metal\n" +
			"  1.0: metal (conductive)",
	},
	"metrics": {
		Title: "Quality metrics",
		Text: "PSNR (dB) and SSIM (0-1) compare input and render; loss is the error being minimized.\n" +
			"Here they are simulated from the synthetic loss curve, not measured.",
	},
	"optimization-curve": {
		Title: "Optimization curve",
		Text:  "Loss per iteration on a logarithmic scale. A falling curve followed by a plateau indicates convergence.",
	},
	"optimization-loss": {
		Title: "Optimization loss",
		Text:  "Error between an image rendered with the estimated parameters and the input image.",
	},
}

// Explain looks up a glossary term such as "roughness".
func Explain(term string) (GlossaryEntry, bool) {
	e, ok := glossary[strings.ToLower(strings.TrimSpace(term))]
	return e, ok
}

// GlossaryTerms lists the known terms in sorted order.
func GlossaryTerms() []string {
	terms := make([]string, 0, len(glossary))
	for k := range glossary {
		terms = append(terms, k)
	}
	slices.Sort(terms)
	return terms
}
