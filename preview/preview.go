// Package preview draws a cosmetic, software-shaded sphere for a material.
package preview

import (
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/setanarut/brdfseed"
)

type Light struct {
	Dir       mgl64.Vec3
	Intensity float64
}

type Options struct {
	Size       int
	Background color.RGBA
	Ambient    float64
	Lights     []Light
	// View direction, from the surface toward the camera.
	View mgl64.Vec3
}

func DefaultOptions() Options {
	return Options{
		Size:       256,
		Background: color.RGBA{0x1a, 0x1a, 0x2e, 0xff},
		Ambient:    0.6,
		Lights: []Light{
			{Dir: mgl64.Vec3{3, 4, 3}, Intensity: 1.2},
			{Dir: mgl64.Vec3{-2, 2, 2}, Intensity: 0.4},
		},
		View: mgl64.Vec3{0, 0, 1},
	}
}

type shader struct {
	diffuse mgl64.Vec3
	f0      mgl64.Vec3
	alpha2  float64
	ambient mgl64.Vec3
	lights  []Light
	view    mgl64.Vec3
}

func vec(c colorful.Color) mgl64.Vec3 {
	r, g, b := c.LinearRgb()
	return mgl64.Vec3{r, g, b}
}

func lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Mul(1 - t).Add(b.Mul(t))
}

func newShader(m brdfseed.MaterialEstimate, opt Options) *shader {
	m = m.Clamped()
	base := vec(m.Albedo)
	// Roughness is floored so the GGX lobe never degenerates into a spike.
	a := max(m.Roughness, 0.04)
	s := &shader{
		diffuse: base.Mul(1 - m.Metallic),
		f0:      lerp(mgl64.Vec3{0.04, 0.04, 0.04}, base, m.Metallic),
		alpha2:  a * a * a * a,
		view:    unit(opt.View, DefaultOptions().View),
	}
	s.ambient = s.diffuse.Add(s.f0.Mul(0.5)).Mul(opt.Ambient)
	for _, l := range opt.Lights {
		// A light without a direction contributes nothing.
		if l.Dir.Len() == 0 {
			continue
		}
		s.lights = append(s.lights, Light{Dir: l.Dir.Normalize(), Intensity: l.Intensity})
	}
	return s
}

// unit normalizes v, or returns fallback when v has no direction.
func unit(v, fallback mgl64.Vec3) mgl64.Vec3 {
	if v.Len() == 0 {
		return fallback.Normalize()
	}
	return v.Normalize()
}

// shade evaluates outgoing linear radiance for surface normal n.
func (s *shader) shade(n mgl64.Vec3) mgl64.Vec3 {
	out := s.ambient
	nv := max(n.Dot(s.view), 1e-4)
	for _, l := range s.lights {
		nl := n.Dot(l.Dir)
		if nl <= 0 {
			continue
		}
		h := l.Dir.Add(s.view).Normalize()
		nh := max(n.Dot(h), 0)
		vh := max(s.view.Dot(h), 0)

		// GGX distribution, Schlick Fresnel, Smith-Schlick visibility.
		d := nh*nh*(s.alpha2-1) + 1
		ndf := s.alpha2 / (math.Pi * d * d)
		fw := math.Pow(1-vh, 5)
		fresnel := s.f0.Mul(1 - fw).Add(mgl64.Vec3{fw, fw, fw})
		k := math.Sqrt(s.alpha2) / 2
		vis := 1 / ((nl*(1-k) + k) * (nv*(1-k) + k))
		spec := fresnel.Mul(ndf * vis / 4)

		out = out.Add(s.diffuse.Add(spec).Mul(nl * l.Intensity))
	}
	return out
}

// Render draws the material on a sphere filling an opt.Size square. Pixels
// off the sphere take the background color; edges are not antialiased.
func Render(m brdfseed.MaterialEstimate, opt Options) *image.RGBA {
	size := max(opt.Size, 1)
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	s := newShader(m, opt)
	radius := float64(size) / 2 * 0.9
	center := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			px := (float64(x) + 0.5 - center) / radius
			py := (center - float64(y) - 0.5) / radius
			r2 := px*px + py*py
			if r2 > 1 {
				img.SetRGBA(x, y, opt.Background)
				continue
			}
			n := mgl64.Vec3{px, py, math.Sqrt(1 - r2)}
			c := s.shade(n)
			// Reinhard, then back to sRGB.
			out := colorful.LinearRgb(c[0]/(1+c[0]), c[1]/(1+c[1]), c[2]/(1+c[2]))
			r, g, b := out.Clamped().RGB255()
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}
