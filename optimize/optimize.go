// Package optimize holds a stand-in for an inverse-rendering optimizer.
//
// RandomWalk does not fit anything. It jitters the starting parameters and
// reports a synthetic, exponentially decaying loss so that callers can drive
// progress displays. Real optimizers implement the same Optimizer interface.
package optimize

import (
	"context"
	"math"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"pgregory.net/rand"

	"github.com/setanarut/brdfseed"
)

// Step is the state after one iteration.
type Step struct {
	Iteration int
	Total     int
	Params    brdfseed.MaterialEstimate
	Loss      float64
}

// StepFunc observes each iteration. It may be nil.
type StepFunc func(Step)

// Result collects every step of a run.
type Result struct {
	Final   brdfseed.MaterialEstimate
	History History
	// Stopped is set when the context ended the run early.
	Stopped bool
}

// Optimizer refines material parameters starting from an estimate.
type Optimizer interface {
	Optimize(ctx context.Context, start brdfseed.MaterialEstimate, fn StepFunc) (Result, error)
}

// Options configure a RandomWalk.
type Options struct {
	// Iterations of the walk.
	Iterations int
	// NoiseScale is the full width of the uniform jitter applied to albedo
	// and roughness around the starting point.
	NoiseScale float64
	// Interval paces the loop. Zero runs as fast as possible.
	Interval time.Duration
	// Seed for the jitter. Zero picks a random seed.
	Seed uint64
}

// DefaultOptions returns 300 iterations paced at 20ms.
func DefaultOptions() Options {
	return Options{
		Iterations: 300,
		NoiseScale: 0.002,
		Interval:   20 * time.Millisecond,
	}
}

// RandomWalk is the mock optimizer. It is not safe for concurrent use.
type RandomWalk struct {
	opt Options
	rng *rand.Rand
}

// NewRandomWalk returns a walk seeded from opt.Seed.
func NewRandomWalk(opt Options) *RandomWalk {
	var rng *rand.Rand
	if opt.Seed != 0 {
		rng = rand.New(opt.Seed)
	} else {
		rng = rand.New()
	}
	return &RandomWalk{opt: opt, rng: rng}
}

// SyntheticLoss is the decay curve the walk reports before noise.
func SyntheticLoss(i int) float64 {
	return math.Exp(-float64(i) / 50)
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

// Optimize jitters albedo and roughness around start for the configured
// number of iterations while keeping metallic fixed. On cancellation it
// returns the steps taken so far together with ctx.Err().
func (w *RandomWalk) Optimize(ctx context.Context, start brdfseed.MaterialEstimate, fn StepFunc) (Result, error) {
	n := w.opt.Iterations
	res := Result{Final: start}
	res.History.Losses = make([]float64, 0, n)
	res.History.Params = make([]brdfseed.MaterialEstimate, 0, n)

	var tick <-chan time.Time
	if w.opt.Interval > 0 {
		t := time.NewTicker(w.opt.Interval)
		defer t.Stop()
		tick = t.C
	}

	jitter := func(v float64) float64 {
		return v + (w.rng.Float64()-0.5)*w.opt.NoiseScale
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			res.Stopped = true
			return res, err
		}
		p := brdfseed.MaterialEstimate{
			Albedo: colorful.Color{
				R: clamp01(jitter(start.Albedo.R)),
				G: clamp01(jitter(start.Albedo.G)),
				B: clamp01(jitter(start.Albedo.B)),
			},
			Roughness: clamp01(jitter(start.Roughness)),
			Metallic:  clamp01(start.Metallic),
		}
		loss := SyntheticLoss(i) + w.rng.Float64()*0.01

		res.History.Losses = append(res.History.Losses, loss)
		res.History.Params = append(res.History.Params, p)
		res.Final = p
		if fn != nil {
			fn(Step{Iteration: i, Total: n, Params: p, Loss: loss})
		}

		if tick != nil && i < n-1 {
			select {
			case <-ctx.Done():
				res.Stopped = true
				return res, ctx.Err()
			case <-tick:
			}
		}
	}
	return res, nil
}
