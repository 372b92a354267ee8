// Package session keeps the application state around one analyzed image:
// current parameters, optimization histories and simulated metrics.
//
// Views subscribe to state changes instead of reading mutable fields.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/setanarut/brdfseed"
	"github.com/setanarut/brdfseed/optimize"
)

var (
	ErrNoImage = errors.New("session: no image loaded")
	ErrBusy    = errors.New("session: optimization already running")
)

// Event tells subscribers what changed.
type Event int

const (
	EventLoaded Event = iota
	EventParams
	EventStep
	EventStarted
	EventFinished
	EventReset
)

func (e Event) String() string {
	switch e {
	case EventLoaded:
		return "loaded"
	case EventParams:
		return "params"
	case EventStep:
		return "step"
	case EventStarted:
		return "started"
	case EventFinished:
		return "finished"
	case EventReset:
		return "reset"
	}
	return "unknown"
}

// State is a snapshot. Slices are copies owned by the receiver.
type State struct {
	ID         uuid.UUID
	Params     brdfseed.MaterialEstimate
	Estimate   *brdfseed.MaterialEstimate // last image estimate, nil before Load
	Stats      *brdfseed.ImageStats
	Losses     []float64
	History    []brdfseed.MaterialEstimate
	Metrics    *optimize.Metrics
	Optimizing bool
}

type Session struct {
	id        uuid.UUID
	optimizer optimize.Optimizer
	logger    *slog.Logger

	mu         sync.Mutex
	params     brdfseed.MaterialEstimate
	image      *brdfseed.ImageBuffer
	estimate   *brdfseed.MaterialEstimate
	stats      *brdfseed.ImageStats
	history    optimize.History
	optimizing bool
	cancel     context.CancelFunc
	// gen changes on Reset. Steps from an older run are dropped.
	gen uint64

	subMu  sync.Mutex
	subs   map[int]func(Event, State)
	nextID int
}

// New creates a session using opt for Optimize. A nil logger discards.
func New(opt optimize.Optimizer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	id := uuid.New()
	return &Session{
		id:        id,
		optimizer: opt,
		logger:    logger.With("session", id.String()),
		params:    brdfseed.DefaultMaterial(),
		subs:      make(map[int]func(Event, State)),
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

// Subscribe registers fn for every state change. Callbacks run on the
// goroutine that made the change, after the session lock is released.
func (s *Session) Subscribe(fn func(Event, State)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Session) publish(ev Event) {
	st := s.State()
	s.subMu.Lock()
	fns := make([]func(Event, State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(ev, st)
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		ID:         s.id,
		Params:     s.params,
		Losses:     append([]float64(nil), s.history.Losses...),
		History:    append([]brdfseed.MaterialEstimate(nil), s.history.Params...),
		Optimizing: s.optimizing,
	}
	if s.estimate != nil {
		e := *s.estimate
		st.Estimate = &e
	}
	if s.stats != nil {
		ss := *s.stats
		st.Stats = &ss
	}
	if m, ok := s.history.Metrics(); ok {
		st.Metrics = &m
	}
	return st
}

// Load estimates buf and makes the estimate the current parameters.
func (s *Session) Load(buf *brdfseed.ImageBuffer) error {
	stats, err := brdfseed.Analyze(buf)
	if err != nil {
		return err
	}
	est := brdfseed.EstimateFromStats(stats)

	s.mu.Lock()
	s.image = buf
	s.stats = &stats
	s.estimate = &est
	s.params = est
	s.mu.Unlock()

	s.logger.Debug("image analyzed",
		"valid", stats.ValidCount,
		"pixels", stats.PixelCount,
		"highlight_ratio", stats.HighlightRatio,
		"saturation", stats.Saturation,
		"stddev", stats.StdDev,
		"fallback", stats.Fallback)
	s.logger.Info("initial estimate", "params", est.String())
	s.publish(EventLoaded)
	return nil
}

func (s *Session) setParam(fn func(p *brdfseed.MaterialEstimate)) {
	s.mu.Lock()
	fn(&s.params)
	s.params = s.params.Clamped()
	s.mu.Unlock()
	s.publish(EventParams)
}

// SetAlbedo sets channel 0 (R), 1 (G) or 2 (B). Other channels are ignored.
func (s *Session) SetAlbedo(channel int, v float64) {
	s.setParam(func(p *brdfseed.MaterialEstimate) {
		switch channel {
		case 0:
			p.Albedo.R = v
		case 1:
			p.Albedo.G = v
		case 2:
			p.Albedo.B = v
		}
	})
}

func (s *Session) SetRoughness(v float64) {
	s.setParam(func(p *brdfseed.MaterialEstimate) { p.Roughness = v })
}

func (s *Session) SetMetallic(v float64) {
	s.setParam(func(p *brdfseed.MaterialEstimate) { p.Metallic = v })
}

// Reset restores the default parameters and clears all histories. The
// loaded image is kept. A running optimization is stopped and any step it
// still reports is discarded.
func (s *Session) Reset() {
	s.Stop()
	s.mu.Lock()
	s.gen++
	s.params = brdfseed.DefaultMaterial()
	s.history = optimize.History{}
	s.mu.Unlock()
	s.logger.Info("parameters reset")
	s.publish(EventReset)
}

// Optimize runs the optimizer from the current parameters and blocks until it
// finishes, Stop is called, or ctx ends. Steps are appended to the histories,
// which accumulate across runs until Reset. A stop is not an error.
func (s *Session) Optimize(ctx context.Context) (optimize.Result, error) {
	s.mu.Lock()
	if s.image == nil {
		s.mu.Unlock()
		return optimize.Result{}, ErrNoImage
	}
	if s.optimizing {
		s.mu.Unlock()
		return optimize.Result{}, ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	s.optimizing = true
	s.cancel = cancel
	start := s.params
	gen := s.gen
	s.mu.Unlock()
	defer cancel()

	s.logger.Info("optimization started", "start", start.String())
	s.publish(EventStarted)

	res, err := s.optimizer.Optimize(ctx, start, func(st optimize.Step) {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.params = st.Params
		s.history.Losses = append(s.history.Losses, st.Loss)
		s.history.Params = append(s.history.Params, st.Params)
		s.mu.Unlock()
		s.publish(EventStep)
	})

	s.mu.Lock()
	s.optimizing = false
	s.cancel = nil
	s.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		s.logger.Info("optimization stopped", "iterations", res.History.Len())
		err = nil
	} else if err != nil {
		s.logger.Error("optimization failed", "err", err)
	} else {
		m, _ := res.History.Metrics()
		s.logger.Info("optimization complete",
			"params", res.Final.String(),
			"loss", m.Loss,
			"psnr_db", m.PSNR,
			"ssim", m.SSIM)
	}
	s.publish(EventFinished)
	return res, err
}

// Stop cancels a running optimization. It is a no-op otherwise.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
