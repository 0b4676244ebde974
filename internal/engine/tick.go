// Package engine provides the fixed-interval simulation loop.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultInterval is one frame at 40 fps.
const DefaultInterval = 25 * time.Millisecond

// job is a callback that fires on a wall-clock period measured in
// simulation time.
type job struct {
	name     string
	interval time.Duration
	fn       func(tick uint64, elapsed time.Duration)
	last     time.Duration
	fired    bool
}

// Engine drives the simulation forward.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Interval time.Duration // Target frame period

	// OnTick runs every frame with the absolute time since Run started.
	OnTick func(tick uint64, elapsed time.Duration)

	jobs    []*job
	running atomic.Bool
	tick    atomic.Uint64
}

// NewEngine creates an engine ticking at the given interval.
func NewEngine(interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{Interval: interval}
}

// Every registers fn to run on the first tick and then whenever at least
// interval has passed since it last ran. Jobs run after OnTick, in
// registration order.
func (e *Engine) Every(name string, interval time.Duration, fn func(tick uint64, elapsed time.Duration)) {
	e.jobs = append(e.jobs, &job{name: name, interval: interval, fn: fn})
}

// Running reports whether the loop is active. Safe for concurrent use.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// CurrentTick returns the tick counter. Safe for concurrent use.
func (e *Engine) CurrentTick() uint64 {
	return e.tick.Load()
}

// Run starts the simulation loop. Blocks until ctx is cancelled or Stop is
// called.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Tick, "interval", e.Interval)

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	start := time.Now()
	for e.running.Load() {
		e.step(time.Since(start))

		select {
		case <-ctx.Done():
			e.running.Store(false)
		case <-ticker.C:
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick)
}

// Stop halts the simulation loop after the current frame.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// step advances the simulation by one tick.
func (e *Engine) step(elapsed time.Duration) {
	e.Tick++
	e.tick.Store(e.Tick)

	if e.OnTick != nil {
		e.OnTick(e.Tick, elapsed)
	}

	for _, j := range e.jobs {
		if j.fired && elapsed-j.last < j.interval {
			continue
		}
		j.fired = true
		j.last = elapsed
		slog.Debug("periodic job", "job", j.name, "tick", e.Tick)
		j.fn(e.Tick, elapsed)
	}
}
