// Package engine provides the tick-based colony simulation loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// One tick is one sim-minute.
const (
	TicksPerSimHour = 60   // 60 ticks = 1 sim-hour
	TicksPerSimDay  = 1440 // 24 hours × 60
)

// Engine drives the simulation forward at a fixed interval scaled by speed.
type Engine struct {
	Interval  time.Duration // Base tick interval at speed 1
	SaveEvery uint64        // Ticks between OnSave calls (0 = never)

	// Callbacks, populated during setup.
	OnTick func(tick uint64, elapsed time.Duration) // Every tick
	OnDay  func(tick uint64)                        // Every 1440 ticks
	OnSave func(tick uint64)                        // Every SaveEvery ticks

	mu       sync.Mutex
	tick     uint64
	speed    float64
	running  bool
	lastStep time.Time
	stop     context.CancelFunc
}

// NewEngine creates an engine resuming after startTick.
func NewEngine(startTick uint64, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = time.Second
	}
	return &Engine{
		Interval: interval,
		tick:     startTick,
		speed:    1.0,
	}
}

// Tick returns the last tick stepped.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Speed returns the current multiplier: 1.0 = real-time, 0 = paused.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the multiplier. Negative values pause.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	e.speed = max(speed, 0)
	e.mu.Unlock()
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run steps the simulation until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.stop = cancel
	e.lastStep = time.Now()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.stop = nil
		e.mu.Unlock()
	}()

	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed())

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick())
			return nil
		case <-timer.C:
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused: check again shortly.
			timer.Reset(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.Step()

		target := time.Duration(float64(e.Interval) / speed)
		timer.Reset(max(target-time.Since(start), 0))
	}
}

// Stop halts a running loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop != nil {
		e.stop()
	}
}

// Step advances the simulation by one tick and fires the callbacks.
func (e *Engine) Step() {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	now := time.Now()
	elapsed := e.Interval
	if !e.lastStep.IsZero() {
		elapsed = now.Sub(e.lastStep)
	}
	e.lastStep = now
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(tick, elapsed)
	}
	if tick%TicksPerSimDay == 0 && e.OnDay != nil {
		e.OnDay(tick)
	}
	if e.SaveEvery > 0 && tick%e.SaveEvery == 0 && e.OnSave != nil {
		e.OnSave(tick)
	}
}

// SimTime returns a human-readable simulation time string from a tick number.
func SimTime(tick uint64) string {
	minutes := tick % 60
	hours := (tick / 60) % 24
	days := tick/TicksPerSimDay + 1
	return fmt.Sprintf("Day %d, %d:%02d", days, hours, minutes)
}
