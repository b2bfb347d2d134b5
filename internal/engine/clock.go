package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Clock advances an Engine on a wall-clock interval (autoplay).
type Clock struct {
	Sim      *Engine
	Interval time.Duration // base interval per simulated day
	Speed    float64       // multiplier: 1.0 = one day per Interval, 0 = paused

	// OnDay is called after every committed day.
	OnDay func(Snapshot)

	days    atomic.Uint64
	running atomic.Bool
}

// NewClock creates a clock with a one-second interval at normal speed.
func NewClock(sim *Engine) *Clock {
	return &Clock{Sim: sim, Interval: time.Second, Speed: 1.0}
}

// Running reports whether Run is in progress.
func (c *Clock) Running() bool { return c.running.Load() }

// Days returns how many days this clock has advanced.
func (c *Clock) Days() uint64 { return c.days.Load() }

// Run advances one day per tick until ctx is done. Ticks with no active or
// an already finished puzzle are skipped.
func (c *Clock) Run(ctx context.Context) {
	c.running.Store(true)
	defer c.running.Store(false)
	slog.Info("autoplay started", "interval", c.Interval, "speed", c.Speed)

	for {
		wait := 100 * time.Millisecond // paused
		if c.Speed > 0 {
			wait = time.Duration(float64(c.Interval) / c.Speed)
		}
		select {
		case <-ctx.Done():
			slog.Info("autoplay stopped", "days", c.Days())
			return
		case <-time.After(wait):
		}
		if c.Speed <= 0 {
			continue
		}
		c.step(ctx)
	}
}

func (c *Clock) step(ctx context.Context) {
	snap, err := c.Sim.AdvanceDay(ctx)
	if err != nil {
		if !Idle(err) && ctx.Err() == nil {
			slog.Error("autoplay day failed", "error", err)
		}
		return
	}
	c.days.Add(1)
	if c.OnDay != nil {
		c.OnDay(snap)
	}
}
