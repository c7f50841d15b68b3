package animation

import (
	"errors"
	"math"
	"time"
)

// SpeedMultipliers is the fixed set offered by the playback controls
var SpeedMultipliers = []float64{0.5, 1, 2, 4}

var (
	// ErrInvalidMultiplier is returned for non-positive or non-finite multipliers
	ErrInvalidMultiplier = errors.New("animation: speed multiplier must be positive")

	// ErrUnsupportedMultiplier is returned for multipliers outside SpeedMultipliers
	ErrUnsupportedMultiplier = errors.New("animation: unsupported speed multiplier")
)

// Clock turns frame timestamps into deltas.
//
// The baseline is dropped whenever playback stops, so the first frame after a
// resume yields a zero delta instead of a catch-up jump over the pause.
type Clock struct {
	last       time.Time
	hasLast    bool
	playing    bool
	multiplier float64
}

// NewClock creates a paused clock at 1x
func NewClock() *Clock {
	return &Clock{multiplier: 1}
}

// Play starts playback; the next Tick sets a fresh baseline
func (c *Clock) Play() {
	if c.playing {
		return
	}
	c.playing = true
	c.hasLast = false
}

// Pause stops playback and forgets the baseline
func (c *Clock) Pause() {
	c.playing = false
	c.hasLast = false
}

// Playing reports whether the clock is running
func (c *Clock) Playing() bool {
	return c.playing
}

// ResetBaseline forgets the last timestamp without changing playback
func (c *Clock) ResetBaseline() {
	c.hasLast = false
}

// Tick returns the elapsed seconds since the previous tick. It returns 0 while
// paused and on the first tick after (re)starting.
func (c *Clock) Tick(now time.Time) float64 {
	if !c.playing {
		return 0
	}
	if !c.hasLast {
		c.last = now
		c.hasLast = true
		return 0
	}

	dt := now.Sub(c.last).Seconds()
	c.last = now
	if dt < 0 {
		return 0
	}
	return dt
}

// SpeedMultiplier returns the current playback multiplier
func (c *Clock) SpeedMultiplier() float64 {
	return c.multiplier
}

// SetSpeedMultiplier sets any positive finite multiplier
func (c *Clock) SetSpeedMultiplier(m float64) error {
	if !(m > 0) || math.IsInf(m, 0) {
		return ErrInvalidMultiplier
	}
	c.multiplier = m
	return nil
}

// SupportedMultiplier reports whether m is one of SpeedMultipliers
func SupportedMultiplier(m float64) bool {
	for _, s := range SpeedMultipliers {
		if s == m {
			return true
		}
	}
	return false
}
