// Package queueclient implements the client side of the live queue feed: a
// reconnecting subscription loop and a countdown that smooths the displayed
// wait between authoritative pushes.
package queueclient

import (
	"math"
	"sync"
	"time"
)

// Countdown holds a locally extrapolated "minutes remaining" value. An
// authoritative wait time from the server resets it; between pushes Tick
// decrements it once per second. It is a display smoothing layer only, never
// a source of truth.
type Countdown struct {
	mu      sync.Mutex
	minutes float64
	set     bool
}

func NewCountdown() *Countdown {
	return &Countdown{}
}

// Set resets the countdown to an authoritative wait time in minutes.
func (c *Countdown) Set(minutes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minutes = float64(minutes)
	c.set = true
}

// Tick advances the countdown by one second: minus 1/60 minute, floored at 0.
func (c *Countdown) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return
	}
	c.minutes -= 1.0 / 60.0
	if c.minutes < 0 {
		c.minutes = 0
	}
}

// Remaining returns the countdown rounded to one decimal place. The raw
// value keeps full precision so repeated ticks do not get absorbed by the
// rounding.
func (c *Countdown) Remaining() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return math.Round(c.minutes*10) / 10
}

// Display returns the integer minute value to show: the ceiling of the
// countdown.
func (c *Countdown) Display() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(math.Ceil(c.minutes))
}

// Known reports whether an authoritative value has ever been set.
func (c *Countdown) Known() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set
}

// FallbackEstimate derives a wait estimate when the queue position is known
// but no authoritative wait time has arrived yet:
// max(0, (position-1) × avgMinutes − minutes elapsed since the token was
// created).
func FallbackEstimate(position, avgMinutes int, createdAt, now time.Time) float64 {
	if position < 1 {
		return 0
	}
	remaining := float64((position-1)*avgMinutes) - now.Sub(createdAt).Minutes()
	if remaining < 0 {
		return 0
	}
	return remaining
}
