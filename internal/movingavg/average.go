// Package movingavg tracks the arithmetic mean of a fixed-size sliding window.
package movingavg

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidSize is returned by New when the window capacity is not positive.
var ErrInvalidSize = errors.New("movingavg: size must be positive")

// Average is a ring buffer with a running sum. It is not safe for concurrent
// use; the owning listener serializes access.
type Average struct {
	buf  []float64
	head int // index of the oldest sample
	n    int
	sum  float64
}

// New creates a window holding at most size samples.
func New(size int) (*Average, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	return &Average{buf: make([]float64, size)}, nil
}

// Push appends sample, evicting the oldest one when full, and returns the new mean.
func (a *Average) Push(sample float64) float64 {
	if a.n < len(a.buf) {
		a.buf[(a.head+a.n)%len(a.buf)] = sample
		a.n++
	} else {
		a.sum -= a.buf[a.head]
		a.buf[a.head] = sample
		a.head = (a.head + 1) % len(a.buf)
	}
	a.sum += sample
	return a.Current()
}

// Current returns the mean of the retained samples, or 0 when empty.
func (a *Average) Current() float64 {
	if a.n == 0 {
		return 0
	}
	return a.sum / float64(a.n)
}

// Values returns a copy of the window, oldest first.
func (a *Average) Values() []float64 {
	out := make([]float64, a.n)
	for i := 0; i < a.n; i++ {
		out[i] = a.buf[(a.head+i)%len(a.buf)]
	}
	return out
}

// Len is the number of retained samples.
func (a *Average) Len() int { return a.n }

// Size is the window capacity.
func (a *Average) Size() int { return len(a.buf) }

// Reset drops every sample.
func (a *Average) Reset() {
	a.head, a.n, a.sum = 0, 0, 0
}

// WindowSize converts a cooldown period into a sample count for the given
// sampling interval: round(cooldown/interval), never below 1.
func WindowSize(cooldown, interval time.Duration) int {
	if interval <= 0 || cooldown <= 0 {
		return 1
	}
	n := int(math.Round(float64(cooldown) / float64(interval)))
	if n < 1 {
		return 1
	}
	return n
}
