package strategy

import "time"

// sample is a single observed price at a point in time.
type sample struct {
	at    time.Time
	price float64
}

// Window is a bounded history of observed prices for one symbol.
// Once full, recording a new sample evicts the oldest one.
//
// Window is not safe for concurrent use.
type Window struct {
	samples []sample
	head    int // index of the oldest sample
	size    int
}

// NewWindow creates a price history window holding up to capacity samples.
// A capacity lower than 2 is raised to 2, since momentum needs two samples.
func NewWindow(capacity int) *Window {
	if capacity < 2 {
		capacity = 2
	}
	return &Window{samples: make([]sample, capacity)}
}

// Record appends a price observation, evicting the oldest sample when full.
// Observations are expected in chronological order.
func (w *Window) Record(at time.Time, price float64) {
	tail := (w.head + w.size) % len(w.samples)
	w.samples[tail] = sample{at: at, price: price}
	if w.size < len(w.samples) {
		w.size++
		return
	}
	w.head = (w.head + 1) % len(w.samples)
}

// Len returns the number of recorded samples.
func (w *Window) Len() int {
	return w.size
}

// Momentum returns the fractional price change of current against the oldest
// sample recorded within the lookback period ending at now.
//
// It returns 0 when fewer than two samples are recorded, when no sample falls
// within the lookback period, or when the reference price is 0.
func (w *Window) Momentum(now time.Time, current float64, lookback time.Duration) float64 {
	if w.size < 2 {
		return 0
	}

	cutoff := now.Add(-lookback)
	for i := range w.size {
		s := w.samples[(w.head+i)%len(w.samples)]
		if s.at.Before(cutoff) {
			continue
		}
		if s.price == 0 {
			return 0
		}
		return (current - s.price) / s.price
	}
	return 0
}
