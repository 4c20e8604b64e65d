// File: internal/services/chat/flight.go
package chat

import "sync/atomic"

// Flight tracks the single in-progress remote exchange. While one is active,
// new sends are disabled; the stop flag is cooperative and only observed at
// fragment boundaries of a streaming exchange.
type Flight struct {
	generating    atomic.Bool
	stopRequested atomic.Bool
}

func NewFlight() *Flight { return &Flight{} }

// begin claims the flight. It reports false when another exchange is already
// in progress.
func (f *Flight) begin() bool {
	if !f.generating.CompareAndSwap(false, true) {
		return false
	}
	f.stopRequested.Store(false)
	return true
}

// end releases the flight. Called on every terminal path.
func (f *Flight) end() {
	f.generating.Store(false)
	f.stopRequested.Store(false)
}

// Active reports whether an exchange is in progress.
func (f *Flight) Active() bool { return f.generating.Load() }

// RequestStop asks the current streaming exchange to exit at the next
// fragment boundary. A no-op when nothing is generating.
func (f *Flight) RequestStop() {
	if f.generating.Load() {
		f.stopRequested.Store(true)
	}
}

func (f *Flight) stopped() bool { return f.stopRequested.Load() }
