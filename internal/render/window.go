package render

import (
	"sync"

	"github.com/you/eaglechat/internal/core"
)

// DefaultCapacity is how many rendered rows the overlay keeps. Matches the
// on-screen history of the overlay page.
const DefaultCapacity = 20

// Window is the bounded FIFO of rendered rows. Pushing beyond capacity
// evicts the oldest row; the window never exceeds its capacity.
type Window struct {
	mu   sync.Mutex
	cap  int
	rows []core.RenderedMessage
}

// NewWindow builds a window. A non-positive capacity falls back to
// DefaultCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{cap: capacity}
}

// Push appends a row, evicting the oldest when the window is full.
func (w *Window) Push(row core.RenderedMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, row)
	if len(w.rows) > w.cap {
		// shift rather than reslice so the backing array does not pin
		// evicted rows
		copy(w.rows, w.rows[len(w.rows)-w.cap:])
		w.rows = w.rows[:w.cap]
	}
}

// Recent returns the rows oldest first as an independent snapshot.
func (w *Window) Recent() []core.RenderedMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]core.RenderedMessage, len(w.rows))
	copy(out, w.rows)
	return out
}

// Len reports the current row count.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows)
}

// Clear drops all rows. Used when the session switches channels.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = nil
}

// Capacity reports the configured bound.
func (w *Window) Capacity() int {
	return w.cap
}
