package sim

import (
	"context"
	"sync"
	"time"
)

// Board holds the latest published telemetry.
type Board struct {
	mu     sync.RWMutex
	latest Telemetry
	ok     bool
}

func NewBoard() *Board {
	return &Board{}
}

func (b *Board) Publish(t Telemetry) {
	b.mu.Lock()
	b.latest = t
	b.ok = true
	b.mu.Unlock()
}

// Latest returns a copy of the last published telemetry.
func (b *Board) Latest() (Telemetry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.ok {
		return Telemetry{}, false
	}
	return b.latest.Clone(), true
}

// History keeps the most recent telemetry in a ring.
type History struct {
	mu   sync.RWMutex
	buf  []Telemetry
	next int
	full bool
	last int
}

func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{buf: make([]Telemetry, size), last: -1}
}

// Record appends t unless it is the iteration recorded last.
func (h *History) Record(t Telemetry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t.Iteration == h.last {
		return
	}
	h.last = t.Iteration
	h.buf[h.next] = t
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
}

// Collect samples the board every interval until ctx ends.
func (h *History) Collect(ctx context.Context, board *Board, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t, ok := board.Latest(); ok {
				h.Record(t)
			}
		}
	}
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.buf)
	}
	return h.next
}

// Snapshot returns the recorded telemetry, oldest first.
func (h *History) Snapshot() []Telemetry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.full {
		return append([]Telemetry(nil), h.buf[:h.next]...)
	}
	out := make([]Telemetry, 0, len(h.buf))
	out = append(out, h.buf[h.next:]...)
	return append(out, h.buf[:h.next]...)
}

// Series extracts one value per recorded iteration.
func (h *History) Series(value func(Telemetry) float64) []float64 {
	snap := h.Snapshot()
	out := make([]float64, len(snap))
	for i, t := range snap {
		out[i] = value(t)
	}
	return out
}

// OnIteration records t, so a History can observe an orchestrator directly.
func (h *History) OnIteration(t Telemetry) { h.Record(t) }
