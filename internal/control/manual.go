package control

import "sync"

// Manual holds a command set by an operator and ignores the error.
type Manual struct {
	mu sync.Mutex
	u  float64
}

func NewManual(u float64) *Manual {
	return &Manual{u: u}
}

func (m *Manual) SetCommand(u float64) {
	m.mu.Lock()
	m.u = u
	m.mu.Unlock()
}

func (m *Manual) SetInputAndCompute(_, _ float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.u, nil
}

func (m *Manual) Reset() {}
