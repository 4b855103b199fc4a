package sim

import "sync"

// Setpoints are the operator inputs read once at the start of an iteration.
type Setpoints struct {
	Version         uint64
	HeaterPower     float64            // W
	PumpPressure    float64            // Pa
	Blocked         map[string]bool    // branch -> closed
	CoolerSetpoints map[string]float64 // cooler -> outlet temperature, K
	FastForward     bool
}

func (s Setpoints) clone() Setpoints {
	c := s
	c.Blocked = make(map[string]bool, len(s.Blocked))
	for k, v := range s.Blocked {
		c.Blocked[k] = v
	}
	c.CoolerSetpoints = cloneMap(s.CoolerSetpoints)
	if c.CoolerSetpoints == nil {
		c.CoolerSetpoints = map[string]float64{}
	}
	return c
}

// Patch is a partial update. Nil fields are left alone.
type Patch struct {
	HeaterPower     *float64           `json:"heater_power,omitempty"`
	PumpPressure    *float64           `json:"pump_pressure,omitempty"`
	Blocked         map[string]bool    `json:"blocked,omitempty"`
	CoolerSetpoints map[string]float64 `json:"cooler_setpoints,omitempty"`
	FastForward     *bool              `json:"fast_forward,omitempty"`
}

// SetpointStore is written by any operator input and read by the
// orchestrator through Snapshot. Every write bumps the version.
type SetpointStore struct {
	mu  sync.RWMutex
	cur Setpoints
}

func NewSetpointStore(initial Setpoints) *SetpointStore {
	initial = initial.clone()
	initial.Version = 1
	return &SetpointStore{cur: initial}
}

func (s *SetpointStore) Snapshot() Setpoints {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.clone()
}

// Update applies fn to the current setpoints under the write lock.
func (s *SetpointStore) Update(fn func(*Setpoints)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur.clone()
	fn(&next)
	next.Version = s.cur.Version + 1
	s.cur = next
	return next.Version
}

func (s *SetpointStore) Apply(p Patch) uint64 {
	return s.Update(func(sp *Setpoints) {
		if p.HeaterPower != nil {
			sp.HeaterPower = *p.HeaterPower
		}
		if p.PumpPressure != nil {
			sp.PumpPressure = *p.PumpPressure
		}
		for k, v := range p.Blocked {
			sp.Blocked[k] = v
		}
		for k, v := range p.CoolerSetpoints {
			sp.CoolerSetpoints[k] = v
		}
		if p.FastForward != nil {
			sp.FastForward = *p.FastForward
		}
	})
}

func (s *SetpointStore) SetHeaterPower(w float64) uint64 {
	return s.Update(func(sp *Setpoints) { sp.HeaterPower = w })
}

func (s *SetpointStore) SetPumpPressure(pa float64) uint64 {
	return s.Update(func(sp *Setpoints) { sp.PumpPressure = pa })
}

func (s *SetpointStore) SetBlocked(branch string, blocked bool) uint64 {
	return s.Update(func(sp *Setpoints) { sp.Blocked[branch] = blocked })
}

func (s *SetpointStore) SetCoolerSetpoint(cooler string, k float64) uint64 {
	return s.Update(func(sp *Setpoints) { sp.CoolerSetpoints[cooler] = k })
}

func (s *SetpointStore) SetFastForward(on bool) uint64 {
	return s.Update(func(sp *Setpoints) { sp.FastForward = on })
}
