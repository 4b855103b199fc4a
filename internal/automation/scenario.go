// Package automation replays scripted operator actions against a running
// simulation.
package automation

import (
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/thermloop/internal/sim"
)

// Scenario is a timed list of setpoint changes.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Step changes the fields it sets once simulated time reaches At.
type Step struct {
	At              float64            `yaml:"at"` // simulated seconds
	HeaterPower     *float64           `yaml:"heater_power,omitempty"`
	PumpPressure    *float64           `yaml:"pump_pressure,omitempty"`
	Blocked         []string           `yaml:"blocked,omitempty"`
	Unblocked       []string           `yaml:"unblocked,omitempty"`
	CoolerSetpoints map[string]float64 `yaml:"cooler_setpoints,omitempty"`
}

func (s Step) patch() sim.Patch {
	p := sim.Patch{
		HeaterPower:     s.HeaterPower,
		PumpPressure:    s.PumpPressure,
		CoolerSetpoints: s.CoolerSetpoints,
	}
	if len(s.Blocked)+len(s.Unblocked) > 0 {
		p.Blocked = make(map[string]bool, len(s.Blocked)+len(s.Unblocked))
		for _, b := range s.Blocked {
			p.Blocked[b] = true
		}
		for _, b := range s.Unblocked {
			p.Blocked[b] = false
		}
	}
	return p
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %s: no steps", s.Name)
	}
	for i, st := range s.Steps {
		switch {
		case st.At < 0:
			return fmt.Errorf("scenario %s: step %d at negative time", s.Name, i+1)
		case i > 0 && st.At < s.Steps[i-1].At:
			return fmt.Errorf("scenario %s: step %d out of order", s.Name, i+1)
		case st.HeaterPower != nil && *st.HeaterPower < 0:
			return fmt.Errorf("scenario %s: step %d: negative heater power", s.Name, i+1)
		}
		for cooler, k := range st.CoolerSetpoints {
			if !(k > 0) {
				return fmt.Errorf("scenario %s: step %d: cooler %s setpoint %v", s.Name, i+1, cooler, k)
			}
		}
	}
	return nil
}

// Player applies scenario steps to a setpoint store as telemetry reports
// simulated time passing them. A step takes effect from the next iteration.
type Player struct {
	scenario *Scenario
	store    *sim.SetpointStore
	logger   *logrus.Logger
	next     int
}

func NewPlayer(scenario *Scenario, store *sim.SetpointStore, logger *logrus.Logger) *Player {
	steps := append([]Step(nil), scenario.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].At < steps[j].At })
	sc := *scenario
	sc.Steps = steps
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.FatalLevel)
	}
	return &Player{scenario: &sc, store: store, logger: logger}
}

func (p *Player) OnIteration(t sim.Telemetry) {
	for p.next < len(p.scenario.Steps) && t.Time >= p.scenario.Steps[p.next].At {
		step := p.scenario.Steps[p.next]
		version := p.store.Apply(step.patch())
		p.logger.WithFields(logrus.Fields{
			"scenario": p.scenario.Name,
			"step":     p.next + 1,
			"at":       step.At,
			"time":     t.Time,
			"version":  version,
		}).Info("scenario step applied")
		p.next++
	}
}

// Done reports whether every step has been applied.
func (p *Player) Done() bool { return p.next >= len(p.scenario.Steps) }
