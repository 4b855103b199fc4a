package sim

import (
	"time"

	"github.com/san-kum/thermloop/internal/dynamo"
)

// Telemetry is what one iteration publishes. The maps are built fresh every
// iteration and never modified after publishing.
type Telemetry struct {
	Iteration       int
	Time            float64       // simulated seconds after the step
	Timestep        float64       // s
	Compute         time.Duration // wall time spent in the iteration before pacing
	SetpointVersion uint64
	FastForward     bool

	HeaterPower  float64 // W
	PumpPressure float64 // Pa

	Flows               map[string]float64   // branch -> kg/s
	PressureDifferences map[string]float64   // parallel group -> Pa
	Temperatures        map[string][]float64 // segment -> node temperatures, K
	VolumeTemperatures  map[string]float64   // mixing and solid volumes, K
	CoolerHTC           map[string]float64   // cooler -> W/(m^2 K)
	CoolerOutputs       map[string]float64   // cooler -> controller output u
	CoolerSetpoints     map[string]float64   // cooler -> K
}

func (t Telemetry) Clone() Telemetry {
	c := t
	c.Flows = cloneMap(t.Flows)
	c.PressureDifferences = cloneMap(t.PressureDifferences)
	c.VolumeTemperatures = cloneMap(t.VolumeTemperatures)
	c.CoolerHTC = cloneMap(t.CoolerHTC)
	c.CoolerOutputs = cloneMap(t.CoolerOutputs)
	c.CoolerSetpoints = cloneMap(t.CoolerSetpoints)
	if t.Temperatures != nil {
		c.Temperatures = make(map[string][]float64, len(t.Temperatures))
		for k, v := range t.Temperatures {
			c.Temperatures[k] = append([]float64(nil), v...)
		}
	}
	return c
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MaxTemperature is the hottest segment node or volume.
func (t Telemetry) MaxTemperature() float64 {
	peak := 0.0
	for _, temps := range t.Temperatures {
		for _, v := range temps {
			if v > peak {
				peak = v
			}
		}
	}
	for _, v := range t.VolumeTemperatures {
		if v > peak {
			peak = v
		}
	}
	return peak
}

type Metric interface {
	Name() string
	Observe(t Telemetry)
	Value() float64
	Reset()
}

// Observer is notified after every published iteration on the simulation
// goroutine. It must return quickly.
type Observer interface {
	OnIteration(t Telemetry)
}

type ObserverFunc func(t Telemetry)

func (f ObserverFunc) OnIteration(t Telemetry) { f(t) }

type Config struct {
	// Duration is simulated seconds. Zero runs until MaxIterations or the
	// context ends.
	Duration      float64
	MaxIterations int
}

func (c Config) Validate() error {
	if c.Duration < 0 || c.MaxIterations < 0 {
		return dynamo.ErrParameterBounds
	}
	return nil
}

type Result struct {
	Iterations int
	Time       float64
	Wall       time.Duration
	Final      Telemetry
	Metrics    map[string]float64
}
