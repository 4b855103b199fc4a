package metrics

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/thermloop/internal/sim"
)

// ControlEffort is the mean over iterations of the summed absolute cooler
// controller outputs.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(t sim.Telemetry) {
	if len(t.CoolerOutputs) > 0 {
		c.sum += floats.Norm(values(t.CoolerOutputs), 1)
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

func values(m map[string]float64) []float64 {
	out := make([]float64, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
