package control

import (
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/thermloop/internal/dynamo"
)

// Controller turns a tracking error into a dimensionless command.
type Controller interface {
	SetInputAndCompute(err, t float64) (float64, error)
	Reset()
}

type PIDConfig struct {
	Gain              float64 `yaml:"gain"`
	IntegralTime      float64 `yaml:"integral_time"`      // s
	DerivativeTime    float64 `yaml:"derivative_time"`    // s, zero disables derivative action
	FilterCoefficient float64 `yaml:"filter_coefficient"` // derivative filter time constant as a fraction of DerivativeTime
	Delay             float64 `yaml:"delay"`              // s, measurement transport lag
	OutputMin         float64 `yaml:"output_min"`         // equal bounds leave the output unbounded
	OutputMax         float64 `yaml:"output_max"`
}

// PID computes u = K*e + K/Ti*integral(e) + D, where D is the derivative
// K*Td*de/dt passed through a first-order filter of time constant
// FilterCoefficient*Td.
type PID struct {
	Name string

	cfg    PIDConfig
	logger *logrus.Logger
	delay  *delayLine

	integral   float64
	derivative float64
	prevErr    float64
	prevTime   float64
	started    bool
}

func NewPID(name string, cfg PIDConfig, logger *logrus.Logger) (*PID, error) {
	if err := cfg.validate(name); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &PID{
		Name:   name,
		cfg:    cfg,
		logger: logger,
		delay:  newDelayLine(cfg.Delay),
	}, nil
}

func (c PIDConfig) validate(name string) error {
	reason := ""
	switch {
	case !(c.Gain > 0):
		reason = "gain must be positive"
	case !(c.IntegralTime > 0):
		reason = "integral time must be positive"
	case c.DerivativeTime < 0 || math.IsNaN(c.DerivativeTime):
		reason = "derivative time must not be negative"
	case c.DerivativeTime > 0 && !(c.FilterCoefficient > 0):
		reason = "derivative filter coefficient must be positive"
	case c.Delay < 0 || math.IsNaN(c.Delay):
		reason = "measurement delay must not be negative"
	case c.OutputMax < c.OutputMin:
		reason = "output bounds are inverted"
	}
	if reason != "" {
		return &dynamo.ControllerError{Controller: name, Reason: reason}
	}
	return nil
}

func (p *PID) Config() PIDConfig { return p.cfg }

// SetInputAndCompute feeds the error measured at simulation time t and
// returns the controller output. t must increase strictly between calls.
func (p *PID) SetInputAndCompute(e, t float64) (float64, error) {
	if math.IsNaN(e) || math.IsNaN(t) {
		return 0, &dynamo.ControllerError{Controller: p.Name, Reason: "NaN input"}
	}
	if p.started && t <= p.prevTime {
		return 0, &dynamo.ControllerError{Controller: p.Name, Reason: "time did not increase"}
	}

	e = p.delay.push(t, e)
	k := p.cfg.Gain

	if !p.started {
		p.started = true
		p.prevErr = e
		p.prevTime = t
		return p.clamp(k*e, 0), nil
	}

	dt := t - p.prevTime
	step := e * dt
	p.integral += step

	if td := p.cfg.DerivativeTime; td > 0 {
		tf := p.cfg.FilterCoefficient * td
		p.derivative = tf/(tf+dt)*p.derivative + k*td/(tf+dt)*(e-p.prevErr)
	}

	u := k*e + k/p.cfg.IntegralTime*p.integral + p.derivative
	out := p.clamp(u, step)

	p.prevErr = e
	p.prevTime = t
	return out, nil
}

// clamp bounds u and backs out the latest integral step when the output saturates.
func (p *PID) clamp(u, step float64) float64 {
	if p.cfg.OutputMax == p.cfg.OutputMin {
		return u
	}
	bounded := math.Max(p.cfg.OutputMin, math.Min(u, p.cfg.OutputMax))
	if bounded != u {
		p.integral -= step
		p.logger.WithFields(logrus.Fields{
			"controller": p.Name,
			"output":     u,
			"bounded":    bounded,
		}).Debug("pid output saturated")
	}
	return bounded
}

func (p *PID) Reset() {
	p.integral = 0
	p.derivative = 0
	p.prevErr = 0
	p.prevTime = 0
	p.started = false
	p.delay = newDelayLine(p.cfg.Delay)
}
