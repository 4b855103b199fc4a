package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/thermloop/internal/dynamo"
	"github.com/san-kum/thermloop/internal/thermal"
)

// Timestep picks the step for the coming advance from the accumulated rates.
type Timestep interface {
	Next(cvs []*thermal.ControlVolume) (float64, error)
}

// Fixed always returns Step.
type Fixed struct {
	Step float64
}

func (f Fixed) Next([]*thermal.ControlVolume) (float64, error) {
	if f.Step <= 0 {
		return 0, fmt.Errorf("fixed timestep %v: %w", f.Step, dynamo.ErrParameterBounds)
	}
	return f.Step, nil
}

// StabilityController limits the step so no volume changes by more than
// MaxTemperatureStep and no volume is swept more than MaxCourant times.
type StabilityController struct {
	MaxTemperatureStep float64 // K
	MaxCourant         float64
	MinStep            float64 // s
	MaxStep            float64 // s

	// ParallelThreshold is the network size at which the scan is split over
	// goroutines. Zero never splits.
	ParallelThreshold int
}

func NewStabilityController(maxTemperatureStep, minStep, maxStep float64) *StabilityController {
	return &StabilityController{
		MaxTemperatureStep: maxTemperatureStep,
		MaxCourant:         1,
		MinStep:            minStep,
		MaxStep:            maxStep,
		ParallelThreshold:  4096,
	}
}

func (s *StabilityController) Validate() error {
	switch {
	case s.MaxTemperatureStep <= 0:
		return fmt.Errorf("max temperature step %v: %w", s.MaxTemperatureStep, dynamo.ErrParameterBounds)
	case s.MaxCourant < 0:
		return fmt.Errorf("max courant %v: %w", s.MaxCourant, dynamo.ErrParameterBounds)
	case s.MinStep <= 0 || s.MaxStep < s.MinStep:
		return fmt.Errorf("step range [%v, %v]: %w", s.MinStep, s.MaxStep, dynamo.ErrParameterBounds)
	}
	return nil
}

// MaxStableStep is the smallest per-volume limit over cvs, capped at MaxStep.
// A limit below MinStep is an ErrStepTooSmall.
func (s *StabilityController) MaxStableStep(cvs []*thermal.ControlVolume) (float64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}

	errs := make([]error, len(cvs))
	limit := func(i int) float64 {
		cv := cvs[i]
		dt, err := cv.MaxStableTimestep(s.MaxTemperatureStep)
		if err != nil {
			errs[i] = err
			return math.Inf(1)
		}
		if s.MaxCourant > 0 {
			dt = math.Min(dt, cv.CourantLimit(s.MaxCourant))
		}
		return dt
	}

	chunk := len(cvs) + 1
	if s.ParallelThreshold > 0 && len(cvs) >= s.ParallelThreshold {
		chunk = s.ParallelThreshold / 4
	}
	dt := dynamo.ParallelMin(len(cvs), chunk, limit)

	for _, err := range errs {
		if err != nil {
			return 0, err
		}
	}
	if dt < s.MinStep {
		return 0, fmt.Errorf("stable step %.3g s below minimum %.3g s: %w", dt, s.MinStep, dynamo.ErrStepTooSmall)
	}
	return math.Min(dt, s.MaxStep), nil
}

func (s *StabilityController) Next(cvs []*thermal.ControlVolume) (float64, error) {
	return s.MaxStableStep(cvs)
}
