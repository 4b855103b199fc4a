package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrPropertyRange indicates a temperature or pressure outside a material correlation.
	ErrPropertyRange = errors.New("dynamo: property lookup outside correlation range")

	// ErrIncompatibleLink indicates an entity pair that cannot carry an interaction.
	ErrIncompatibleLink = errors.New("dynamo: incompatible link")

	// ErrNoBracket indicates a root search could not bracket a sign change.
	ErrNoBracket = errors.New("dynamo: flow root not bracketed")

	// ErrNotConverged indicates a root search ended above tolerance.
	ErrNotConverged = errors.New("dynamo: flow solve did not converge")

	// ErrDiodeCycling indicates the diode active set never settled.
	ErrDiodeCycling = errors.New("dynamo: diode constraint iteration did not settle")

	// ErrNoOpenBranch indicates an imposed group flow with every branch closed.
	ErrNoOpenBranch = errors.New("dynamo: imposed flow has no open branch")

	// ErrStepTooSmall indicates the stable timestep fell below the minimum.
	ErrStepTooSmall = errors.New("dynamo: stable timestep below minimum")

	// ErrInvalidController indicates a controller configuration or call that cannot be honored.
	ErrInvalidController = errors.New("dynamo: invalid controller")

	// ErrInvalidState indicates NaN or Inf in a state value.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")
)

// PropertyLookupError reports a material evaluated outside its validity range.
type PropertyLookupError struct {
	Material    string
	Property    string
	Temperature float64
	Pressure    float64
	Min, Max    float64
}

func (e *PropertyLookupError) Error() string {
	return fmt.Sprintf("%s: %s at T=%.2fK p=%.0fPa outside [%.2f, %.2f]",
		e.Material, e.Property, e.Temperature, e.Pressure, e.Min, e.Max)
}

func (e *PropertyLookupError) Unwrap() error { return ErrPropertyRange }

// LinkError reports an entity pair that cannot carry an interaction.
type LinkError struct {
	A, B        string
	Interaction string
	Reason      string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link %s -> %s (%s): %s", e.A, e.B, e.Interaction, e.Reason)
}

func (e *LinkError) Unwrap() error { return ErrIncompatibleLink }

// FlowSolveError reports a failed flow solve for a branch or group.
type FlowSolveError struct {
	Group    string
	Branch   string
	Driving  float64
	Attempts int
	Wrapped  error
}

func (e *FlowSolveError) Error() string {
	target := e.Group
	if e.Branch != "" {
		if target != "" {
			target += "/"
		}
		target += e.Branch
	}
	return fmt.Sprintf("flow solve %s (driving %.3fPa, %d attempts): %v", target, e.Driving, e.Attempts, e.Wrapped)
}

func (e *FlowSolveError) Unwrap() error { return e.Wrapped }

// ControllerError reports an invalid controller configuration or call.
type ControllerError struct {
	Controller string
	Reason     string
}

func (e *ControllerError) Error() string {
	return fmt.Sprintf("controller %s: %s", e.Controller, e.Reason)
}

func (e *ControllerError) Unwrap() error { return ErrInvalidController }

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Component string
	Iteration int
	Time      float64
	Wrapped   error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("iteration %d (t=%.4fs) %s: %v", e.Iteration, e.Time, e.Component, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
