package flow

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/thermloop/internal/dynamo"
)

// Solver holds the root search settings. Zero fields take the defaults of
// NewSolver.
type Solver struct {
	Tolerance         float64 // kg/s, flow bracket width at convergence
	PressureTolerance float64 // Pa, node pressure bracket width at convergence
	ResidualTolerance float64 // relative to the residual at the bracket ends
	MaxIterations     int
	InitialBracket    float64 // kg/s, half width of the first flow bracket
	PressureBracket   float64 // Pa, half width of the first node pressure bracket
	MaxWidenings      int     // x10 widenings before a search gives up
	MaxDiodePasses    int
}

func NewSolver() *Solver {
	return &Solver{
		Tolerance:         1e-12,
		PressureTolerance: 1e-9,
		ResidualTolerance: 1e-6,
		MaxIterations:     200,
		InitialBracket:    1,
		PressureBracket:   1e4,
		MaxWidenings:      12,
		MaxDiodePasses:    16,
	}
}

func (s *Solver) settings() Solver {
	d := NewSolver()
	out := *s
	if out.Tolerance <= 0 {
		out.Tolerance = d.Tolerance
	}
	if out.PressureTolerance <= 0 {
		out.PressureTolerance = d.PressureTolerance
	}
	if out.ResidualTolerance <= 0 {
		out.ResidualTolerance = d.ResidualTolerance
	}
	if out.MaxIterations <= 0 {
		out.MaxIterations = d.MaxIterations
	}
	if out.InitialBracket <= 0 {
		out.InitialBracket = d.InitialBracket
	}
	if out.PressureBracket <= 0 {
		out.PressureBracket = d.PressureBracket
	}
	if out.MaxWidenings <= 0 {
		out.MaxWidenings = d.MaxWidenings
	}
	if out.MaxDiodePasses <= 0 {
		out.MaxDiodePasses = d.MaxDiodePasses
	}
	return out
}

// SolveBranch finds the flow at which the branch characteristic equals
// driving. A blocked branch returns zero, a diode never returns negative flow.
func (s *Solver) SolveBranch(b *Branch, driving float64) (float64, error) {
	if b.Blocked {
		return 0, nil
	}
	cfg := s.settings()
	f, err := cfg.invert(b, driving)
	if err != nil {
		return 0, err
	}
	if b.Diode && f < 0 {
		return 0, nil
	}
	return f, nil
}

// Solve finds the flow in every branch of c. Branch Driving pressures act in
// the positive flow direction.
func (s *Solver) Solve(c *SuperCollection) (Solution, error) {
	cfg := s.settings()
	if c.Arrangement == Series {
		return cfg.solveSeries(c)
	}
	return cfg.solveParallel(c)
}

func (s Solver) solveSeries(c *SuperCollection) (Solution, error) {
	sol := Solution{Flows: make([]float64, len(c.Branches)), Passes: 1}
	driving := make([]float64, len(c.Branches))
	for i, b := range c.Branches {
		if b.Blocked {
			return sol, nil
		}
		driving[i] = b.Driving
	}
	if len(c.Branches) == 0 {
		return sol, nil
	}
	total := floats.Sum(driving)

	residual := func(f float64) (float64, error) {
		parts := make([]float64, len(c.Branches))
		for i, b := range c.Branches {
			dp, err := b.PressureChange(f)
			if err != nil {
				return 0, err
			}
			parts[i] = dp
		}
		return floats.Sum(parts) - total, nil
	}

	f, attempts, err := s.root(residual, 0, s.InitialBracket, s.Tolerance)
	if err != nil {
		return Solution{}, &dynamo.FlowSolveError{Group: c.Name, Driving: total, Attempts: attempts, Wrapped: err}
	}
	for _, b := range c.Branches {
		if b.Diode && f < 0 {
			return sol, nil
		}
	}
	for i := range sol.Flows {
		sol.Flows[i] = f
	}
	return sol, nil
}

func (s Solver) solveParallel(c *SuperCollection) (Solution, error) {
	clamped := make([]bool, len(c.Branches))
	for pass := 1; pass <= s.MaxDiodePasses; pass++ {
		sol, open, err := s.parallelPass(c, clamped)
		if err != nil {
			return Solution{}, err
		}
		sol.Passes = pass

		changed := false
		for i, b := range c.Branches {
			if b.Diode && !clamped[i] && sol.Flows[i] < 0 {
				clamped[i] = true
				changed = true
			}
		}
		if !changed {
			for i, b := range c.Branches {
				if !clamped[i] || b.Blocked {
					continue
				}
				release := c.TotalFlow > 0
				if open > 0 {
					if release, err = s.diodeOpens(b, sol.PressureDifference); err != nil {
						return Solution{}, err
					}
				}
				if release {
					clamped[i] = false
					changed = true
				}
			}
		}
		if !changed {
			if open == 0 && c.TotalFlow != 0 && anyClamped(c, clamped) {
				return Solution{}, &dynamo.FlowSolveError{Group: c.Name, Driving: c.TotalFlow, Attempts: pass, Wrapped: dynamo.ErrNoOpenBranch}
			}
			return sol, nil
		}
	}
	return Solution{}, &dynamo.FlowSolveError{Group: c.Name, Driving: c.TotalFlow, Attempts: s.MaxDiodePasses, Wrapped: dynamo.ErrDiodeCycling}
}

func anyClamped(c *SuperCollection, clamped []bool) bool {
	for i, b := range c.Branches {
		if clamped[i] && !b.Blocked {
			return true
		}
	}
	return false
}

// parallelPass solves the branches that are neither blocked nor clamped.
func (s Solver) parallelPass(c *SuperCollection, clamped []bool) (Solution, int, error) {
	sol := Solution{Flows: make([]float64, len(c.Branches))}
	var open []int
	for i, b := range c.Branches {
		if !b.Blocked && !clamped[i] {
			open = append(open, i)
		}
	}

	switch len(open) {
	case 0:
		return sol, 0, nil
	case 1:
		b := c.Branches[open[0]]
		pc, err := b.PressureChange(c.TotalFlow)
		if err != nil {
			return sol, 1, err
		}
		sol.Flows[open[0]] = c.TotalFlow
		sol.PressureDifference = pc - b.Driving
		return sol, 1, nil
	}

	distribute := func(dp float64) error {
		for _, i := range open {
			f, err := s.invert(c.Branches[i], dp+c.Branches[i].Driving)
			if err != nil {
				return err
			}
			sol.Flows[i] = f
		}
		return nil
	}
	imbalance := func(dp float64) (float64, error) {
		if err := distribute(dp); err != nil {
			return 0, err
		}
		return floats.Sum(sol.Flows) - c.TotalFlow, nil
	}

	first := c.Branches[open[0]]
	center, err := first.PressureChange(0)
	if err != nil {
		return sol, len(open), err
	}
	center -= first.Driving

	dp, attempts, err := s.root(imbalance, center, s.PressureBracket, s.PressureTolerance)
	if err != nil {
		var fe *dynamo.FlowSolveError
		if errors.As(err, &fe) {
			fe.Group = c.Name
			return sol, len(open), fe
		}
		return sol, len(open), &dynamo.FlowSolveError{Group: c.Name, Driving: c.TotalFlow, Attempts: attempts, Wrapped: err}
	}
	if err := distribute(dp); err != nil {
		return sol, len(open), err
	}
	sol.PressureDifference = dp
	return sol, len(open), nil
}

// diodeOpens reports whether the node pressure difference dp would push
// positive flow through a clamped diode branch.
func (s Solver) diodeOpens(b *Branch, dp float64) (bool, error) {
	pc, err := b.PressureChange(0)
	if err != nil {
		return false, err
	}
	return dp > pc-b.Driving, nil
}

// invert finds the flow at which b needs exactly target.
func (s Solver) invert(b *Branch, target float64) (float64, error) {
	residual := func(f float64) (float64, error) {
		dp, err := b.PressureChange(f)
		return dp - target, err
	}
	f, attempts, err := s.root(residual, 0, s.InitialBracket, s.Tolerance)
	if err != nil {
		return 0, &dynamo.FlowSolveError{Branch: b.Name, Driving: target, Attempts: attempts, Wrapped: err}
	}
	return f, nil
}

// root searches outward from center for a zero of g. A search that cannot
// bracket or converge is retried once from a bracket ten times wider than
// the widest one tried.
func (s Solver) root(g func(float64) (float64, error), center, width, tol float64) (float64, int, error) {
	gc, err := g(center)
	if err != nil {
		return 0, 1, err
	}
	if gc == 0 {
		return center, 1, nil
	}

	var last error
	for attempt := 1; attempt <= 2; attempt++ {
		widenings := s.MaxWidenings
		if attempt == 2 {
			widenings = 0
		}
		var x float64
		x, width, last = s.search(g, center, width, widenings, tol)
		if last == nil {
			return x, attempt, nil
		}
		if !errors.Is(last, dynamo.ErrNoBracket) && !errors.Is(last, dynamo.ErrNotConverged) {
			return 0, attempt, last
		}
		width *= 10
	}
	return 0, 2, last
}

func (s Solver) search(g func(float64) (float64, error), center, width float64, widenings int, tol float64) (float64, float64, error) {
	lo, hi := center-width, center+width
	flo, err := g(lo)
	if err != nil {
		return 0, width, err
	}
	fhi, err := g(hi)
	if err != nil {
		return 0, width, err
	}

	for i := 0; !straddles(flo, fhi); i++ {
		if i >= widenings {
			return 0, width, dynamo.ErrNoBracket
		}
		width *= 10
		lo, hi = center-width, center+width
		if flo, err = g(lo); err != nil {
			return 0, width, err
		}
		if fhi, err = g(hi); err != nil {
			return 0, width, err
		}
	}

	x, fx, err := brent(g, lo, hi, flo, fhi, tol, s.MaxIterations)
	if err != nil {
		return 0, width, err
	}
	scale := math.Max(math.Abs(flo), math.Abs(fhi))
	if math.IsNaN(fx) || math.Abs(fx) > s.ResidualTolerance*(1+scale) {
		return 0, width, dynamo.ErrNotConverged
	}
	return x, width, nil
}

func straddles(a, b float64) bool {
	return (a <= 0 && b >= 0) || (a >= 0 && b <= 0)
}
