package flow

import (
	"fmt"
	"strings"
)

type Arrangement int

const (
	// Parallel branches share both end nodes.
	Parallel Arrangement = iota
	// Series branches form one path and carry the same flow.
	Series
)

func (a Arrangement) String() string {
	if a == Series {
		return "series"
	}
	return "parallel"
}

func ParseArrangement(s string) (Arrangement, error) {
	switch strings.ToLower(s) {
	case "parallel", "":
		return Parallel, nil
	case "series":
		return Series, nil
	}
	return 0, fmt.Errorf("unknown arrangement %q", s)
}

// SuperCollection is a group of branches solved together. TotalFlow is the
// flow imposed through a parallel group, zero for a closed network. Series
// groups ignore it and solve for the flow the driving pressures sustain.
type SuperCollection struct {
	Name        string
	Arrangement Arrangement
	Branches    []*Branch
	TotalFlow   float64 // kg/s
}

func NewParallel(name string, totalFlow float64, branches ...*Branch) *SuperCollection {
	return &SuperCollection{Name: name, Arrangement: Parallel, Branches: branches, TotalFlow: totalFlow}
}

func NewSeries(name string, branches ...*Branch) *SuperCollection {
	return &SuperCollection{Name: name, Arrangement: Series, Branches: branches}
}

// Solution is the solved state of a collection. Flows follow the order of
// Branches. PressureDifference is the common node pressure difference of a
// parallel group.
type Solution struct {
	Flows              []float64
	PressureDifference float64
	Passes             int
}

func (c *SuperCollection) Branch(name string) *Branch {
	for _, b := range c.Branches {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Assign sets each branch flow from sol.
func (c *SuperCollection) Assign(sol Solution) error {
	if len(sol.Flows) != len(c.Branches) {
		return fmt.Errorf("group %s: %d flows for %d branches", c.Name, len(sol.Flows), len(c.Branches))
	}
	for i, b := range c.Branches {
		b.SetMassFlow(sol.Flows[i])
	}
	return nil
}

func (c *SuperCollection) Flows() []float64 {
	out := make([]float64, len(c.Branches))
	for i, b := range c.Branches {
		out[i] = b.MassFlow()
	}
	return out
}

// Clone deep-copies every branch.
func (c *SuperCollection) Clone() *SuperCollection {
	out := *c
	out.Branches = make([]*Branch, len(c.Branches))
	for i, b := range c.Branches {
		out.Branches[i] = b.Clone()
	}
	return &out
}
