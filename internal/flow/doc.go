// Package flow solves branch networks for their mass-flow distribution.
//
// A [Branch] is a series path of elements (discretized [thermal.FluidSegment]s
// or lumped [Quadratic] losses) between two network nodes. A
// [SuperCollection] arranges branches either in series, where every branch
// carries the same flow, or in parallel between a shared pair of nodes, where
// every open branch sees the same node pressure difference and the flows add
// up to an imposed total.
//
// Every characteristic is inverted numerically with Brent's method:
//
//	solver := flow.NewSolver()
//	sol, err := solver.Solve(group)
//	if err != nil {
//	    var fe *dynamo.FlowSolveError
//	    errors.As(err, &fe)
//	}
//	group.Assign(sol)
//
// Blocked branches carry exactly zero flow. Diode branches never carry
// negative flow; the solver iterates an active set of clamped diodes for a
// bounded number of passes and reports [dynamo.ErrDiodeCycling] if it does
// not settle.
//
// # Thread Safety
//
// [Solver.Solve] and [Solver.SolveBranch] only read the collection, so
// independent collections can be solved concurrently. Solving a collection
// that is being advanced elsewhere is a data race; solve a [SuperCollection.Clone].
package flow
