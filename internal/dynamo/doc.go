// Package dynamo provides the shared primitives of the thermal-hydraulics engine.
//
// It holds the error taxonomy every layer returns and a small helper for
// read-only parallel scans:
//
//   - [PropertyLookupError]: a material was evaluated outside its correlation range
//   - [LinkError]: an entity pair cannot carry the requested interaction
//   - [FlowSolveError]: a branch or branch group could not be solved for flow
//   - [ControllerError]: a feedback controller was misconfigured or misused
//   - [SimulationError]: any of the above, stamped with component and simulation time
//
// All of them unwrap to one of the package sentinels so callers can use
// [errors.Is] without caring about the concrete type:
//
//	if errors.Is(err, dynamo.ErrPropertyRange) {
//	    // reduce heater power and restart
//	}
//
// # Thread Safety
//
// Error values are immutable. [ParallelFor] runs fn concurrently on disjoint
// ranges; fn must not write shared state.
package dynamo
