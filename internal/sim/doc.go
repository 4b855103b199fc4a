// Package sim drives a thermal-hydraulic [Network] through time.
//
// Every iteration of the [Orchestrator] runs the same phases:
//
//  1. read one versioned [Setpoints] snapshot from the [SetpointStore]
//  2. solve each flow group on its own goroutine against a cloned snapshot
//  3. wait for every group
//  4. reset accumulators and apply advection, heater, cooler, lateral and
//     ambient links on the simulation goroutine
//  5. pick the timestep and advance every control volume
//  6. publish [Telemetry] to the [Board], metrics and observers
//  7. sleep for what is left of the timestep, or just yield in fast-forward
//
// Any failure aborts the run with a [dynamo.SimulationError] naming the
// component, iteration and simulated time.
//
// Operator input reaches the loop only through the [SetpointStore], which is
// safe for concurrent use. The [Board] and [History] may be read from any
// goroutine; everything else belongs to the simulation goroutine.
package sim
