// Package thermal models the lumped thermal state of a facility and the
// interactions that move heat between its parts.
//
//   - [ControlVolume]: one lumped node with temperature, pressure and material
//   - [FluidSegment]: an ordered chain of control volumes forming one pipe or duct
//   - [BoundaryCondition]: a fixed temperature or fixed heat rate that never advances
//   - [Entity]: the closed set of the three above
//   - [Interaction]: [Advection], [ConductionConvection] or [HeatAddition]
//
// # Two-phase stepping
//
// [Link] computes an instantaneous rate from current temperatures and flows
// and adds it to the accumulators of the participants. It never touches a
// temperature. Once every link for the step has been applied, each control
// volume is advanced exactly once:
//
//	for _, cv := range cvs {
//	    cv.ResetAccumulators()
//	}
//	thermal.Link(heater, hot, thermal.Advection{MassFlow: 0.18})
//	thermal.Link(pipe, ambient, thermal.ConductionConvection{HTC: 20})
//	for _, cv := range cvs {
//	    if err := cv.Advance(dt); err != nil {
//	        return err
//	    }
//	}
//
// Links may therefore be computed in any order.
//
// # Thread Safety
//
// Accumulators are plain fields. Links and Advance must run on one goroutine.
// [FluidSegment.PressureChange] only reads and may be called on a [FluidSegment.Clone]
// from any goroutine.
package thermal
