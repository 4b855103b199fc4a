// Package analysis looks for oscillations in recorded loop data.
//
// Natural-circulation loops can settle into a flow oscillation instead of a
// steady state. The stored series are sampled at the simulation's own,
// possibly varying, timestep, so they are first put on a uniform grid:
//
//	samples, interval, err := analysis.Resample(times, flows, 0)
//	spec, err := analysis.PowerSpectrum(samples, interval)
//	f, amp := spec.Dominant()
//	if amp > 1e-4 {
//	    // the branch oscillates with period 1/f
//	}
package analysis
