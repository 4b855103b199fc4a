// Package facility turns a data description of a test loop into a
// [sim.Network].
//
// A [Description] names every segment, mixing node and solid, wires them
// with advective connections and thermal links, and groups branches into
// series or parallel flow groups. Descriptions load from YAML or come from
// the built-in [Presets]:
//
//	desc, err := facility.Load("loop.yaml")
//	if err != nil {
//	    return err
//	}
//	net, err := facility.Build(desc, logger)
//
// Build never modifies the description, so one description can build any
// number of independent networks.
package facility
