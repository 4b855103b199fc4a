// Package control provides the feedback loops of the active coolers.
//
// A [Controller] turns a tracking error into a dimensionless command around
// zero. A [Cooler] maps that command onto a heat-transfer coefficient:
//
//   - [PID]: filtered PID with a pure measurement delay
//   - [Manual]: an operator-held command
//   - [None]: zero command, the cooler runs at its reference coefficient
//
// # Usage
//
//	pid, err := control.NewPID("ctah", control.PIDConfig{Gain: 90.75, IntegralTime: 1}, logger)
//	cooler, err := control.NewCooler("ctah", 600, 1, pid)
//	htc, err := cooler.Command(setpoint, outletTemperature, t)
//
// Every cooler owns its controller. Controllers are stateful and keyed on
// strictly increasing simulation time; they are not safe for concurrent use.
package control
