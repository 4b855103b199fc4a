// Package viz renders a running loop in the terminal.
//
// [Model] is a Bubble Tea program that reads the orchestrator's telemetry
// board and history and writes operator input into the setpoint store. It
// never touches the network itself, so the simulation keeps its own pace
// whatever the terminal does.
//
//   - [Canvas]: braille pixel grid, used for the axial temperature profile
//   - [SparklineChart], [ProgressBar]: small inline gauges
//
// # Key Bindings
//
//	h / H     - heater power up / down
//	p / P     - pump pressure up / down
//	tab       - select next branch (shift+tab: previous)
//	b         - block or unblock the selected branch
//	x         - select next cooler
//	c / C     - selected cooler setpoint up / down 1 K
//	s / S     - cycle the plotted series
//	f         - toggle fast-forward
//	?         - help
//	q         - quit
package viz
