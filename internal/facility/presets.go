package facility

import (
	"fmt"
	"sort"

	"github.com/san-kum/thermloop/internal/control"
)

const pipe = 0.0279 // m, primary loop tubing

// Presets are the built-in facilities. Build does not modify them.
var Presets = map[string]*Description{
	"ciet": {
		Name:               "ciet",
		Fluid:              "dowtherm_a",
		InitialTemperature: 308.15,
		Ambient:            &AmbientDesc{Temperature: 298.15},
		Defaults:           Defaults{HeaterPower: 2000, PumpPressure: 0},
		Segments: []SegmentDesc{
			{Name: "heater_top", Length: 0.5, Diameter: pipe, FormLoss: 1.5, AmbientHTC: 5, Nodes: 4},
			{Name: "heater", Length: 1.6, Diameter: pipe, Incline: -90, FormLoss: 3.8, WallThickness: 0.003, WallConductivity: 16.2, Nodes: 8},
			{Name: "heater_bottom", Length: 0.5, Diameter: pipe, FormLoss: 1.5, AmbientHTC: 5, Nodes: 4},
			{Name: "dhx_inlet", Length: 0.6, Diameter: pipe, FormLoss: 2, AmbientHTC: 5, Nodes: 4},
			{Name: "dhx", Length: 1.6, Diameter: pipe, Incline: -90, FormLoss: 2.5, WallThickness: 0.002, WallConductivity: 16.2, Nodes: 8},
			{Name: "ctah", Length: 1.6, Diameter: pipe, Incline: -90, FormLoss: 3, Nodes: 8},
			{Name: "ctah_pump", Length: 0.8, Diameter: pipe, FormLoss: 4, AmbientHTC: 5, Nodes: 4},
			{Name: "dracs_hot", Length: 1.6, Diameter: pipe, Incline: 90, FormLoss: 2, Nodes: 8},
			{Name: "dracs_top", Length: 0.6, Diameter: pipe, FormLoss: 1, AmbientHTC: 5, Nodes: 4},
			{Name: "tchx", Length: 1.6, Diameter: pipe, Incline: -90, FormLoss: 3, Nodes: 8},
			{Name: "dracs_bottom", Length: 0.6, Diameter: pipe, FormLoss: 1, AmbientHTC: 5, Nodes: 4},
		},
		Nodes: []NodeDesc{
			{Name: "top", Volume: 5e-4},
			{Name: "bottom", Volume: 5e-4},
		},
		Solids: []SolidDesc{
			{Name: "heater_shell", Material: "steel_304", Volume: 3e-4},
		},
		Connections: []Connection{
			{From: "top", To: "heater_top"},
			{From: "heater_top", To: "heater"},
			{From: "heater", To: "heater_bottom"},
			{From: "heater_bottom", To: "bottom"},
			{From: "top", To: "dhx_inlet"},
			{From: "dhx_inlet", To: "dhx"},
			{From: "dhx", To: "bottom"},
			{From: "top", To: "ctah"},
			{From: "ctah", To: "ctah_pump"},
			{From: "ctah_pump", To: "bottom"},
			{From: "dracs_hot", To: "dracs_top"},
			{From: "dracs_top", To: "tchx"},
			{From: "tchx", To: "dracs_bottom"},
			{From: "dracs_bottom", To: "dracs_hot"},
		},
		// Positive flow runs from the top node down to the bottom node, so
		// the heater branch normally carries negative flow.
		Groups: []GroupDesc{
			{
				Name:        "primary",
				Arrangement: "parallel",
				Branches: []BranchDesc{
					{Name: "heater_branch", Segments: []string{"heater_top", "heater", "heater_bottom"}},
					{Name: "dhx_branch", Segments: []string{"dhx_inlet", "dhx"}, Losses: []LossDesc{{Name: "check_valve", K: 500}}, Diode: true},
					{Name: "ctah_branch", Segments: []string{"ctah", "ctah_pump"}, Losses: []LossDesc{{Name: "flowmeter", K: 1000}}, Pump: true},
				},
			},
			{
				Name:        "dracs",
				Arrangement: "series",
				Branches: []BranchDesc{
					{Name: "dracs_riser", Segments: []string{"dracs_hot", "dracs_top"}},
					{Name: "dracs_downcomer", Segments: []string{"tchx", "dracs_bottom"}},
				},
			},
		},
		Heater: &HeaterDesc{Segment: "heater"},
		Coolers: []CoolerDesc{
			{
				Name:               "ctah",
				Segment:            "ctah",
				CoolantTemperature: 298.15,
				ReferenceHTC:       1500,
				MinHTC:             10,
				Setpoint:           313.15,
				PID:                control.PIDConfig{Gain: 2, IntegralTime: 30, OutputMin: -1, OutputMax: 10},
			},
			{
				Name:               "tchx",
				Segment:            "tchx",
				CoolantTemperature: 298.15,
				ReferenceHTC:       800,
				MinHTC:             10,
				Setpoint:           308.15,
				PID:                control.PIDConfig{Gain: 1.5, IntegralTime: 60, DerivativeTime: 5, FilterCoefficient: 0.1, Delay: 2, OutputMin: -1, OutputMax: 10},
			},
		},
		ThermalLinks: []ThermalLink{
			{A: "dhx", B: "dracs_hot", HTC: 800, WallConductivity: 16.2},
			{A: "heater", B: "heater_shell", HTC: 1000, WallConductivity: 16.2},
		},
	},
	"single_pipe": {
		Name:               "single_pipe",
		Fluid:              "dowtherm_a",
		InitialTemperature: 308.15,
		Ambient:            &AmbientDesc{Temperature: 298.15},
		Defaults:           Defaults{HeaterPower: 500, PumpPressure: 100},
		Segments: []SegmentDesc{
			{Name: "pipe", Length: 3, Diameter: pipe, FormLoss: 2.75, AmbientHTC: 10, Nodes: 10},
		},
		Connections: []Connection{{From: "pipe", To: "pipe"}},
		Groups: []GroupDesc{
			{Name: "loop", Arrangement: "series", Branches: []BranchDesc{{Name: "pipe", Segments: []string{"pipe"}, Pump: true}}},
		},
		Heater: &HeaterDesc{Segment: "pipe"},
	},
}

func Preset(name string) (*Description, error) {
	d, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown facility preset: %s (available: %v)", name, PresetNames())
	}
	return d, nil
}

func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
