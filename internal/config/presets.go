package config

import "sort"

func ptr(v float64) *float64 { return &v }

// Presets are named run scenarios keyed by facility. Each only sets what it
// changes from DefaultConfig.
var Presets = map[string]map[string]*Config{
	"ciet": {
		"natural": {
			Facility: "ciet", Duration: 1800,
			Setpoints: SetpointConfig{HeaterPower: ptr(2000), PumpPressure: ptr(0)},
		},
		"forced": {
			Facility: "ciet", Duration: 900,
			Setpoints: SetpointConfig{HeaterPower: ptr(6000), PumpPressure: ptr(4000)},
		},
		"dhx_only": {
			Facility: "ciet", Duration: 1800,
			Setpoints: SetpointConfig{HeaterPower: ptr(1500), PumpPressure: ptr(0), Blocked: []string{"ctah_branch"}},
		},
		"step_cooler": {
			Facility: "ciet", Duration: 600,
			Setpoints: SetpointConfig{
				HeaterPower:     ptr(4000),
				PumpPressure:    ptr(2000),
				CoolerSetpoints: map[string]float64{"ctah": 318.15},
			},
		},
	},
	"single_pipe": {
		"pumped": {
			Facility: "single_pipe", Duration: 120,
			Setpoints: SetpointConfig{HeaterPower: ptr(500), PumpPressure: ptr(100)},
		},
		"stagnant": {
			Facility: "single_pipe", Duration: 60,
			Setpoints: SetpointConfig{HeaterPower: ptr(200), PumpPressure: ptr(0)},
		},
	},
}

// GetPreset returns DefaultConfig with the preset applied, or nil.
func GetPreset(facility, preset string) *Config {
	facilityPresets, ok := Presets[facility]
	if !ok {
		return nil
	}
	p, ok := facilityPresets[preset]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Facility = p.Facility
	cfg.Duration = p.Duration
	cfg.Setpoints = p.Setpoints
	return cfg
}

func ListPresets(facility string) []string {
	facilityPresets, ok := Presets[facility]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(facilityPresets))
	for name := range facilityPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
