package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/thermloop/internal/integrators"
	"github.com/san-kum/thermloop/internal/sim"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Facility != "ciet" {
		t.Errorf("expected facility ciet, got %s", cfg.Facility)
	}
	if cfg.Duration <= 0 {
		t.Error("duration should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestNewTimestep(t *testing.T) {
	tests := []struct {
		name    string
		ts      TimestepConfig
		fixed   bool
		wantErr bool
	}{
		{"fixed", TimestepConfig{Mode: "fixed", Dt: 0.05}, true, false},
		{"fixed without dt", TimestepConfig{Mode: "fixed"}, false, true},
		{"auto", TimestepConfig{Mode: "auto", MaxTemperatureStep: 1, MinDt: 1e-3, MaxDt: 2}, false, false},
		{"auto defaults mode", TimestepConfig{MaxTemperatureStep: 1, MinDt: 1e-3, MaxDt: 2}, false, false},
		{"auto inverted bounds", TimestepConfig{Mode: "auto", MaxTemperatureStep: 1, MinDt: 2, MaxDt: 1}, false, true},
		{"unknown", TimestepConfig{Mode: "rk4"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Timestep = tt.ts
			ts, err := cfg.NewTimestep()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			_, isFixed := ts.(integrators.Fixed)
			if isFixed != tt.fixed {
				t.Errorf("got %T", ts)
			}
		})
	}
}

func TestNewTimestepIndependent(t *testing.T) {
	cfg := DefaultConfig()
	a, _ := cfg.NewTimestep()
	b, _ := cfg.NewTimestep()
	a.(*integrators.StabilityController).MaxStep = 42
	if b.(*integrators.StabilityController).MaxStep == 42 {
		t.Error("timestep policies share state")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"no facility", func(c *Config) { c.Facility = "" }},
		{"negative duration", func(c *Config) { c.Duration = -1 }},
		{"empty history", func(c *Config) { c.History.Size = 0 }},
		{"zero interval", func(c *Config) { c.History.Interval = 0 }},
		{"zero sample", func(c *Config) { c.Store.SampleEvery = 0 }},
		{"bad qos", func(c *Config) { c.MQTT.QoS = 3 }},
		{"bad timestep", func(c *Config) { c.Timestep.Mode = "implicit" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApplySetpoints(t *testing.T) {
	cfg := GetPreset("ciet", "dhx_only")
	cfg.FastForward = true
	sp := sim.Setpoints{HeaterPower: 100, PumpPressure: 50, CoolerSetpoints: map[string]float64{"ctah": 313}}
	cfg.ApplySetpoints(&sp)

	if sp.HeaterPower != 1500 || sp.PumpPressure != 0 {
		t.Errorf("got heater %v, pump %v", sp.HeaterPower, sp.PumpPressure)
	}
	if !sp.Blocked["ctah_branch"] || !sp.FastForward {
		t.Errorf("got %+v", sp)
	}
	if sp.CoolerSetpoints["ctah"] != 313 {
		t.Error("cooler setpoint without override changed")
	}

	keep := DefaultConfig()
	sp = sim.Setpoints{HeaterPower: 100}
	keep.ApplySetpoints(&sp)
	if sp.HeaterPower != 100 || sp.Blocked == nil {
		t.Errorf("unset overrides changed setpoints: %+v", sp)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("ciet", "forced")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if *cfg.Setpoints.PumpPressure != 4000 {
		t.Errorf("expected pump 4000, got %f", *cfg.Setpoints.PumpPressure)
	}
	if cfg.Timestep.Mode != "auto" {
		t.Error("preset lost the default timestep")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	cfg := GetPreset("ciet", "nonexistent")
	if cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}

	cfg = GetPreset("nonexistent", "natural")
	if cfg != nil {
		t.Error("expected nil for nonexistent facility")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("ciet")
	if len(presets) != 4 || presets[0] != "dhx_only" {
		t.Errorf("ListPresets(ciet) = %v", presets)
	}

	presets = ListPresets("nonexistent")
	if presets != nil {
		t.Error("expected nil for nonexistent facility")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := GetPreset("ciet", "step_cooler")
	cfg.History.Interval = 250 * time.Millisecond
	cfg.MQTT.Broker = "tcp://localhost:1883"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.History.Interval != 250*time.Millisecond {
		t.Errorf("interval = %v", loaded.History.Interval)
	}
	if loaded.Setpoints.CoolerSetpoints["ctah"] != 318.15 || *loaded.Setpoints.HeaterPower != 4000 {
		t.Errorf("setpoints = %+v", loaded.Setpoints)
	}
	if loaded.MQTT.Broker != cfg.MQTT.Broker {
		t.Errorf("broker = %q", loaded.MQTT.Broker)
	}
}
