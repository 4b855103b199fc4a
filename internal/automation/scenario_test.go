package automation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/thermloop/internal/sim"
)

const heaterStep = `
name: heater_step
description: power step then isolate the pumped branch
steps:
  - at: 0
    heater_power: 2000
  - at: 10
    heater_power: 4000
    cooler_setpoints:
      ctah: 320
  - at: 25
    blocked: [ctah_branch]
    pump_pressure: 0
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, heaterStep))
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "heater_step" || len(sc.Steps) != 3 {
		t.Fatalf("got %s with %d steps", sc.Name, len(sc.Steps))
	}
	if got := sc.Steps[1].CoolerSetpoints["ctah"]; got != 320 {
		t.Errorf("ctah setpoint = %v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "name: x\nsteps: []\n", "no steps"},
		{"negative time", "name: x\nsteps:\n  - at: -1\n", "negative time"},
		{"out of order", "name: x\nsteps:\n  - at: 5\n  - at: 2\n", "out of order"},
		{"negative heater", "name: x\nsteps:\n  - at: 1\n    heater_power: -10\n", "negative heater"},
		{"zero setpoint", "name: x\nsteps:\n  - at: 1\n    cooler_setpoints: {ctah: 0}\n", "setpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestPlayerAppliesStepsInTime(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, heaterStep))
	if err != nil {
		t.Fatal(err)
	}
	store := sim.NewSetpointStore(sim.Setpoints{
		HeaterPower:     500,
		PumpPressure:    3000,
		CoolerSetpoints: map[string]float64{"ctah": 330},
	})
	p := NewPlayer(sc, store, nil)

	p.OnIteration(sim.Telemetry{Time: 0.1})
	if got := store.Snapshot().HeaterPower; got != 2000 {
		t.Fatalf("after first step heater = %v, want 2000", got)
	}

	p.OnIteration(sim.Telemetry{Time: 9.9})
	if got := store.Snapshot().HeaterPower; got != 2000 {
		t.Fatalf("second step applied early: heater = %v", got)
	}

	// one late report applies everything that is due
	p.OnIteration(sim.Telemetry{Time: 30})
	sp := store.Snapshot()
	if sp.HeaterPower != 4000 || sp.CoolerSetpoints["ctah"] != 320 {
		t.Errorf("heater %v ctah %v", sp.HeaterPower, sp.CoolerSetpoints["ctah"])
	}
	if !sp.Blocked["ctah_branch"] || sp.PumpPressure != 0 {
		t.Errorf("blocked %v pump %v", sp.Blocked, sp.PumpPressure)
	}
	if !p.Done() {
		t.Error("player not done")
	}

	version := sp.Version
	p.OnIteration(sim.Telemetry{Time: 40})
	if store.Snapshot().Version != version {
		t.Error("finished player kept writing")
	}
}

func TestUnblock(t *testing.T) {
	sc := &Scenario{Name: "reopen", Steps: []Step{{At: 1, Unblocked: []string{"dhx_branch"}}}}
	store := sim.NewSetpointStore(sim.Setpoints{Blocked: map[string]bool{"dhx_branch": true}})

	NewPlayer(sc, store, nil).OnIteration(sim.Telemetry{Time: 1})
	if store.Snapshot().Blocked["dhx_branch"] {
		t.Fatal("dhx_branch still blocked")
	}
}
