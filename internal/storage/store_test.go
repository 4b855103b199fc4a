package storage

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/thermloop/internal/sim"
)

func telemetry(i int) sim.Telemetry {
	return sim.Telemetry{
		Iteration:          i,
		Time:               float64(i) * 0.25,
		Timestep:           0.25,
		HeaterPower:        1000,
		PumpPressure:       50,
		Flows:              map[string]float64{"b": 0.2, "a": -0.2},
		Temperatures:       map[string][]float64{"pipe": {300 + float64(i), 301}},
		VolumeTemperatures: map[string]float64{"mix": 299.5},
		CoolerHTC:          map[string]float64{"ctah": 750},
	}
}

func TestSeriesSampling(t *testing.T) {
	s := NewSeries(2)
	for i := 1; i <= 6; i++ {
		s.OnIteration(telemetry(i))
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}

	cols, rows := s.Table()
	want := []string{"time", "dt", "heater_power", "pump_pressure", "flow:a", "flow:b", "T:pipe[0]", "T:pipe[1]", "T:mix", "htc:ctah"}
	if len(cols) != len(want) {
		t.Fatalf("columns = %v", cols)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("column %d = %s, want %s", i, cols[i], want[i])
		}
	}
	if rows[1][0] != 1.0 || rows[1][4] != -0.2 || rows[1][6] != 304 || rows[1][8] != 299.5 || rows[1][9] != 750 {
		t.Errorf("row = %v", rows[1])
	}

	rows[0][0] = -1
	if _, again := s.Table(); again[0][0] == -1 {
		t.Error("Table shares rows with the series")
	}
}

func TestSaveLoad(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "runs"))
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	series := NewSeries(1)
	for i := 1; i <= 4; i++ {
		series.OnIteration(telemetry(i))
	}
	result := &sim.Result{Iterations: 4, Time: 1, Wall: 2 * time.Second, Metrics: map[string]float64{"peak_temperature": 304}}
	info := RunInfo{
		Facility:     "single_pipe",
		TimestepMode: "fixed",
		Duration:     1,
		Setpoints: sim.Setpoints{
			Version:     3,
			HeaterPower: 1000,
			Blocked:     map[string]bool{"z": true, "y": false, "a": true},
		},
	}

	id, err := s.Save(info, result, series)
	if err != nil {
		t.Fatal(err)
	}

	meta, err := s.Load(id)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Facility != "single_pipe" || meta.Iterations != 4 || meta.WallSeconds != 2 {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.Metrics["peak_temperature"] != 304 {
		t.Errorf("metrics = %v", meta.Metrics)
	}
	if len(meta.Setpoints.Blocked) != 2 || meta.Setpoints.Blocked[0] != "a" || meta.Setpoints.Version != 3 {
		t.Errorf("setpoints = %+v", meta.Setpoints)
	}

	table, err := s.LoadSeries(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(table.Rows))
	}
	pipe := table.Column("T:pipe[0]")
	for i, v := range pipe {
		if math.Abs(v-float64(301+i)) > 1e-9 {
			t.Errorf("T:pipe[0][%d] = %v", i, v)
		}
	}
	if table.Column("missing") != nil {
		t.Error("unknown column returned values")
	}
}

func TestSaveAbortedRun(t *testing.T) {
	s := New(t.TempDir())
	id, err := s.Save(RunInfo{Facility: "ciet", Err: errors.New("iteration 3: property out of range")}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	meta, err := s.Load(id)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Error == "" {
		t.Error("error not recorded")
	}
	table, err := s.LoadSeries(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Rows) != 0 {
		t.Errorf("rows = %d", len(table.Rows))
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	runs, err := s.List()
	if err != nil || len(runs) != 0 {
		t.Fatalf("List on empty store = %v, %v", runs, err)
	}

	first, _ := s.Save(RunInfo{Facility: "ciet"}, &sim.Result{}, nil)
	second, _ := s.Save(RunInfo{Facility: "single_pipe"}, &sim.Result{}, nil)
	if err := os.MkdirAll(filepath.Join(dir, "not-a-run"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err = s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("List = %d runs, want 2", len(runs))
	}
	if runs[0].ID != first || runs[1].ID != second {
		t.Errorf("List order = %s, %s", runs[0].ID, runs[1].ID)
	}

	if _, err := New(filepath.Join(dir, "missing")).List(); err != nil {
		t.Errorf("List on missing dir = %v", err)
	}
}
