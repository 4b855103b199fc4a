package viz

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/thermloop/internal/sim"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel() (Model, *sim.SetpointStore, *sim.Board) {
	store := sim.NewSetpointStore(sim.Setpoints{
		HeaterPower:     1000,
		PumpPressure:    0,
		CoolerSetpoints: map[string]float64{"ctah": 353.15},
	})
	board := sim.NewBoard()
	m := NewModel(Options{
		Facility:  "ciet",
		Board:     board,
		History:   sim.NewHistory(16),
		Setpoints: store,
		Branches:  []string{"heater_branch", "dhx_branch"},
		Coolers:   []string{"ctah"},
		FrameRate: time.Millisecond,
	})
	return m, store, board
}

func press(m Model, keys ...tea.KeyMsg) Model {
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(Model)
	}
	return m
}

func TestHeaterKeys(t *testing.T) {
	m, store, _ := newTestModel()

	press(m, runes("h"))
	if got := store.Snapshot().HeaterPower; got != 1100 {
		t.Fatalf("heater after h = %v, want 1100", got)
	}
	press(m, runes("H"), runes("H"))
	if got := store.Snapshot().HeaterPower; got != 900 {
		t.Fatalf("heater after HH = %v, want 900", got)
	}
	for i := 0; i < 20; i++ {
		press(m, runes("H"))
	}
	if got := store.Snapshot().HeaterPower; got != 0 {
		t.Fatalf("heater floor = %v, want 0", got)
	}
}

func TestPumpAndFastForward(t *testing.T) {
	m, store, _ := newTestModel()
	press(m, runes("p"), runes("p"), runes("f"))

	sp := store.Snapshot()
	if sp.PumpPressure != 1000 {
		t.Errorf("pump = %v, want 1000", sp.PumpPressure)
	}
	if !sp.FastForward {
		t.Error("fast-forward not set")
	}
}

func TestBlockSelectedBranch(t *testing.T) {
	m, store, _ := newTestModel()
	m = press(m, tea.KeyMsg{Type: tea.KeyTab}, runes("b"))

	sp := store.Snapshot()
	if !sp.Blocked["dhx_branch"] || sp.Blocked["heater_branch"] {
		t.Fatalf("blocked = %v, want only dhx_branch", sp.Blocked)
	}
	if !strings.Contains(m.View(), "[blocked]") {
		t.Error("view does not mark the blocked branch")
	}

	press(m, runes("b"))
	if store.Snapshot().Blocked["dhx_branch"] {
		t.Error("second b did not unblock")
	}
}

func TestCoolerSetpointKeys(t *testing.T) {
	m, store, _ := newTestModel()
	press(m, runes("c"), runes("c"), runes("C"))

	if got := store.Snapshot().CoolerSetpoints["ctah"]; math.Abs(got-354.15) > 1e-9 {
		t.Fatalf("ctah setpoint = %v, want 354.15", got)
	}
}

func TestSeriesCycles(t *testing.T) {
	m, _, _ := newTestModel()
	n := len(m.seriesList())

	m = press(m, runes("S"))
	if m.series != n-1 {
		t.Fatalf("S from 0 = %d, want %d", m.series, n-1)
	}
	m = press(m, runes("s"))
	if m.series != 0 {
		t.Fatalf("s wraps to %d, want 0", m.series)
	}
}

func TestViewFollowsBoard(t *testing.T) {
	m, _, board := newTestModel()

	if v := m.View(); !strings.Contains(v, "WAITING") || !strings.Contains(v, "CIET") {
		t.Fatalf("initial view missing header or status:\n%s", v)
	}

	tel := sim.Telemetry{
		Iteration:    3,
		Time:         0.3,
		Timestep:     0.1,
		HeaterPower:  1000,
		Flows:        map[string]float64{"heater_branch": -0.012, "dhx_branch": 0},
		Temperatures: map[string][]float64{"heater": {310, 312, 315, 318}, "pipe": {309, 309}},
		CoolerHTC:    map[string]float64{"ctah": 250},
	}
	board.Publish(tel)
	m.opts.History.Record(tel)

	next, cmd := m.Update(TickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick did not schedule the next frame")
	}
	m = next.(Model)

	v := m.View()
	for _, want := range []string{"RUNNING", "heater_branch", "-0.01200", "heater", "ctah"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestDoneShowsFailure(t *testing.T) {
	m, _, _ := newTestModel()
	next, _ := m.Update(DoneMsg{Err: errors.New("flow dead")})
	m = next.(Model)

	if v := m.View(); !strings.Contains(v, "FAILED: flow dead") {
		t.Fatalf("view does not report failure:\n%s", v)
	}
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel()
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not quit")
	}
}

func TestCanvasProfile(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Profile([]float64{0, 1}, 0, 1)

	// rising line from bottom-left to top-right
	if c.Grid[0][0]&rune(pixelMap[3][0]) == 0 {
		t.Error("bottom-left dot not set")
	}
	if c.Grid[0][1]&rune(pixelMap[0][1]) == 0 {
		t.Error("top-right dot not set")
	}

	c.Profile(nil, 0, 1)
	for _, r := range c.Grid[0] {
		if r != blank {
			t.Fatalf("empty profile left %q", r)
		}
	}
}

func TestCanvasClipsOutOfRange(t *testing.T) {
	c := NewCanvas(1, 1)
	c.Set(-1, 0)
	c.Set(5, 5)
	if c.Grid[0][0] != blank {
		t.Fatalf("out-of-range set wrote %q", c.Grid[0][0])
	}
}

func TestSparklineWidth(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		width  int
		want   int
	}{
		{"empty", nil, 5, 5},
		{"fits", []float64{1, 2, 3}, 10, 3},
		{"truncated", []float64{1, 2, 3, 4, 5, 6}, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SparklineChart(tt.values, tt.width)
			n := 0
			for _, r := range got {
				if strings.ContainsRune("▁▂▃▄▅▆▇█─", r) {
					n++
				}
			}
			if n != tt.want {
				t.Errorf("%d bars, want %d", n, tt.want)
			}
		})
	}
}
