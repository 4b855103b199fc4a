package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/thermloop/internal/sim"
)

const (
	profileWidth  = 40
	profileHeight = 10
	graphWidth    = 50
	graphHeight   = 6
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(58)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// DoneMsg carries the result of the simulation goroutine.
type DoneMsg struct{ Err error }

type Options struct {
	Facility  string
	Board     *sim.Board
	History   *sim.History
	Setpoints *sim.SetpointStore
	Branches  []string
	Coolers   []string

	// Duration is the simulated run length, for the progress bar. Zero hides
	// it.
	Duration   float64
	FrameRate  time.Duration
	HeaterStep float64 // W per key press
	PumpStep   float64 // Pa per key press

	// Done is closed or sent on when the simulation ends.
	Done <-chan error
}

// series is one plottable quantity of the telemetry history.
type series struct {
	name  string
	value func(sim.Telemetry) float64
}

// Model is the live dashboard.
type Model struct {
	opts     Options
	latest   sim.Telemetry
	have     bool
	branch   int
	cooler   int
	series   int
	showHelp bool
	finished bool
	err      error
	canvas   *Canvas
}

func NewModel(opts Options) Model {
	if opts.FrameRate <= 0 {
		opts.FrameRate = time.Second / 30
	}
	if opts.HeaterStep <= 0 {
		opts.HeaterStep = 100
	}
	if opts.PumpStep <= 0 {
		opts.PumpStep = 500
	}
	return Model{
		opts:   opts,
		canvas: NewCanvas(profileWidth, profileHeight),
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.FrameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	if m.opts.Done == nil {
		return m.tick()
	}
	done := m.opts.Done
	return tea.Batch(m.tick(), func() tea.Msg { return DoneMsg{Err: <-done} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.key(msg)
	case TickMsg:
		if m.opts.Board != nil {
			if t, ok := m.opts.Board.Latest(); ok {
				m.latest, m.have = t, true
			}
		}
		return m, m.tick()
	case DoneMsg:
		m.finished = true
		m.err = msg.Err
	}
	return m, nil
}

func (m Model) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sp := m.opts.Setpoints
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
	case "tab":
		if n := len(m.opts.Branches); n > 0 {
			m.branch = (m.branch + 1) % n
		}
	case "shift+tab":
		if n := len(m.opts.Branches); n > 0 {
			m.branch = (m.branch + n - 1) % n
		}
	case "x":
		if n := len(m.opts.Coolers); n > 0 {
			m.cooler = (m.cooler + 1) % n
		}
	case "s":
		m.series = (m.series + 1) % len(m.seriesList())
	case "S":
		n := len(m.seriesList())
		m.series = (m.series + n - 1) % n
	}
	if sp == nil {
		return m, nil
	}

	cur := sp.Snapshot()
	switch msg.String() {
	case "h":
		sp.SetHeaterPower(cur.HeaterPower + m.opts.HeaterStep)
	case "H":
		sp.SetHeaterPower(math.Max(0, cur.HeaterPower-m.opts.HeaterStep))
	case "p":
		sp.SetPumpPressure(cur.PumpPressure + m.opts.PumpStep)
	case "P":
		sp.SetPumpPressure(cur.PumpPressure - m.opts.PumpStep)
	case "b":
		if name, ok := m.selectedBranch(); ok {
			sp.SetBlocked(name, !cur.Blocked[name])
		}
	case "c", "C":
		name, ok := m.selectedCooler()
		if !ok {
			break
		}
		target, ok := cur.CoolerSetpoints[name]
		if !ok {
			break
		}
		if msg.String() == "c" {
			target++
		} else if target > 1 {
			target--
		}
		sp.SetCoolerSetpoint(name, target)
	case "f":
		sp.SetFastForward(!cur.FastForward)
	}
	return m, nil
}

func (m Model) selectedBranch() (string, bool) {
	if len(m.opts.Branches) == 0 {
		return "", false
	}
	return m.opts.Branches[m.branch], true
}

func (m Model) selectedCooler() (string, bool) {
	if len(m.opts.Coolers) == 0 {
		return "", false
	}
	return m.opts.Coolers[m.cooler], true
}

func (m Model) seriesList() []series {
	list := []series{
		{"max temperature [K]", sim.Telemetry.MaxTemperature},
		{"heater power [W]", func(t sim.Telemetry) float64 { return t.HeaterPower }},
		{"timestep [s]", func(t sim.Telemetry) float64 { return t.Timestep }},
	}
	if name, ok := m.selectedBranch(); ok {
		list = append(list, series{"flow " + name + " [kg/s]", func(t sim.Telemetry) float64 { return t.Flows[name] }})
	}
	if name, ok := m.selectedCooler(); ok {
		list = append(list, series{"htc " + name + " [W/m2K]", func(t sim.Telemetry) float64 { return t.CoolerHTC[name] }})
	}
	return list
}

// hottest picks the segment holding the hottest node.
func hottest(t sim.Telemetry) (string, []float64) {
	var name string
	peak := math.Inf(-1)
	for _, seg := range sortedKeys(t.Temperatures) {
		for _, v := range t.Temperatures[seg] {
			if v > peak {
				peak, name = v, seg
			}
		}
	}
	return name, t.Temperatures[name]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func bounds(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo < 1 {
		mid := (hi + lo) / 2
		lo, hi = mid-0.5, mid+0.5
	}
	return lo, hi
}

func (m Model) status() string {
	switch {
	case m.finished && m.err != nil:
		return StatusFailed.Render("FAILED: " + m.err.Error())
	case m.finished:
		return StatusRunning.Render("FINISHED")
	case !m.have:
		return Subtle.Render("WAITING")
	case m.latest.FastForward:
		return StatusFast.Render("FAST-FORWARD")
	}
	return StatusRunning.Render("RUNNING")
}

func row(label, value string) string {
	return MetricLabel.Render(label) + value + "\n"
}

func (m Model) View() string {
	t := m.latest
	var s strings.Builder
	s.WriteString(HeaderStyle.Render(strings.ToUpper(m.opts.Facility)) + "\n")
	s.WriteString(m.status() + "\n\n")

	s.WriteString(row("Time", MetricValue.Render(fmt.Sprintf("%.2fs", t.Time))))
	if m.opts.Duration > 0 {
		s.WriteString(row("Progress", ProgressBar(t.Time/m.opts.Duration, 20)))
	}
	s.WriteString(row("Timestep", MetricValue.Render(fmt.Sprintf("%.4fs", t.Timestep))))
	s.WriteString(row("Compute", MetricValue.Render(t.Compute.Round(time.Microsecond).String())))
	s.WriteString(row("Iteration", MetricValue.Render(fmt.Sprintf("%d", t.Iteration))))

	var cur sim.Setpoints
	if m.opts.Setpoints != nil {
		cur = m.opts.Setpoints.Snapshot()
	}
	s.WriteString("\nSETPOINTS\n")
	s.WriteString(row("Heater", MetricValue.Render(fmt.Sprintf("%.0f W", cur.HeaterPower))))
	s.WriteString(row("Pump", MetricValue.Render(fmt.Sprintf("%.0f Pa", cur.PumpPressure))))

	s.WriteString("\nFLOWS\n")
	for i, name := range m.opts.Branches {
		line := fmt.Sprintf("%-16s %+9.5f kg/s", name, t.Flows[name])
		if cur.Blocked[name] {
			line += " [blocked]"
		}
		if i == m.branch {
			s.WriteString(Selected.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + line + "\n")
		}
	}
	if name, ok := m.selectedBranch(); ok && m.opts.History != nil {
		flows := m.opts.History.Series(func(t sim.Telemetry) float64 { return t.Flows[name] })
		s.WriteString("  " + SparklineChart(flows, 30) + "\n")
	}

	if len(m.opts.Coolers) > 0 {
		s.WriteString("\nCOOLERS\n")
		for i, name := range m.opts.Coolers {
			line := fmt.Sprintf("%-10s set %6.2f K  htc %8.1f", name, cur.CoolerSetpoints[name], t.CoolerHTC[name])
			if i == m.cooler {
				s.WriteString(Selected.Render("> "+line) + "\n")
			} else {
				s.WriteString("  " + line + "\n")
			}
		}
	}

	if len(t.Temperatures) > 0 {
		s.WriteString("\nTEMPERATURES\n")
		all := make([]float64, 0, len(t.Temperatures))
		for _, temps := range t.Temperatures {
			all = append(all, temps...)
		}
		lo, hi := bounds(all)
		for _, name := range sortedKeys(t.Temperatures) {
			temps := t.Temperatures[name]
			if len(temps) == 0 {
				continue
			}
			mean := 0.0
			for _, v := range temps {
				mean += v
			}
			mean /= float64(len(temps))
			s.WriteString(fmt.Sprintf("  %-16s %s\n", name, TemperatureStyle(mean, lo, hi).Render(fmt.Sprintf("%7.2f K", mean))))
		}
	}

	s.WriteString(helpStyle.Render("─────────────────────\nh/H:Heater p/P:Pump tab:Branch b:Block\nx:Cooler c/C:Setpoint s:Series f:Fast ?:Help q:Quit"))
	statsView := statsStyle.Render(s.String())

	left := m.profileView(t) + "\n" + m.graphView()
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasStyle.Render(left), statsView)
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

func (m Model) profileView(t sim.Telemetry) string {
	name, temps := hottest(t)
	if name == "" {
		return Subtle.Render("no temperature profile yet")
	}
	lo, hi := bounds(temps)
	m.canvas.Profile(temps, lo, hi)
	caption := fmt.Sprintf("%s  %.2f K .. %.2f K", name, lo, hi)
	return m.canvas.String() + KeyHint.Render(caption)
}

func (m Model) graphView() string {
	list := m.seriesList()
	sel := list[m.series%len(list)]
	if m.opts.History == nil {
		return ""
	}
	data := m.opts.History.Series(sel.value)
	if len(data) < 2 {
		return KeyHint.Render(sel.name + ": collecting")
	}
	chart := asciigraph.Plot(data, asciigraph.Height(graphHeight), asciigraph.Width(graphWidth), asciigraph.Caption(sel.name))
	return graphStyle.Render(chart)
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  h / H    - Heater power up / down   ║
║  p / P    - Pump pressure up / down  ║
║  Tab      - Next branch              ║
║  b        - Block selected branch    ║
║  x        - Next cooler              ║
║  c / C    - Cooler setpoint +/- 1 K  ║
║  s / S    - Cycle plotted series     ║
║  f        - Toggle fast-forward      ║
║  ?        - Toggle this help         ║
║  q        - Quit                     ║
╚══════════════════════════════════════╝`
