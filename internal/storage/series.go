package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/san-kum/thermloop/internal/sim"
)

type columnKind int

const (
	flowColumn columnKind = iota
	nodeColumn
	volumeColumn
	htcColumn
)

type column struct {
	label string
	kind  columnKind
	key   string
	index int
}

func (c column) value(t sim.Telemetry) float64 {
	switch c.kind {
	case flowColumn:
		return t.Flows[c.key]
	case nodeColumn:
		if temps := t.Temperatures[c.key]; c.index < len(temps) {
			return temps[c.index]
		}
	case volumeColumn:
		return t.VolumeTemperatures[c.key]
	case htcColumn:
		return t.CoolerHTC[c.key]
	}
	return 0
}

var fixedColumns = []string{"time", "dt", "heater_power", "pump_pressure"}

// Series samples telemetry every n iterations into rows with a fixed set of
// columns, taken from the first sample. It is a sim.Observer.
type Series struct {
	mu      sync.Mutex
	every   int
	columns []column
	rows    [][]float64
}

func NewSeries(every int) *Series {
	if every < 1 {
		every = 1
	}
	return &Series{every: every}
}

func (s *Series) OnIteration(t sim.Telemetry) {
	if t.Iteration%s.every != 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.columns == nil {
		s.columns = columnsOf(t)
	}
	r := make([]float64, 0, len(fixedColumns)+len(s.columns))
	r = append(r, t.Time, t.Timestep, t.HeaterPower, t.PumpPressure)
	for _, c := range s.columns {
		r = append(r, c.value(t))
	}
	s.rows = append(s.rows, r)
}

// Table returns copies of the column labels and rows.
func (s *Series) Table() ([]string, [][]float64) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		return nil, nil
	}
	labels := append([]string(nil), fixedColumns...)
	for _, c := range s.columns {
		labels = append(labels, c.label)
	}
	rows := make([][]float64, len(s.rows))
	for i, r := range s.rows {
		rows[i] = append([]float64(nil), r...)
	}
	return labels, rows
}

func (s *Series) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func columnsOf(t sim.Telemetry) []column {
	var cols []column
	for _, b := range sortedKeys(t.Flows) {
		cols = append(cols, column{label: "flow:" + b, kind: flowColumn, key: b})
	}
	for _, seg := range sortedKeys(t.Temperatures) {
		for i := range t.Temperatures[seg] {
			cols = append(cols, column{label: fmt.Sprintf("T:%s[%d]", seg, i), kind: nodeColumn, key: seg, index: i})
		}
	}
	for _, v := range sortedKeys(t.VolumeTemperatures) {
		cols = append(cols, column{label: "T:" + v, kind: volumeColumn, key: v})
	}
	for _, c := range sortedKeys(t.CoolerHTC) {
		cols = append(cols, column{label: "htc:" + c, kind: htcColumn, key: c})
	}
	return cols
}
