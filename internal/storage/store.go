package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/thermloop/internal/sim"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID            string             `json:"id"`
	Facility      string             `json:"facility"`
	Preset        string             `json:"preset,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
	TimestepMode  string             `json:"timestep_mode"`
	Duration      float64            `json:"duration"`
	Iterations    int                `json:"iterations"`
	SimulatedTime float64            `json:"simulated_time"`
	WallSeconds   float64            `json:"wall_seconds"`
	Error         string             `json:"error,omitempty"`
	Metrics       map[string]float64 `json:"metrics"`
	Setpoints     FinalSetpoints     `json:"setpoints"`
	Columns       []string           `json:"columns"`
}

// FinalSetpoints are the setpoints in force at the end of a run.
type FinalSetpoints struct {
	Version         uint64             `json:"version"`
	HeaterPower     float64            `json:"heater_power"`
	PumpPressure    float64            `json:"pump_pressure"`
	Blocked         []string           `json:"blocked,omitempty"`
	CoolerSetpoints map[string]float64 `json:"cooler_setpoints,omitempty"`
}

// RunInfo describes a run to Save.
type RunInfo struct {
	Facility     string
	Preset       string
	TimestepMode string
	Duration     float64
	Setpoints    sim.Setpoints
	Err          error
}

func finalSetpoints(sp sim.Setpoints) FinalSetpoints {
	f := FinalSetpoints{
		Version:         sp.Version,
		HeaterPower:     sp.HeaterPower,
		PumpPressure:    sp.PumpPressure,
		CoolerSetpoints: sp.CoolerSetpoints,
	}
	for b, closed := range sp.Blocked {
		if closed {
			f.Blocked = append(f.Blocked, b)
		}
	}
	sort.Strings(f.Blocked)
	return f
}

// Save writes metadata.json and series.csv for a finished or aborted run.
func (s *Store) Save(info RunInfo, result *sim.Result, series *Series) (string, error) {
	runID := fmt.Sprintf("%s_%d", info.Facility, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	columns, rows := series.Table()
	meta := RunMetadata{
		ID:           runID,
		Facility:     info.Facility,
		Preset:       info.Preset,
		Timestamp:    time.Now(),
		TimestepMode: info.TimestepMode,
		Duration:     info.Duration,
		Setpoints:    finalSetpoints(info.Setpoints),
		Columns:      columns,
	}
	if result != nil {
		meta.Iterations = result.Iterations
		meta.SimulatedTime = result.Time
		meta.WallSeconds = result.Wall.Seconds()
		meta.Metrics = result.Metrics
	}
	if info.Err != nil {
		meta.Error = info.Err.Error()
	}

	metaPath := filepath.Join(runDir, "metadata.json")
	metaFile, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvPath := filepath.Join(runDir, "series.csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if len(columns) > 0 {
		if err := w.Write(columns); err != nil {
			return "", err
		}
	}
	for _, r := range rows {
		row := make([]string, len(r))
		for i, val := range r {
			row[i] = strconv.FormatFloat(val, 'g', 10, 64)
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return runID, nil
}

// List returns every stored run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}

		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// Table is a loaded series.csv.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// Column returns the values of the named column, or nil.
func (t *Table) Column(name string) []float64 {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		if idx < len(r) {
			out = append(out, r[idx])
		}
	}
	return out
}

func (s *Store) LoadSeries(runID string) (*Table, error) {
	csvPath := filepath.Join(s.baseDir, runID, "series.csv")
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return &Table{}, nil
	}

	t := &Table{Columns: records[0], Rows: make([][]float64, 0, len(records)-1)}
	for i := 1; i < len(records); i++ {
		row := make([]float64, 0, len(records[i]))
		for _, field := range records[i] {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s row %d: %w", runID, i, err)
			}
			row = append(row, val)
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}
