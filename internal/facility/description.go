package facility

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/thermloop/internal/control"
)

const (
	DefaultFluid              = "dowtherm_a"
	DefaultInitialTemperature = 308.15 // K
	DefaultNodes              = 4
)

// Description is the YAML form of a facility.
type Description struct {
	Name               string        `yaml:"name"`
	Fluid              string        `yaml:"fluid,omitempty"`
	InitialTemperature float64       `yaml:"initial_temperature,omitempty"` // K
	Ambient            *AmbientDesc  `yaml:"ambient,omitempty"`
	Defaults           Defaults      `yaml:"defaults"`
	Segments           []SegmentDesc `yaml:"segments"`
	Nodes              []NodeDesc    `yaml:"nodes,omitempty"`
	Solids             []SolidDesc   `yaml:"solids,omitempty"`
	Connections        []Connection  `yaml:"connections"`
	Groups             []GroupDesc   `yaml:"groups"`
	Heater             *HeaterDesc   `yaml:"heater,omitempty"`
	Coolers            []CoolerDesc  `yaml:"coolers,omitempty"`
	ThermalLinks       []ThermalLink `yaml:"thermal_links,omitempty"`
}

type AmbientDesc struct {
	Temperature float64 `yaml:"temperature"` // K
}

// Defaults are the setpoints a run starts from.
type Defaults struct {
	HeaterPower  float64 `yaml:"heater_power"`  // W
	PumpPressure float64 `yaml:"pump_pressure"` // Pa
}

type SegmentDesc struct {
	Name               string  `yaml:"name"`
	Length             float64 `yaml:"length"`   // m
	Diameter           float64 `yaml:"diameter"` // hydraulic, m
	FlowArea           float64 `yaml:"flow_area,omitempty"`
	Incline            float64 `yaml:"incline,omitempty"` // degrees
	Roughness          float64 `yaml:"roughness,omitempty"`
	FormLoss           float64 `yaml:"form_loss,omitempty"`
	AmbientHTC         float64 `yaml:"ambient_htc,omitempty"`
	WallThickness      float64 `yaml:"wall_thickness,omitempty"`
	WallConductivity   float64 `yaml:"wall_conductivity,omitempty"`
	Nodes              int     `yaml:"nodes,omitempty"`
	Fluid              string  `yaml:"fluid,omitempty"`
	InitialTemperature float64 `yaml:"initial_temperature,omitempty"`
}

// NodeDesc is a mixing volume where branches meet.
type NodeDesc struct {
	Name               string  `yaml:"name"`
	Volume             float64 `yaml:"volume"` // m^3
	Fluid              string  `yaml:"fluid,omitempty"`
	InitialTemperature float64 `yaml:"initial_temperature,omitempty"`
}

type SolidDesc struct {
	Name               string  `yaml:"name"`
	Material           string  `yaml:"material"`
	Volume             float64 `yaml:"volume"` // m^3
	InitialTemperature float64 `yaml:"initial_temperature,omitempty"`
}

type Connection struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type GroupDesc struct {
	Name        string       `yaml:"name"`
	Arrangement string       `yaml:"arrangement"`
	TotalFlow   float64      `yaml:"total_flow,omitempty"` // kg/s, parallel groups only
	Branches    []BranchDesc `yaml:"branches"`
}

// BranchDesc lists the segments of a branch front to back. Losses are lumped
// k*m*|m| elements such as valves and flowmeters.
type BranchDesc struct {
	Name     string     `yaml:"name"`
	Segments []string   `yaml:"segments"`
	Losses   []LossDesc `yaml:"losses,omitempty"`
	Diode    bool       `yaml:"diode,omitempty"`
	Pump     bool       `yaml:"pump,omitempty"`
}

type LossDesc struct {
	Name string  `yaml:"name"`
	K    float64 `yaml:"k"`
}

type HeaterDesc struct {
	Segment string `yaml:"segment"`
}

type CoolerDesc struct {
	Name               string            `yaml:"name"`
	Segment            string            `yaml:"segment"`
	CoolantTemperature float64           `yaml:"coolant_temperature"` // K
	ReferenceHTC       float64           `yaml:"reference_htc"`
	MinHTC             float64           `yaml:"min_htc"`
	Setpoint           float64           `yaml:"setpoint"`          // K
	Control            string            `yaml:"control,omitempty"` // pid (default), manual or none
	Command            float64           `yaml:"command,omitempty"` // manual controller output u
	PID                control.PIDConfig `yaml:"pid"`
}

type ThermalLink struct {
	A                string  `yaml:"a"`
	B                string  `yaml:"b"`
	HTC              float64 `yaml:"htc"`
	WallConductivity float64 `yaml:"wall_conductivity,omitempty"`
}

func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Description, error) {
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("facility: %w", err)
	}
	if d.Name == "" {
		return nil, fmt.Errorf("facility: description has no name")
	}
	return &d, nil
}

func Save(path string, d *Description) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (d *Description) fluid(name string) string {
	switch {
	case name != "":
		return name
	case d.Fluid != "":
		return d.Fluid
	default:
		return DefaultFluid
	}
}

func (d *Description) initialTemperature(t float64) float64 {
	switch {
	case t > 0:
		return t
	case d.InitialTemperature > 0:
		return d.InitialTemperature
	default:
		return DefaultInitialTemperature
	}
}
