package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/thermloop/internal/integrators"
	"github.com/san-kum/thermloop/internal/sim"
)

const (
	DefaultFacility           = "ciet"
	DefaultDuration           = 600.0
	DefaultDt                 = 0.1
	DefaultMaxTemperatureStep = 0.5
	DefaultMinDt              = 1e-4
	DefaultMaxDt              = 1.0
	DefaultHistorySize        = 600
	DefaultHistoryInterval    = 100 * time.Millisecond
	DefaultSampleEvery        = 10
	DefaultPublishEvery       = 10
)

type Config struct {
	// Facility is a preset name or the path of a YAML description.
	Facility      string         `yaml:"facility"`
	Duration      float64        `yaml:"duration"` // simulated seconds
	MaxIterations int            `yaml:"max_iterations"`
	FastForward   bool           `yaml:"fast_forward"`
	LogLevel      string         `yaml:"log_level"`
	Scenario      string         `yaml:"scenario,omitempty"` // scripted setpoint changes, YAML path
	Timestep      TimestepConfig `yaml:"timestep"`
	Setpoints     SetpointConfig `yaml:"setpoints"`
	History       HistoryConfig  `yaml:"history"`
	Store         StoreConfig    `yaml:"store"`
	Metrics       MetricsConfig  `yaml:"metrics"`
	MQTT          MQTTConfig     `yaml:"mqtt"`
}

// TimestepConfig selects a fixed step or the stability controller.
type TimestepConfig struct {
	Mode               string  `yaml:"mode"` // "auto" or "fixed"
	Dt                 float64 `yaml:"dt"`
	MaxTemperatureStep float64 `yaml:"max_temperature_step"` // K per step
	MaxCourant         float64 `yaml:"max_courant"`
	MinDt              float64 `yaml:"min_dt"`
	MaxDt              float64 `yaml:"max_dt"`
}

// SetpointConfig overrides the facility defaults. Unset fields keep them.
type SetpointConfig struct {
	HeaterPower     *float64           `yaml:"heater_power,omitempty"`
	PumpPressure    *float64           `yaml:"pump_pressure,omitempty"`
	Blocked         []string           `yaml:"blocked,omitempty"`
	CoolerSetpoints map[string]float64 `yaml:"cooler_setpoints,omitempty"`
}

type HistoryConfig struct {
	Size     int           `yaml:"size"`
	Interval time.Duration `yaml:"interval"`
}

type StoreConfig struct {
	Dir         string `yaml:"dir"`
	SampleEvery int    `yaml:"sample_every"` // iterations between stored samples
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the prometheus endpoint
}

type MQTTConfig struct {
	Broker         string `yaml:"broker"` // empty disables the bridge
	ClientID       string `yaml:"client_id"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	SetpointTopic  string `yaml:"setpoint_topic"`
	TelemetryTopic string `yaml:"telemetry_topic"`
	PublishEvery   int    `yaml:"publish_every"`
	QoS            byte   `yaml:"qos"`
}

func DefaultConfig() *Config {
	return &Config{
		Facility: DefaultFacility,
		Duration: DefaultDuration,
		LogLevel: "info",
		Timestep: TimestepConfig{
			Mode:               "auto",
			Dt:                 DefaultDt,
			MaxTemperatureStep: DefaultMaxTemperatureStep,
			MaxCourant:         1,
			MinDt:              DefaultMinDt,
			MaxDt:              DefaultMaxDt,
		},
		History: HistoryConfig{
			Size:     DefaultHistorySize,
			Interval: DefaultHistoryInterval,
		},
		Store: StoreConfig{
			Dir:         ".thermloop",
			SampleEvery: DefaultSampleEvery,
		},
		MQTT: MQTTConfig{
			ClientID:       "thermloop",
			SetpointTopic:  "thermloop/setpoints",
			TelemetryTopic: "thermloop/telemetry",
			PublishEvery:   DefaultPublishEvery,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch {
	case c.Facility == "":
		return fmt.Errorf("config: no facility")
	case c.Duration < 0 || c.MaxIterations < 0:
		return fmt.Errorf("config: negative duration or iteration limit")
	case c.History.Size < 1 || c.History.Interval <= 0:
		return fmt.Errorf("config: history needs a positive size and interval")
	case c.Store.SampleEvery < 1 || c.MQTT.PublishEvery < 1:
		return fmt.Errorf("config: sample and publish intervals must be at least one iteration")
	case c.MQTT.QoS > 2:
		return fmt.Errorf("config: mqtt qos %d", c.MQTT.QoS)
	}
	_, err := c.NewTimestep()
	return err
}

// NewTimestep builds the timestep policy. Each call returns an independent
// policy.
func (c *Config) NewTimestep() (integrators.Timestep, error) {
	t := c.Timestep
	switch t.Mode {
	case "fixed":
		if !(t.Dt > 0) {
			return nil, fmt.Errorf("config: fixed timestep needs dt > 0")
		}
		return integrators.Fixed{Step: t.Dt}, nil
	case "auto", "":
		sc := integrators.NewStabilityController(t.MaxTemperatureStep, t.MinDt, t.MaxDt)
		if t.MaxCourant > 0 {
			sc.MaxCourant = t.MaxCourant
		}
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return sc, nil
	}
	return nil, fmt.Errorf("config: unknown timestep mode %q", t.Mode)
}

// RunConfig is the stopping condition of a run.
func (c *Config) RunConfig() sim.Config {
	return sim.Config{Duration: c.Duration, MaxIterations: c.MaxIterations}
}

// ApplySetpoints writes the overrides and the fast-forward flag onto sp.
func (c *Config) ApplySetpoints(sp *sim.Setpoints) {
	if c.Setpoints.HeaterPower != nil {
		sp.HeaterPower = *c.Setpoints.HeaterPower
	}
	if c.Setpoints.PumpPressure != nil {
		sp.PumpPressure = *c.Setpoints.PumpPressure
	}
	if sp.Blocked == nil {
		sp.Blocked = map[string]bool{}
	}
	for _, b := range c.Setpoints.Blocked {
		sp.Blocked[b] = true
	}
	if sp.CoolerSetpoints == nil {
		sp.CoolerSetpoints = map[string]float64{}
	}
	for k, v := range c.Setpoints.CoolerSetpoints {
		sp.CoolerSetpoints[k] = v
	}
	sp.FastForward = c.FastForward
}
