package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/thermloop/internal/config"
	"github.com/san-kum/thermloop/internal/facility"
)

var (
	dataDir       string
	configFile    string
	preset        string
	scenarioFile  string
	facilityName  string
	duration      float64
	dt            float64
	logLevel      string
	heaterPower   float64
	pumpPressure  float64
	fastForward   bool
	metricsAddr   string
	mqttBroker    string
	tempLimit     float64
	frameRate     int
	columns       []string
	analyzeColumn string
	sweepHeaters  []float64
	outFile       string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "thermloop",
		Short:        "thermal-hydraulic loop simulator",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".thermloop", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store the result",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	runCmd.Flags().StringVar(&mqttBroker, "mqtt-broker", "", "MQTT broker URL for setpoints and telemetry")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation with the live operator view",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().StringVar(&mqttBroker, "mqtt-broker", "", "MQTT broker URL for setpoints and telemetry")
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot stored run series",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&columns, "column", nil, "columns to plot (default: heater power and branch flows)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a stored series",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&analyzeColumn, "column", "", "column to analyze (default: first branch flow)")

	presetsCmd := &cobra.Command{
		Use:   "presets [facility]",
		Short: "list facilities, or the run presets of one facility",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	describeCmd := &cobra.Command{
		Use:   "describe [facility]",
		Short: "print a facility description as YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  describeFacility,
	}
	describeCmd.Flags().StringVarP(&outFile, "out", "o", "", "write to file instead of stdout")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run one fast-forward case per heater power",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&sweepHeaters, "heaters", []float64{1000, 2000, 4000}, "heater powers to run (W)")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, analyzeCmd, presetsCmd, describeCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use a run preset of the facility")
	cmd.Flags().StringVar(&facilityName, "facility", config.DefaultFacility, "facility preset name or description file")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "simulated duration (s)")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "fixed timestep (s); disables the stability controller")
	cmd.Flags().Float64Var(&heaterPower, "heater", 0, "heater power (W)")
	cmd.Flags().Float64Var(&pumpPressure, "pump", 0, "pump pressure (Pa)")
	cmd.Flags().BoolVar(&fastForward, "fast", false, "run as fast as possible")
	cmd.Flags().StringVar(&scenarioFile, "scenario", "", "scenario file of timed setpoint changes")
	cmd.Flags().Float64Var(&tempLimit, "limit", 433.15, "temperature limit for the stability metric (K)")
}

// resolveConfig layers preset, config file and changed flags, in that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(facilityName, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(facilityName))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("facility") || cfg.Facility == "" {
		cfg.Facility = facilityName
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("dt") {
		cfg.Timestep.Mode = "fixed"
		cfg.Timestep.Dt = dt
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("heater") {
		cfg.Setpoints.HeaterPower = &heaterPower
	}
	if flags.Changed("pump") {
		cfg.Setpoints.PumpPressure = &pumpPressure
	}
	if flags.Changed("fast") {
		cfg.FastForward = fastForward
	}
	if flags.Changed("scenario") {
		cfg.Scenario = scenarioFile
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}
	if flags.Changed("mqtt-broker") {
		cfg.MQTT.Broker = mqttBroker
	}
	if flags.Changed("data") {
		cfg.Store.Dir = dataDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(lvl)
	return logger, nil
}

// loadFacility reads name as a description file if one exists, otherwise as
// a preset name.
func loadFacility(name string) (*facility.Description, error) {
	if _, err := os.Stat(name); err == nil {
		return facility.Load(name)
	}
	return facility.Preset(name)
}
