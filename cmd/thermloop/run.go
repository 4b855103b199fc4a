package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/thermloop/internal/automation"
	"github.com/san-kum/thermloop/internal/config"
	"github.com/san-kum/thermloop/internal/dynamo"
	"github.com/san-kum/thermloop/internal/facility"
	"github.com/san-kum/thermloop/internal/integrators"
	"github.com/san-kum/thermloop/internal/metrics"
	"github.com/san-kum/thermloop/internal/mqtt"
	"github.com/san-kum/thermloop/internal/sim"
	"github.com/san-kum/thermloop/internal/storage"
	"github.com/san-kum/thermloop/internal/viz"
)

// session is one wired orchestrator with its observers.
type session struct {
	cfg     *config.Config
	desc    *facility.Description
	logger  *logrus.Logger
	orch    *sim.Orchestrator
	series  *storage.Series
	store   *storage.Store
	coolers []string
}

func newSession(cfg *config.Config, logger *logrus.Logger) (*session, error) {
	desc, err := loadFacility(cfg.Facility)
	if err != nil {
		return nil, err
	}
	net, err := facility.Build(desc, logger)
	if err != nil {
		return nil, err
	}

	sp := facility.InitialSetpoints(desc)
	cfg.ApplySetpoints(&sp)
	for name := range sp.Blocked {
		if b, _ := net.Branch(name); b == nil {
			return nil, fmt.Errorf("blocked branch %s not in facility %s", name, desc.Name)
		}
	}

	ts, err := cfg.NewTimestep()
	if err != nil {
		return nil, err
	}
	orch, err := sim.New(net, sim.NewSetpointStore(sp), ts, logger)
	if err != nil {
		return nil, err
	}
	for _, m := range metrics.Standard(tempLimit) {
		orch.AddMetric(m)
	}

	s := &session{
		cfg:    cfg,
		desc:   desc,
		logger: logger,
		orch:   orch,
		series: storage.NewSeries(cfg.Store.SampleEvery),
		store:  storage.New(cfg.Store.Dir),
	}
	orch.AddObserver(s.series)
	if cfg.Scenario != "" {
		sc, err := automation.LoadScenario(cfg.Scenario)
		if err != nil {
			return nil, err
		}
		orch.AddObserver(automation.NewPlayer(sc, orch.Setpoints(), logger))
	}
	for _, c := range desc.Coolers {
		s.coolers = append(s.coolers, c.Name)
	}
	return s, nil
}

// bridge connects the MQTT bridge when a broker is configured. The returned
// stop function is always safe to call.
func (s *session) bridge(ctx context.Context) (func(), error) {
	if s.cfg.MQTT.Broker == "" {
		return func() {}, nil
	}
	b := mqtt.NewBridge(s.cfg.MQTT, s.orch.Setpoints(), s.logger)
	if err := b.Connect(); err != nil {
		return nil, err
	}
	s.orch.AddObserver(b)
	go b.Run(ctx)
	return func() {
		s.logger.WithFields(logrus.Fields{
			"published": b.Published(),
			"dropped":   b.Dropped(),
		}).Info("telemetry bridge stopped")
		b.Disconnect()
	}, nil
}

func (s *session) save(result *sim.Result, runErr error) (string, error) {
	if err := s.store.Init(); err != nil {
		return "", err
	}
	return s.store.Save(storage.RunInfo{
		Facility:     s.desc.Name,
		Preset:       preset,
		TimestepMode: s.cfg.Timestep.Mode,
		Duration:     s.cfg.Duration,
		Setpoints:    s.orch.Setpoints().Snapshot(),
		Err:          runErr,
	}, result, s.series)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	s, err := newSession(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if cfg.Metrics.Addr != "" {
		rec := metrics.NewRecorder(s.desc.Name)
		s.orch.AddObserver(rec)
		go func() {
			if err := rec.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.WithError(err).Error("metrics endpoint failed")
			}
		}()
	}
	stopBridge, err := s.bridge(ctx)
	if err != nil {
		return err
	}
	defer stopBridge()

	fmt.Printf("running %s for %.0fs...\n", s.desc.Name, cfg.Duration)
	result, runErr := s.orch.Run(ctx, cfg.RunConfig())
	if result == nil {
		return runErr
	}

	runID, err := s.save(result, runErr)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", result.Wall.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("iterations: %d, simulated: %.2fs\n", result.Iterations, result.Time)
	printFinal(result.Final)
	fmt.Println("\nmetrics:")
	for _, name := range sortedKeys(result.Metrics) {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}

	if runErr != nil {
		var simErr *dynamo.SimulationError
		if errors.As(runErr, &simErr) {
			return fmt.Errorf("%s failed at t=%.3fs: %w", simErr.Component, simErr.Time, simErr.Wrapped)
		}
	}
	return runErr
}

func printFinal(t sim.Telemetry) {
	fmt.Printf("peak temperature: %.2f K\n", t.MaxTemperature())
	if len(t.Flows) == 0 {
		return
	}
	fmt.Println("\nflows:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range sortedKeys(t.Flows) {
		fmt.Fprintf(w, "  %s\t%+.6f kg/s\n", name, t.Flows[name])
	}
	w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// the terminal belongs to the live view, logs go to a file
	if err := os.MkdirAll(cfg.Store.Dir, 0755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.Store.Dir, "live.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger, err := newLogger(cfg.LogLevel, logFile)
	if err != nil {
		return err
	}

	s, err := newSession(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	stopBridge, err := s.bridge(ctx)
	if err != nil {
		return err
	}
	defer stopBridge()

	history := sim.NewHistory(cfg.History.Size)
	go history.Collect(ctx, s.orch.Board(), cfg.History.Interval)

	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		result, runErr := s.orch.Run(ctx, cfg.RunConfig())
		if result != nil {
			if _, err := s.save(result, runErr); err != nil {
				logger.WithError(err).Error("failed to store run")
			}
		}
		done <- runErr
	}()

	fps := frameRate
	if fps <= 0 {
		fps = 30
	}
	model := viz.NewModel(viz.Options{
		Facility:   s.desc.Name,
		Board:      s.orch.Board(),
		History:    history,
		Setpoints:  s.orch.Setpoints(),
		Branches:   s.orch.Network().BranchNames(),
		Coolers:    s.coolers,
		Duration:   cfg.Duration,
		FrameRate:  time.Second / time.Duration(fps),
		HeaterStep: 100,
		PumpStep:   500,
		Done:       done,
	})

	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	cancel()
	<-finished
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	desc, err := loadFacility(cfg.Facility)
	if err != nil {
		return err
	}
	if len(sweepHeaters) == 0 {
		return fmt.Errorf("no heater powers to sweep")
	}

	cases := make([]sim.Setpoints, len(sweepHeaters))
	for i, w := range sweepHeaters {
		sp := facility.InitialSetpoints(desc)
		cfg.ApplySetpoints(&sp)
		sp.HeaterPower = w
		cases[i] = sp
	}

	sweep := &sim.Sweep{
		Build: func() (*sim.Network, error) { return facility.Build(desc, logger) },
		Timestep: func() integrators.Timestep {
			ts, _ := cfg.NewTimestep() // validated by resolveConfig
			return ts
		},
		Logger: logger,
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("sweeping %s over %d heater powers...\n", desc.Name, len(cases))
	results, err := sweep.Run(ctx, cases, cfg.RunConfig())
	if err != nil {
		return err
	}

	branches := sortedKeys(results[0].Final.Flows)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "HEATER\tPEAK")
	for _, b := range branches {
		fmt.Fprintf(w, "\t%s", b)
	}
	fmt.Fprintln(w)
	for i, r := range results {
		fmt.Fprintf(w, "%.0f W\t%.2f K", sweepHeaters[i], r.Final.MaxTemperature())
		for _, b := range branches {
			fmt.Fprintf(w, "\t%+.5f", r.Final.Flows[b])
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
