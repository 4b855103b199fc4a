package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/thermloop/internal/sim"
)

const namespace = "thermloop"

// Recorder exports telemetry as prometheus metrics on its own registry. It
// is a sim.Observer.
type Recorder struct {
	registry *prometheus.Registry

	iterations  prometheus.Counter
	simTime     prometheus.Gauge
	timestep    prometheus.Gauge
	compute     prometheus.Histogram
	heater      prometheus.Gauge
	pump        prometheus.Gauge
	flow        *prometheus.GaugeVec
	pressure    *prometheus.GaugeVec
	temperature *prometheus.GaugeVec
	htc         *prometheus.GaugeVec
	setpoint    *prometheus.GaugeVec
}

func NewRecorder(facility string) *Recorder {
	labels := prometheus.Labels{"facility": facility}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "iterations_total", ConstLabels: labels,
			Help: "Completed simulation iterations.",
		}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "simulated_seconds", ConstLabels: labels,
			Help: "Simulated time after the last iteration.",
		}),
		timestep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "timestep_seconds", ConstLabels: labels,
			Help: "Timestep of the last iteration.",
		}),
		compute: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "iteration_compute_seconds", ConstLabels: labels,
			Help:    "Wall time spent computing an iteration.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		heater: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "heater_power_watts", ConstLabels: labels,
			Help: "Heater power setpoint.",
		}),
		pump: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pump_pressure_pascals", ConstLabels: labels,
			Help: "Pump pressure setpoint.",
		}),
		flow: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "branch_mass_flow_kg_per_second", ConstLabels: labels,
			Help: "Mass flow through each branch.",
		}, []string{"branch"}),
		pressure: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "group_pressure_difference_pascals", ConstLabels: labels,
			Help: "Pressure difference across each parallel group.",
		}, []string{"group"}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "temperature_kelvin", ConstLabels: labels,
			Help: "Mean and peak node temperature of each segment.",
		}, []string{"segment", "stat"}),
		htc: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cooler_htc_watts_per_square_meter_kelvin", ConstLabels: labels,
			Help: "Commanded cooler heat-transfer coefficient.",
		}, []string{"cooler"}),
		setpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cooler_setpoint_kelvin", ConstLabels: labels,
			Help: "Cooler outlet temperature setpoint.",
		}, []string{"cooler"}),
	}
	r.registry.MustRegister(
		r.iterations, r.simTime, r.timestep, r.compute, r.heater, r.pump,
		r.flow, r.pressure, r.temperature, r.htc, r.setpoint,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) OnIteration(t sim.Telemetry) {
	r.iterations.Inc()
	r.simTime.Set(t.Time)
	r.timestep.Set(t.Timestep)
	r.compute.Observe(t.Compute.Seconds())
	r.heater.Set(t.HeaterPower)
	r.pump.Set(t.PumpPressure)
	for b, f := range t.Flows {
		r.flow.WithLabelValues(b).Set(f)
	}
	for g, dp := range t.PressureDifferences {
		r.pressure.WithLabelValues(g).Set(dp)
	}
	for s, temps := range t.Temperatures {
		if len(temps) == 0 {
			continue
		}
		r.temperature.WithLabelValues(s, "mean").Set(floats.Sum(temps) / float64(len(temps)))
		r.temperature.WithLabelValues(s, "max").Set(floats.Max(temps))
	}
	for c, h := range t.CoolerHTC {
		r.htc.WithLabelValues(c).Set(h)
	}
	for c, sp := range t.CoolerSetpoints {
		r.setpoint.WithLabelValues(c).Set(sp)
	}
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx ends.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *logrus.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}
