// Package mqtt connects a running simulation to an MQTT broker: setpoint
// patches arrive on one topic and telemetry leaves on another.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/thermloop/internal/config"
	"github.com/san-kum/thermloop/internal/sim"
)

const queueSize = 64

// TelemetryMessage is the JSON published on the telemetry topic.
type TelemetryMessage struct {
	Iteration       int                  `json:"iteration"`
	Time            float64              `json:"time"`
	Timestep        float64              `json:"dt"`
	SetpointVersion uint64               `json:"setpoint_version"`
	HeaterPower     float64              `json:"heater_power"`
	PumpPressure    float64              `json:"pump_pressure"`
	Flows           map[string]float64   `json:"flows"`
	Temperatures    map[string][]float64 `json:"temperatures"`
	CoolerHTC       map[string]float64   `json:"cooler_htc,omitempty"`
	CoolerSetpoints map[string]float64   `json:"cooler_setpoints,omitempty"`
}

// Bridge is a sim.Observer. OnIteration never blocks: when the publish queue
// is full the message is dropped and counted.
type Bridge struct {
	client mqtt.Client
	cfg    config.MQTTConfig
	store  *sim.SetpointStore
	logger *logrus.Logger

	queue     chan []byte
	dropped   atomic.Uint64
	published atomic.Uint64
}

func NewBridge(cfg config.MQTTConfig, store *sim.SetpointStore, logger *logrus.Logger) *Bridge {
	b := newBridge(cfg, store, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	opts.SetConnectionLostHandler(b.onConnectionLost)
	opts.SetOnConnectHandler(b.onConnect)

	b.client = mqtt.NewClient(opts)
	return b
}

func newBridge(cfg config.MQTTConfig, store *sim.SetpointStore, logger *logrus.Logger) *Bridge {
	if cfg.PublishEvery < 1 {
		cfg.PublishEvery = 1
	}
	return &Bridge{
		cfg:    cfg,
		store:  store,
		logger: logger,
		queue:  make(chan []byte, queueSize),
	}
}

func (b *Bridge) Connect() error {
	b.logger.WithField("broker", b.cfg.Broker).Info("connecting to MQTT broker")

	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	b.logger.Info("connected to MQTT broker")
	return nil
}

func (b *Bridge) Disconnect() {
	b.logger.Info("disconnecting from MQTT broker")
	b.client.Disconnect(250)
}

func (b *Bridge) onConnect(client mqtt.Client) {
	if b.cfg.SetpointTopic == "" {
		return
	}
	if token := client.Subscribe(b.cfg.SetpointTopic, b.cfg.QoS, b.handleSetpoints); token.Wait() && token.Error() != nil {
		b.logger.WithError(token.Error()).Error("failed to subscribe to setpoint topic")
		return
	}
	b.logger.WithField("topic", b.cfg.SetpointTopic).Info("subscribed to setpoint topic")
}

func (b *Bridge) onConnectionLost(_ mqtt.Client, err error) {
	b.logger.WithError(err).Error("MQTT connection lost")
}

func (b *Bridge) handleSetpoints(_ mqtt.Client, msg mqtt.Message) {
	b.logger.WithField("topic", msg.Topic()).Debugf("setpoint message: %s", msg.Payload())

	patch, err := DecodePatch(msg.Payload())
	if err != nil {
		b.logger.WithError(err).Warn("ignoring setpoint message")
		return
	}
	version := b.store.Apply(patch)
	b.logger.WithField("version", version).Info("setpoints updated over MQTT")
}

// DecodePatch parses and checks a setpoint patch.
func DecodePatch(payload []byte) (sim.Patch, error) {
	var p sim.Patch
	if err := json.Unmarshal(payload, &p); err != nil {
		return sim.Patch{}, fmt.Errorf("decode setpoint patch: %w", err)
	}
	if p.HeaterPower != nil && *p.HeaterPower < 0 {
		return sim.Patch{}, fmt.Errorf("heater power %v is negative", *p.HeaterPower)
	}
	for name, k := range p.CoolerSetpoints {
		if !(k > 0) {
			return sim.Patch{}, fmt.Errorf("cooler %s setpoint %v is not an absolute temperature", name, k)
		}
	}
	return p, nil
}

func (b *Bridge) OnIteration(t sim.Telemetry) {
	if t.Iteration%b.cfg.PublishEvery != 0 {
		return
	}
	payload, err := json.Marshal(TelemetryMessage{
		Iteration:       t.Iteration,
		Time:            t.Time,
		Timestep:        t.Timestep,
		SetpointVersion: t.SetpointVersion,
		HeaterPower:     t.HeaterPower,
		PumpPressure:    t.PumpPressure,
		Flows:           t.Flows,
		Temperatures:    t.Temperatures,
		CoolerHTC:       t.CoolerHTC,
		CoolerSetpoints: t.CoolerSetpoints,
	})
	if err != nil {
		b.logger.WithError(err).Warn("encode telemetry")
		return
	}
	select {
	case b.queue <- payload:
	default:
		b.dropped.Add(1)
	}
}

// Run publishes queued telemetry until ctx ends.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-b.queue:
			token := b.client.Publish(b.cfg.TelemetryTopic, b.cfg.QoS, false, payload)
			if !token.WaitTimeout(5 * time.Second) {
				b.logger.Warn("telemetry publish timed out")
				continue
			}
			if err := token.Error(); err != nil {
				b.logger.WithError(err).Warn("telemetry publish failed")
				continue
			}
			b.published.Add(1)
		}
	}
}

func (b *Bridge) Dropped() uint64   { return b.dropped.Load() }
func (b *Bridge) Published() uint64 { return b.published.Load() }
