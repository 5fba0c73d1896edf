// Package bridge mirrors the controller onto an MQTT broker.
//
// State is published retained under <prefix>/..., and commands are accepted on
// <prefix>/mode/set and <prefix>/temperature/set.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"touch_thermostat/internal/logger"
	"touch_thermostat/internal/models"
	"touch_thermostat/internal/service"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultPrefix   = "touch"
	publishTimeout  = 5 * time.Second
	commandTimeout  = 30 * time.Second
	disconnectQuiet = 250 // ms
)

var ErrConnect = errors.New("mqtt connect failed")

// Client is the part of mqtt.Client the bridge uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Controller is the part of the thermostat the bridge drives.
type Controller interface {
	CurrentState() models.ThermostatState
	OnChange(fn func(models.ThermostatState))
	SetTargetTemperature(ctx context.Context, p service.TemperatureParams) error
	SetHvacMode(ctx context.Context, p service.ModeParams) error
}

type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

type Bridge struct {
	client     Client
	thermostat Controller
	prefix     string
	qos        byte
	log        *logger.Logger

	// latest holds the newest state not yet published; older ones are dropped.
	mu      sync.Mutex
	latest  *models.ThermostatState
	running bool
	wake    chan struct{}
	stop    chan struct{}
	started sync.Once
	stopped sync.Once
	done    chan struct{}
}

// New builds a bridge over an already configured client. Call Start to begin publishing.
func New(client Client, thermostat Controller, cfg Config, log *logger.Logger) *Bridge {
	if log == nil {
		log = logger.Nop()
	}
	prefix := strings.TrimSuffix(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Bridge{
		client:     client,
		thermostat: thermostat,
		prefix:     prefix,
		qos:        cfg.QoS,
		log:        log.Named("mqtt"),
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Connect dials the broker, subscribes on every (re)connect and starts publishing.
// The returned disconnect func must be called on shutdown.
func Connect(ctx context.Context, cfg Config, thermostat Controller, log *logger.Logger) (*Bridge, func(), error) {
	b := New(nil, thermostat, cfg, log)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		b.log.Infow("connected", "broker", cfg.Broker)
		b.Subscribe()
		b.enqueue(thermostat.CurrentState())
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.log.Warnw("connection_lost", "err", err)
	})

	client := mqtt.NewClient(opts)
	b.client = client

	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w: %v", ErrConnect, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	b.Start()
	return b, func() {
		b.Close()
		client.Disconnect(disconnectQuiet)
	}, nil
}

func (b *Bridge) topic(parts ...string) string {
	return b.prefix + "/" + strings.Join(parts, "/")
}

// Start registers for state changes and starts the publisher.
// Listeners only queue the state, so a stalled broker never blocks the controller.
func (b *Bridge) Start() {
	b.started.Do(func() {
		b.mu.Lock()
		b.running = true
		b.mu.Unlock()
		go b.run()
		b.thermostat.OnChange(b.enqueue)
	})
}

// Close stops the publisher. A state still queued is dropped.
func (b *Bridge) Close() {
	b.stopped.Do(func() { close(b.stop) })

	b.mu.Lock()
	running := b.running
	b.mu.Unlock()
	if running {
		<-b.done
	}
}

func (b *Bridge) enqueue(st models.ThermostatState) {
	b.mu.Lock()
	b.latest = &st
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) run() {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case <-b.wake:
		}

		b.mu.Lock()
		st := b.latest
		b.latest = nil
		b.mu.Unlock()
		if st != nil {
			b.publishState(*st)
		}
	}
}

// Subscribe registers the command topics. It is safe to call again after a reconnect.
func (b *Bridge) Subscribe() {
	for _, t := range []string{b.topic("mode", "set"), b.topic("temperature", "set")} {
		token := b.client.Subscribe(t, b.qos, b.handleMessage)
		if !token.WaitTimeout(publishTimeout) {
			b.log.Errorw("subscribe_timeout", "topic", t)
			continue
		}
		if err := token.Error(); err != nil {
			b.log.Errorw("subscribe_failed", "topic", t, "err", err)
			continue
		}
		b.log.Infow("subscribed", "topic", t)
	}
}

func (b *Bridge) publishState(st models.ThermostatState) {
	body, err := json.Marshal(st)
	if err != nil {
		b.log.Errorw("state_marshal_failed", "err", err)
		return
	}
	b.publish(b.topic("state"), string(body))
	b.publish(b.topic("hvac_mode"), string(st.HvacMode))
	b.publish(b.topic("hvac_action"), string(st.CurrentAction))
	if st.TargetTemperature != nil {
		b.publish(b.topic("target_temperature"), strconv.Itoa(*st.TargetTemperature))
	}
	if st.ZoneAActive != nil {
		b.publish(b.topic("zone_a"), onOff(*st.ZoneAActive))
	}
	if st.ZoneBActive != nil {
		b.publish(b.topic("zone_b"), onOff(*st.ZoneBActive))
	}
}

func (b *Bridge) publish(topic, value string) {
	select {
	case <-b.stop:
		return
	default:
	}
	token := b.client.Publish(topic, b.qos, true, value)
	if !token.WaitTimeout(publishTimeout) {
		b.log.Warnw("publish_timeout", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		b.log.Warnw("publish_failed", "topic", topic, "err", err)
	}
}

func (b *Bridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := strings.TrimSpace(string(msg.Payload()))
	b.log.Infow("command_received", "topic", msg.Topic(), "payload", payload)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch msg.Topic() {
	case b.topic("mode", "set"):
		err = b.thermostat.SetHvacMode(ctx, service.ModeParams{Mode: payload})
	case b.topic("temperature", "set"):
		var celsius int
		celsius, err = parseCelsius(payload)
		if err == nil {
			err = b.thermostat.SetTargetTemperature(ctx, service.TemperatureParams{Celsius: &celsius})
		}
	default:
		b.log.Warnw("unexpected_topic", "topic", msg.Topic())
		return
	}
	if err != nil {
		b.log.Errorw("command_failed", "topic", msg.Topic(), "payload", payload, "err", err)
	}
}

// parseCelsius accepts whole degrees; home automation tools often send "21.0".
func parseCelsius(s string) (int, error) {
	s = strings.TrimSuffix(s, ".0")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("temperature %q is not a whole number", s)
	}
	return n, nil
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
