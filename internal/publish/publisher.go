package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/castwatch/castwatch/internal/logging"
	"github.com/castwatch/castwatch/internal/monitor"
)

// brokerClient is the part of the paho client the publisher uses.
type brokerClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Publisher forwards monitor events to an MQTT broker.
type Publisher struct {
	client brokerClient
	cfg    Config
	topics Topics
	now    func() time.Time
}

// Connect dials the broker, publishes "online" on the state topic and returns
// a publisher. The client reconnects on its own after the first connection.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}

	p := newPublisher(nil, cfg)

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		logging.Info("MQTT connected", zap.String("broker", cfg.Broker))
		p.publishState("online", "")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logging.Warn("MQTT connection lost", zap.String("broker", cfg.Broker), zap.Error(err))
	})

	client := pahomqtt.NewClient(opts)
	p.client = client

	token := client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, opts.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return p, nil
}

func newPublisher(client brokerClient, cfg Config) *Publisher {
	return &Publisher{
		client: client,
		cfg:    cfg,
		topics: Topics{Prefix: cfg.TopicPrefix},
		now:    time.Now,
	}
}

// Run publishes every event until ctx is done or events closes. Publish
// failures are logged; the broker keeps the last retained value.
func (p *Publisher) Run(ctx context.Context, events <-chan monitor.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := p.HandleEvent(ev); err != nil {
				logging.Warn("MQTT publish failed",
					zap.String("event", string(ev.Type)),
					zap.Error(err),
				)
			}
		}
	}
}

// HandleEvent publishes one monitor event.
func (p *Publisher) HandleEvent(ev monitor.Event) error {
	switch ev.Type {
	case monitor.EventDevices:
		return p.PublishDevices(ev.Devices)
	case monitor.EventStatus:
		return p.PublishChanges(ev.Changes, ev.Statuses)
	default:
		return nil
	}
}

// PublishDevices publishes the device list on <prefix>/devices.
func (p *Publisher) PublishDevices(devices []monitor.Device) error {
	if devices == nil {
		devices = []monitor.Device{}
	}
	payload, err := json.Marshal(devices)
	if err != nil {
		return fmt.Errorf("failed to encode device list: %w", err)
	}
	return p.Publish(p.topics.Devices(), payload, p.cfg.Retained)
}

// PublishChanges publishes, for each device in changes, the full status from
// statuses on <prefix>/status/<device> (retain flag from the config) and the
// changed fields on <prefix>/changes/<device> (never retained). Every device
// is attempted; the first error is returned.
func (p *Publisher) PublishChanges(changes monitor.ChangeSet, statuses monitor.Snapshot) error {
	var firstErr error
	for _, name := range changes.Devices() {
		if err := p.publishDevice(name, changes[name], statuses); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("device %q: %w", name, err)
		}
	}
	return firstErr
}

func (p *Publisher) publishDevice(name string, fields map[string]any, statuses monitor.Snapshot) error {
	var firstErr error

	if status, ok := statuses[name]; ok {
		payload, err := json.Marshal(status)
		if err == nil {
			err = p.Publish(p.topics.Status(name), payload, p.cfg.Retained)
		}
		firstErr = err
	}

	payload, err := json.Marshal(fields)
	if err == nil {
		err = p.Publish(p.topics.Changes(name), payload, false)
	}
	if firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Publish sends payload to topic and waits for the acknowledgment.
func (p *Publisher) Publish(topic string, payload []byte, retained bool) error {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	token := p.client.Publish(topic, p.cfg.QoS, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	logging.Debug("MQTT message published",
		zap.String("topic", topic),
		zap.Int("bytes", len(payload)),
	)
	return nil
}

// Close publishes a graceful "offline" state and disconnects.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	if p.client.IsConnected() {
		p.publishState("offline", "graceful_shutdown")
	}
	p.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

func (p *Publisher) publishState(status, reason string) {
	payload := buildStatePayload(status, p.cfg.ClientID, reason, p.now())
	if err := p.Publish(p.topics.State(), payload, true); err != nil {
		logging.Warn("Failed to publish MQTT state", zap.String("status", status), zap.Error(err))
	}
}
