package fingerprint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/biobridge/internal/infrastructure/mqtt"
)

const (
	// Protocol is the topic segment for everything this bridge publishes.
	Protocol = "fingerprint"

	// linkStateName is the retained state topic leaf for ConnectionStatus.
	linkStateName = "link"

	// commandTimeout bounds a single MQTT-originated submission.
	commandTimeout = 5 * time.Second
)

// MQTTClient is the interface for MQTT operations.
// Satisfied by *mqtt.Client; mocked in tests.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Submitter accepts commands. Satisfied by *Gateway.
type Submitter interface {
	Submit(ctx context.Context, cmd Command) (Ack, error)
}

// MirrorConfig holds MQTT mirror settings.
type MirrorConfig struct {
	// BridgeID identifies this bridge in published messages.
	BridgeID string

	// QoS for published events and acknowledgements. Default: 1.
	QoS byte
}

// Mirror republishes bus events on MQTT and feeds MQTT commands to the
// gateway. It is one more bus subscriber alongside the WebSocket clients.
//
// Thread Safety: All methods are safe for concurrent use.
type Mirror struct {
	cfg     MirrorConfig
	mqtt    MQTTClient
	bus     *Bus
	gateway Submitter
	topics  mqtt.Topics

	sub *Subscription

	// Shutdown coordination
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	logSink
}

// NewMirror creates a mirror. gateway may be nil to publish events only.
func NewMirror(cfg MirrorConfig, client MQTTClient, bus *Bus, gateway Submitter) *Mirror {
	if cfg.QoS == 0 {
		cfg.QoS = 1
	}
	return &Mirror{
		cfg:     cfg,
		mqtt:    client,
		bus:     bus,
		gateway: gateway,
	}
}

// Start subscribes to command topics and begins forwarding events.
// Call Stop to shut down.
func (m *Mirror) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if m.gateway != nil {
		topic := m.topics.AllCommands(Protocol)
		if err := m.mqtt.Subscribe(topic, m.cfg.QoS, m.handleCommand); err != nil {
			m.cancel()
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		m.logInfo("listening for MQTT commands", "topic", topic)
	}

	m.sub = m.bus.Subscribe()
	m.wg.Add(1)
	go m.forward(m.sub)
	return nil
}

// Stop detaches from the bus and waits for the forwarder to exit.
// Safe to call multiple times.
func (m *Mirror) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		if m.sub != nil {
			m.bus.Unsubscribe(m.sub)
		}
		m.wg.Wait()
	})
}

func (m *Mirror) forward(sub *Subscription) {
	defer m.wg.Done()
	for ev := range sub.Events() {
		m.publishEvent(ev)
	}
}

// publishEvent sends ev to its event topic. ConnectionStatus is also
// retained on the link state topic so late MQTT subscribers see it.
func (m *Mirror) publishEvent(ev Event) {
	if !m.mqtt.IsConnected() {
		m.logDebug("MQTT disconnected, event not mirrored", "event", ev.Name())
		return
	}

	payload, err := json.Marshal(NewEventMessage(m.cfg.BridgeID, ev))
	if err != nil {
		m.logError("failed to marshal event", err, "event", ev.Name())
		return
	}
	if err := m.mqtt.Publish(m.topics.Event(Protocol, ev.Name()), payload, m.cfg.QoS, false); err != nil {
		m.logError("failed to publish event", err, "event", ev.Name())
	}

	if status, ok := ev.(ConnectionStatus); ok {
		state, err := json.Marshal(status)
		if err != nil {
			m.logError("failed to marshal link state", err)
			return
		}
		if err := m.mqtt.Publish(m.topics.State(Protocol, linkStateName), state, m.cfg.QoS, true); err != nil {
			m.logError("failed to publish link state", err)
		}
	}
}

// handleCommand processes biobridge/command/fingerprint/{command}.
func (m *Mirror) handleCommand(topic string, payload []byte) error {
	name := mqtt.LastSegment(topic)

	var msg CommandMessage
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &msg); err != nil {
			m.publishAck(name, NewAckMessage("", CommandKind(name), Ack{},
				fmt.Errorf("%w: %w", ErrInvalidArgument, err)))
			return fmt.Errorf("parsing command payload: %w", err)
		}
	}

	cmd, err := ParseCommand(name, msg.FingerID)
	if err != nil {
		m.publishAck(name, NewAckMessage(msg.ID, CommandKind(name), Ack{}, err))
		return err
	}

	ctx, cancel := context.WithTimeout(WithSource(m.ctx, SourceMQTT), commandTimeout)
	defer cancel()

	ack, err := m.gateway.Submit(ctx, cmd)
	m.publishAck(name, NewAckMessage(msg.ID, cmd.Kind(), ack, err))
	m.logDebug("MQTT command handled",
		"command", name,
		"command_id", msg.ID,
		"source", msg.Source,
		"accepted", err == nil)
	return nil
}

func (m *Mirror) publishAck(name string, ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		m.logError("failed to marshal ack", err)
		return
	}
	if err := m.mqtt.Publish(m.topics.Ack(Protocol, name), payload, m.cfg.QoS, false); err != nil {
		m.logError("failed to publish ack", err, "command", name)
	}
}
