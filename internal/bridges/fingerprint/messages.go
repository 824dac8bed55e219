package fingerprint

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MQTT message types exchanged on the biobridge/*/fingerprint topics.

// CommandMessage requests a device command.
// Topic: biobridge/command/fingerprint/{enroll|verify|delete|empty}
type CommandMessage struct {
	// ID correlates the request with its AckMessage. It says nothing about
	// the device outcome, which is only observable as events.
	ID string `json:"id"`

	// FingerID is the slot for enroll/delete. Accepted as a JSON string
	// or number.
	FingerID string `json:"finger_id,omitempty"`

	// Source indicates where the command originated (e.g. "ui", "kiosk").
	Source string `json:"source,omitempty"`
}

// UnmarshalJSON accepts finger_id as a string or a number.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID       string          `json:"id"`
		FingerID json.RawMessage `json:"finger_id"`
		Source   string          `json:"source"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	m.ID = aux.ID
	m.Source = aux.Source
	m.FingerID = ""

	raw := strings.TrimSpace(string(aux.FingerID))
	switch {
	case raw == "" || raw == "null":
	case strings.HasPrefix(raw, `"`):
		if err := json.Unmarshal(aux.FingerID, &m.FingerID); err != nil {
			return fmt.Errorf("unmarshal finger_id: %w", err)
		}
	default:
		var n json.Number
		if err := json.Unmarshal(aux.FingerID, &n); err != nil {
			return fmt.Errorf("unmarshal finger_id: %w", err)
		}
		m.FingerID = n.String()
	}
	return nil
}

// AckStatus is the gateway's verdict on a command.
type AckStatus string

const (
	// AckAccepted indicates the command was written to the device.
	AckAccepted AckStatus = "accepted"

	// AckRejected indicates the command failed a precondition or the write.
	AckRejected AckStatus = "rejected"
)

// AckMessage acknowledges a CommandMessage.
// Topic: biobridge/ack/fingerprint/{command}
type AckMessage struct {
	CommandID string      `json:"command_id"`
	Timestamp time.Time   `json:"timestamp"`
	Command   CommandKind `json:"command"`
	FingerID  *int        `json:"finger_id,omitempty"`
	Status    AckStatus   `json:"status"`
	Message   string      `json:"message"`
	Error     *AckError   `json:"error,omitempty"`
}

// AckError carries the rejection reason.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAckMessage builds the acknowledgement for a Submit result.
func NewAckMessage(cmdID string, kind CommandKind, ack Ack, err error) AckMessage {
	msg := AckMessage{
		CommandID: cmdID,
		Timestamp: time.Now().UTC(),
		Command:   kind,
	}
	if err != nil {
		msg.Status = AckRejected
		msg.Message = RejectionMessage(err)
		msg.Error = &AckError{Code: RejectionCode(err), Message: msg.Message}
		return msg
	}
	msg.Status = AckAccepted
	msg.Message = ack.Message
	msg.FingerID = ack.FingerID
	return msg
}

// EventMessage wraps a bus event for MQTT.
// Topic: biobridge/event/fingerprint/{event-name}
type EventMessage struct {
	Bridge    string    `json:"bridge"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEventMessage wraps ev.
func NewEventMessage(bridgeID string, ev Event) EventMessage {
	return EventMessage{
		Bridge:    bridgeID,
		Event:     ev.Name(),
		Timestamp: time.Now().UTC(),
		Payload:   ev.Payload(),
	}
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// Topic: biobridge/health/fingerprint
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string            `json:"bridge"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        HealthStatus      `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Link          *LinkHealth       `json:"link,omitempty"`
	Statistics    *BridgeStatistics `json:"statistics,omitempty"`
	Reason        string            `json:"reason,omitempty"`
}

// LinkHealth describes the serial link.
type LinkHealth struct {
	Status       string     `json:"status"`
	Port         string     `json:"port"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	LinesReceived    uint64 `json:"lines_received"`
	CommandsSent     uint64 `json:"commands_sent"`
	Errors           uint64 `json:"errors"`
	Reconnects       uint64 `json:"reconnects"`
	Subscribers      int    `json:"subscribers"`
	EventsPublished  uint64 `json:"events_published"`
	EventsDropped    uint64 `json:"events_dropped"`
	CommandsAccepted uint64 `json:"commands_accepted"`
	CommandsRejected uint64 `json:"commands_rejected"`
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version string, status HealthStatus, link LinkStats, bus BusStats, gw GatewayStats, startTime time.Time) HealthMessage {
	msg := HealthMessage{
		Bridge:        bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Link: &LinkHealth{
			Status: link.State.String(),
			Port:   link.Path,
		},
		Statistics: &BridgeStatistics{
			LinesReceived:    link.LinesRx,
			CommandsSent:     link.CommandsTx,
			Errors:           link.ErrorsTotal,
			Reconnects:       link.ReconnectsTotal,
			Subscribers:      bus.Subscribers,
			EventsPublished:  bus.Published,
			EventsDropped:    bus.Dropped,
			CommandsAccepted: gw.Accepted,
			CommandsRejected: gw.Rejected,
		},
	}
	if !link.LastActivity.IsZero() {
		last := link.LastActivity.UTC()
		msg.Link.LastActivity = &last
	}
	return msg
}
