package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementFingerprintEvents = "fingerprint_events"
	MeasurementFingerprintLink   = "fingerprint_link"
)

// WriteFingerprintEvent records one classified sensor event.
//
// event is the event name (e.g. "verify-status") and status its phase
// (e.g. "success"). fingerID and confidence are written only when known.
func (c *Client) WriteFingerprintEvent(bridgeID, event, status string, fingerID, confidence *int, at time.Time) {
	tags := map[string]string{
		"bridge": bridgeID,
		"event":  event,
	}
	if status != "" {
		tags["status"] = status
	}

	fields := map[string]any{"count": 1}
	if fingerID != nil {
		fields["finger_id"] = *fingerID
	}
	if confidence != nil {
		fields["confidence"] = *confidence
	}

	c.WritePointWithTime(MeasurementFingerprintEvents, tags, fields, at)
}

// WriteLinkState records a serial link transition.
func (c *Client) WriteLinkState(bridgeID string, connected bool, at time.Time) {
	c.WritePointWithTime(MeasurementFingerprintLink,
		map[string]string{"bridge": bridgeID},
		map[string]any{"connected": connected},
		at,
	)
}

// WritePoint writes a point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
// Dropped silently once the client is closed.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
