// Package influxdb records bridge telemetry in InfluxDB v2.
//
// Two measurements are written:
//
//	fingerprint_events  tags: bridge, event, status   fields: count, finger_id, confidence
//	fingerprint_link    tags: bridge                  fields: connected
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval; asynchronous failures reach the SetOnError callback.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteLinkState("fingerprint-01", true, time.Now())
package influxdb
