package fingerprint

import (
	"sync"
	"time"
)

// MetricsWriter receives telemetry points. Satisfied by *influxdb.Client,
// whose writes are non-blocking and batched.
type MetricsWriter interface {
	WriteFingerprintEvent(bridgeID, event, status string, fingerID, confidence *int, at time.Time)
	WriteLinkState(bridgeID string, connected bool, at time.Time)
}

// Recorder writes one point per classified event and per link
// transition. Raw lines are not recorded.
type Recorder struct {
	bridgeID string
	writer   MetricsWriter
	bus      *Bus

	sub      *Subscription
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRecorder creates a recorder. Call Start to begin recording.
func NewRecorder(bridgeID string, writer MetricsWriter, bus *Bus) *Recorder {
	return &Recorder{bridgeID: bridgeID, writer: writer, bus: bus}
}

// Start subscribes to the bus.
func (r *Recorder) Start() {
	r.sub = r.bus.Subscribe()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for ev := range r.sub.Events() {
			r.record(ev, time.Now())
		}
	}()
}

// Stop unsubscribes and waits for pending events to be written.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		if r.sub != nil {
			r.bus.Unsubscribe(r.sub)
		}
		r.wg.Wait()
	})
}

func (r *Recorder) record(ev Event, at time.Time) {
	switch e := ev.(type) {
	case ConnectionStatus:
		r.writer.WriteLinkState(r.bridgeID, e.Connected, at)
	case EnrollStatus:
		r.writer.WriteFingerprintEvent(r.bridgeID, e.Name(), string(e.Phase), e.FingerID, e.Confidence, at)
	case VerifyStatus:
		r.writer.WriteFingerprintEvent(r.bridgeID, e.Name(), string(e.Phase), e.FingerID, e.Confidence, at)
	case SensorStatus:
		status, _ := PhaseOf(e)
		r.writer.WriteFingerprintEvent(r.bridgeID, e.Name(), status, nil, nil, at)
	}
}
