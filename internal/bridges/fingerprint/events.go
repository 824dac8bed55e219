package fingerprint

// Event names as seen by subscribers.
const (
	EventLinkStatus   = "arduino-status"
	EventRawMessage   = "arduino-message"
	EventSensorStatus = "sensor-status"
	EventEnrollStatus = "enroll-status"
	EventVerifyStatus = "verify-status"
)

// Event is one item on the Bus: a link transition, a raw device line or a
// classified device event.
type Event interface {
	// Name returns the event name (one of the Event* constants).
	Name() string

	// Payload returns the JSON-serialisable body delivered to clients.
	Payload() any
}

// Phase is the step of an enroll or verify flow.
type Phase string

// Flow phases. Not every phase occurs in both flows: duplicate is
// enrol-only and not_found is verify-only.
const (
	PhaseStarted   Phase = "started"
	PhaseMessage   Phase = "msg"
	PhaseDuplicate Phase = "duplicate"
	PhaseSuccess   Phase = "success"
	PhaseError     Phase = "error"
	PhaseNotFound  Phase = "not_found"
)

// ConnectionStatus describes the serial link. Only the Link produces it.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
}

func (ConnectionStatus) Name() string   { return EventLinkStatus }
func (s ConnectionStatus) Payload() any { return s }

// RawMessage carries one trimmed device line verbatim.
type RawMessage struct {
	Text string
}

func (RawMessage) Name() string { return EventRawMessage }

func (m RawMessage) Payload() any {
	return struct {
		Message string `json:"message"`
	}{m.Text}
}

// SensorStatus reports sensor health.
type SensorStatus struct {
	OK      bool
	Message string
}

func (SensorStatus) Name() string { return EventSensorStatus }

func (s SensorStatus) Payload() any {
	status := "error"
	if s.OK {
		status = "ok"
	}
	return struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}{status, s.Message}
}

// flowPayload is the wire body shared by enroll-status and verify-status.
// FingerID and Confidence are pointers: nil means the device did not
// report a value, which is distinct from slot 0.
//
// ID repeats FingerID on enroll success only; the web UI reads the
// enrolled slot from "id".
type flowPayload struct {
	Status     Phase  `json:"status"`
	Message    string `json:"message,omitempty"`
	ID         *int   `json:"id,omitempty"`
	FingerID   *int   `json:"fingerId,omitempty"`
	Confidence *int   `json:"confidence,omitempty"`
}

// EnrollStatus is one step of an enrolment flow.
type EnrollStatus struct {
	Phase      Phase
	Message    string
	FingerID   *int
	Confidence *int
}

func (EnrollStatus) Name() string { return EventEnrollStatus }

func (e EnrollStatus) Payload() any {
	p := flowPayload{Status: e.Phase, Message: e.Message, FingerID: e.FingerID, Confidence: e.Confidence}
	if e.Phase == PhaseSuccess {
		p.ID = e.FingerID
	}
	return p
}

// VerifyStatus is one step of a verification flow.
type VerifyStatus struct {
	Phase      Phase
	Message    string
	FingerID   *int
	Confidence *int
}

func (VerifyStatus) Name() string { return EventVerifyStatus }

func (v VerifyStatus) Payload() any {
	return flowPayload{Status: v.Phase, Message: v.Message, FingerID: v.FingerID, Confidence: v.Confidence}
}

// PhaseOf returns the status string of a sensor or flow event.
// The second result is false for link and raw events.
func PhaseOf(ev Event) (string, bool) {
	switch e := ev.(type) {
	case EnrollStatus:
		return string(e.Phase), true
	case VerifyStatus:
		return string(e.Phase), true
	case SensorStatus:
		if e.OK {
			return "ok", true
		}
		return "error", true
	default:
		return "", false
	}
}
