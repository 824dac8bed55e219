package fingerprint

import (
	"regexp"
	"strconv"
	"strings"
)

// Device line prefixes.
const (
	prefixSensorOK        = "SENSOR:OK"
	prefixSensorError     = "SENSOR:ERROR"
	prefixEnrollStart     = "ENROLL:START"
	prefixEnrollMsg       = "ENROLL:MSG:"
	prefixEnrollDuplicate = "ENROLL:ERROR:DUPLICATE"
	prefixEnrollOK        = "ENROLL:OK"
	prefixVerifyStart     = "VERIFY:START"
	prefixVerifyMsg       = "VERIFY:MSG:"
	prefixVerifyOK        = "VERIFY:OK"
	prefixVerifyNotFound  = "VERIFY:NOT_FOUND"
)

// Human-readable texts attached to events that carry none on the wire.
const (
	msgSensorOK        = "fingerprint sensor OK"
	msgEnrollDuplicate = "fingerprint already enrolled (duplicate)"
)

var (
	idPattern   = regexp.MustCompile(`ID=(\d+)`)
	confPattern = regexp.MustCompile(`CONF=(\d+)`)
)

// rule maps a line prefix to the events it produces.
type rule struct {
	prefix string
	build  func(line string) []Event
}

// rules is evaluated in order; the first matching prefix wins.
var rules = []rule{
	{prefixSensorOK, func(string) []Event {
		return []Event{SensorStatus{OK: true, Message: msgSensorOK}}
	}},
	{prefixSensorError, sensorError},
	{prefixEnrollStart, func(string) []Event {
		return []Event{EnrollStatus{Phase: PhaseStarted}}
	}},
	{prefixEnrollMsg, func(line string) []Event {
		return []Event{EnrollStatus{Phase: PhaseMessage, Message: afterPrefix(line, prefixEnrollMsg)}}
	}},
	{prefixEnrollDuplicate, func(line string) []Event {
		return []Event{EnrollStatus{
			Phase:      PhaseDuplicate,
			Message:    msgEnrollDuplicate,
			FingerID:   extractInt(idPattern, line),
			Confidence: extractInt(confPattern, line),
		}}
	}},
	{prefixEnrollOK, func(line string) []Event {
		return []Event{EnrollStatus{Phase: PhaseSuccess, FingerID: extractInt(idPattern, line)}}
	}},
	{prefixVerifyStart, func(string) []Event {
		return []Event{VerifyStatus{Phase: PhaseStarted}}
	}},
	{prefixVerifyMsg, func(line string) []Event {
		return []Event{VerifyStatus{Phase: PhaseMessage, Message: afterPrefix(line, prefixVerifyMsg)}}
	}},
	{prefixVerifyOK, func(line string) []Event {
		return []Event{VerifyStatus{
			Phase:      PhaseSuccess,
			FingerID:   extractInt(idPattern, line),
			Confidence: extractInt(confPattern, line),
		}}
	}},
	{prefixVerifyNotFound, func(string) []Event {
		return []Event{VerifyStatus{Phase: PhaseNotFound}}
	}},
}

// Classify maps one device line to the events it represents.
//
// It is pure and total: the line is trimmed, matched against the prefix
// table in order, and anything unmatched becomes a single RawMessage.
// The result is never empty. A SENSOR:ERROR line that mentions a flow
// yields two events, the sensor error followed by the flow error.
func Classify(line string) []Event {
	line = strings.TrimSpace(line)
	for _, r := range rules {
		if strings.HasPrefix(line, r.prefix) {
			return r.build(line)
		}
	}
	return []Event{RawMessage{Text: line}}
}

func sensorError(line string) []Event {
	events := []Event{SensorStatus{OK: false, Message: line}}
	switch {
	case strings.Contains(line, "ENROLL:"):
		events = append(events, EnrollStatus{Phase: PhaseError, Message: line})
	case strings.Contains(line, "VERIFY:"):
		events = append(events, VerifyStatus{Phase: PhaseError, Message: line})
	}
	return events
}

func afterPrefix(line, prefix string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, prefix))
}

// extractInt returns the first capture of re in line, or nil when the
// token is absent or does not fit in an int.
func extractInt(re *regexp.Regexp, line string) *int {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}
