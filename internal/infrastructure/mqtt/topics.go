package mqtt

import "fmt"

// TopicPrefix is the root of every topic the bridge publishes or consumes.
//
// Layout: biobridge/{category}/{protocol}/{name}
const TopicPrefix = "biobridge"

// Topics provides builders for biobridge MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Event("fingerprint", "enroll-status")
//	// Returns: "biobridge/event/fingerprint/enroll-status"
type Topics struct{}

// Event returns the topic for a fanned-out bridge event.
func (Topics) Event(protocol, eventName string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefix, protocol, eventName)
}

// State returns the retained state topic for a named piece of bridge state.
//
// Example: biobridge/state/fingerprint/link
func (Topics) State(protocol, name string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocol, name)
}

// Command returns the topic on which a named command is requested.
//
// Example: biobridge/command/fingerprint/enroll
func (Topics) Command(protocol, command string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, command)
}

// Ack returns the topic for command acknowledgements.
func (Topics) Ack(protocol, command string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocol, command)
}

// Health returns the topic for periodic bridge health.
func (Topics) Health(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocol)
}

// AllCommands returns a wildcard for every command of a protocol.
func (Topics) AllCommands(protocol string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, protocol)
}

// AllEvents returns a wildcard for every event of a protocol.
func (Topics) AllEvents(protocol string) string {
	return fmt.Sprintf("%s/event/%s/+", TopicPrefix, protocol)
}

// SystemStatus returns the retained online/offline topic (also the LWT topic).
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// LastSegment returns the final "/"-separated element of a topic, which
// for command topics is the command name.
func LastSegment(topic string) string {
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '/' {
			return topic[i+1:]
		}
	}
	return topic
}
