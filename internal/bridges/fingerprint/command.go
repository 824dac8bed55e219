package fingerprint

import (
	"fmt"
	"strings"
)

// CommandKind names a device command.
type CommandKind string

const (
	CommandEnroll CommandKind = "enroll"
	CommandVerify CommandKind = "verify"
	CommandDelete CommandKind = "delete"
	CommandEmpty  CommandKind = "empty"
)

// Command is an immutable operator request for the device. The finger ID
// is kept as supplied; the Gateway validates it at submission time so an
// unavailable link is reported before a malformed ID.
type Command struct {
	kind CommandKind
	id   string
}

// Enroll asks the sensor to capture a new fingerprint into slot id.
func Enroll(id string) Command { return Command{kind: CommandEnroll, id: id} }

// Verify asks the sensor to match the next presented finger.
func Verify() Command { return Command{kind: CommandVerify} }

// Delete asks the sensor to clear slot id.
func Delete(id string) Command { return Command{kind: CommandDelete, id: id} }

// Empty asks the sensor to clear every slot.
func Empty() Command { return Command{kind: CommandEmpty} }

// ParseCommand builds a Command from a kind name such as "enroll".
// id is ignored for kinds that take none.
func ParseCommand(kind, id string) (Command, error) {
	switch CommandKind(strings.ToLower(strings.TrimSpace(kind))) {
	case CommandEnroll:
		return Enroll(id), nil
	case CommandVerify:
		return Verify(), nil
	case CommandDelete:
		return Delete(id), nil
	case CommandEmpty:
		return Empty(), nil
	default:
		return Command{}, fmt.Errorf("%w: unknown command %q", ErrInvalidArgument, kind)
	}
}

// Kind returns the command kind.
func (c Command) Kind() CommandKind { return c.kind }

// ID returns the finger ID as supplied, or "" for commands without one.
func (c Command) ID() string { return c.id }

// NeedsID reports whether the command addresses a single slot.
func (c Command) NeedsID() bool {
	return c.kind == CommandEnroll || c.kind == CommandDelete
}

// Render returns the newline-terminated line sent to the device.
func (c Command) Render() string {
	verb := strings.ToUpper(string(c.kind))
	if c.NeedsID() {
		return verb + " " + strings.TrimSpace(c.id) + "\n"
	}
	return verb + "\n"
}

func (c Command) String() string {
	return strings.TrimSuffix(c.Render(), "\n")
}
