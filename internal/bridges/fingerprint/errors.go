package fingerprint

import "errors"

// Domain errors for the fingerprint bridge.
var (
	// ErrLinkUnavailable is returned when a command needs the serial link
	// but it is not open.
	ErrLinkUnavailable = errors.New("fingerprint: sensor link not open")

	// ErrInvalidArgument is returned for a missing or malformed finger ID
	// or an unknown command name.
	ErrInvalidArgument = errors.New("fingerprint: invalid argument")

	// ErrIDAlreadyBound is returned when enrolment targets a slot the
	// member directory already assigns to someone.
	ErrIDAlreadyBound = errors.New("fingerprint: id already bound to a member")

	// ErrCollaboratorUnavailable wraps a failed binding lookup. It is
	// logged and the command proceeds; it is never returned by Submit.
	ErrCollaboratorUnavailable = errors.New("fingerprint: binding lookup unavailable")

	// ErrWriteFailed is returned when the port rejects a command write.
	ErrWriteFailed = errors.New("fingerprint: command write failed")

	// ErrAlreadyOpen is returned by Open while the link is opening or open.
	ErrAlreadyOpen = errors.New("fingerprint: link already open")

	// ErrLinkClosed is returned by Open after Close.
	ErrLinkClosed = errors.New("fingerprint: link closed")
)
