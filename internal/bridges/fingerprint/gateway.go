package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LinkWriter is the slice of *Link the gateway needs.
type LinkWriter interface {
	Write(ctx context.Context, text string) error
	IsOpen() bool
}

// BindingChecker answers whether a sensor slot is already assigned to a
// member record. Implemented by the member store.
type BindingChecker interface {
	IsFingerprintBound(ctx context.Context, fingerID int) (bool, error)
}

// GatewayConfig holds command validation settings.
type GatewayConfig struct {
	// MaxFingerID is the highest slot the sensor can index.
	// Zero disables the upper bound.
	MaxFingerID int
}

// Ack is returned for a command handed to the device. It reports only
// acceptance; the device outcome arrives later as events on the bus.
type Ack struct {
	Command  CommandKind `json:"command"`
	FingerID *int        `json:"finger_id,omitempty"`
	Message  string      `json:"message"`
}

// GatewayStats holds submission counters.
type GatewayStats struct {
	Accepted uint64
	Rejected uint64
}

// Gateway validates operator commands and writes them to the link.
//
// There is no queueing: each accepted submission is written at once and
// the device arbitrates overlapping operations.
type Gateway struct {
	link     LinkWriter
	bindings BindingChecker
	cfg      GatewayConfig

	accepted atomic.Uint64
	rejected atomic.Uint64

	auditor   CommandAuditor
	auditorMu sync.RWMutex

	logSink
}

// NewGateway creates a gateway. bindings may be nil, in which case the
// enrolment precondition is skipped.
func NewGateway(link LinkWriter, bindings BindingChecker, cfg GatewayConfig) *Gateway {
	return &Gateway{link: link, bindings: bindings, cfg: cfg}
}

// Submit checks cmd and writes it to the device.
//
// Checks run in order: link open (ErrLinkUnavailable), finger ID present
// and positive for enroll/delete (ErrInvalidArgument), then for enroll the
// binding lookup (ErrIDAlreadyBound). A failed lookup is logged and the
// command proceeds. Port failures are returned wrapping ErrWriteFailed.
func (g *Gateway) Submit(ctx context.Context, cmd Command) (Ack, error) {
	ack, err := g.submit(ctx, cmd)
	g.record(ctx, cmd, ack, err)
	if err != nil {
		g.rejected.Add(1)
		g.logWarn("command rejected", "command", string(cmd.Kind()), "id", cmd.ID(), "error", err)
		return Ack{}, err
	}
	g.accepted.Add(1)
	g.logInfo("command sent", "command", string(cmd.Kind()), "id", cmd.ID(), "source", SourceFrom(ctx))
	return ack, nil
}

// SetAuditor installs a recorder for every submission outcome.
func (g *Gateway) SetAuditor(a CommandAuditor) {
	g.auditorMu.Lock()
	defer g.auditorMu.Unlock()
	g.auditor = a
}

func (g *Gateway) record(ctx context.Context, cmd Command, ack Ack, err error) {
	g.auditorMu.RLock()
	a := g.auditor
	g.auditorMu.RUnlock()
	if a == nil {
		return
	}

	rec := CommandRecord{
		Command:  cmd.Kind(),
		FingerID: strings.TrimSpace(cmd.ID()),
		Source:   SourceFrom(ctx),
		Accepted: err == nil,
		Message:  ack.Message,
		At:       time.Now().UTC(),
	}
	if err != nil {
		rec.Code = RejectionCode(err)
		rec.Message = RejectionMessage(err)
	}
	a.RecordCommand(rec)
}

func (g *Gateway) submit(ctx context.Context, cmd Command) (Ack, error) {
	if !g.link.IsOpen() {
		return Ack{}, ErrLinkUnavailable
	}

	ack := Ack{
		Command: cmd.Kind(),
		Message: strings.ToUpper(string(cmd.Kind())) + " command sent",
	}

	if cmd.NeedsID() {
		id, err := g.parseFingerID(cmd.ID())
		if err != nil {
			return Ack{}, err
		}
		ack.FingerID = &id
		cmd = Command{kind: cmd.Kind(), id: strconv.Itoa(id)}

		if cmd.Kind() == CommandEnroll {
			if err := g.checkUnbound(ctx, id); err != nil {
				return Ack{}, err
			}
		}
	}

	if err := g.link.Write(ctx, cmd.Render()); err != nil {
		return Ack{}, err
	}
	return ack, nil
}

func (g *Gateway) parseFingerID(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: fingerprint ID required", ErrInvalidArgument)
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: fingerprint ID must be a positive integer, got %q", ErrInvalidArgument, raw)
	}
	if g.cfg.MaxFingerID > 0 && id > g.cfg.MaxFingerID {
		return 0, fmt.Errorf("%w: fingerprint ID %d exceeds sensor capacity %d", ErrInvalidArgument, id, g.cfg.MaxFingerID)
	}
	return id, nil
}

// checkUnbound enforces the enrolment precondition. Lookup failures let
// the command through.
func (g *Gateway) checkUnbound(ctx context.Context, id int) error {
	if g.bindings == nil {
		return nil
	}
	bound, err := g.bindings.IsFingerprintBound(ctx, id)
	if err != nil {
		g.logWarn("binding lookup failed, allowing enrol",
			"finger_id", id,
			"error", fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err))
		return nil
	}
	if bound {
		return fmt.Errorf("%w: fingerprint ID %d is already assigned to a member", ErrIDAlreadyBound, id)
	}
	return nil
}

// Stats returns submission counters.
func (g *Gateway) Stats() GatewayStats {
	return GatewayStats{
		Accepted: g.accepted.Load(),
		Rejected: g.rejected.Load(),
	}
}

// Rejection codes shared by the HTTP and MQTT surfaces.
const (
	CodeLinkUnavailable = "LINK_UNAVAILABLE"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeIDAlreadyBound  = "ID_ALREADY_BOUND"
	CodeWriteFailed     = "WRITE_FAILED"
	CodeInternal        = "INTERNAL_ERROR"
)

// RejectionCode maps a Submit error to a stable code.
func RejectionCode(err error) string {
	switch {
	case errors.Is(err, ErrLinkUnavailable):
		return CodeLinkUnavailable
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrIDAlreadyBound):
		return CodeIDAlreadyBound
	case errors.Is(err, ErrWriteFailed):
		return CodeWriteFailed
	default:
		return CodeInternal
	}
}

// RejectionMessage returns operator-facing text for a Submit error.
func RejectionMessage(err error) string {
	switch {
	case errors.Is(err, ErrLinkUnavailable):
		return "sensor controller not connected"
	case errors.Is(err, ErrInvalidArgument):
		return detail(err, ErrInvalidArgument)
	case errors.Is(err, ErrIDAlreadyBound):
		return detail(err, ErrIDAlreadyBound)
	case errors.Is(err, ErrWriteFailed):
		return "error sending command: " + detail(err, ErrWriteFailed)
	default:
		return err.Error()
	}
}

// detail strips the sentinel text from a "%w: detail" error.
func detail(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}
