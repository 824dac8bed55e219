package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Bridge wires the serial link, event bus and command gateway for a
// single sensor controller. It is created once at startup and lives for
// the whole process.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	bus     *Bus
	link    *Link
	gateway *Gateway

	startOnce sync.Once
	stopOnce  sync.Once
}

// BridgeOptions configures NewBridge.
type BridgeOptions struct {
	// Link configures the serial port.
	Link LinkConfig

	// Gateway configures command validation.
	Gateway GatewayConfig

	// SubscriberBuffer is the per-subscriber queue length.
	SubscriberBuffer int

	// Bindings answers the enrolment precondition. Optional.
	Bindings BindingChecker

	// Auditor records every command submission. Optional.
	Auditor CommandAuditor

	// Logger is shared by link and gateway. Optional.
	Logger Logger
}

// NewBridge creates a bridge with a closed link. Call Start to open it.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Link.Path == "" {
		return nil, fmt.Errorf("%w: serial port path required", ErrInvalidArgument)
	}
	if opts.Link.BaudRate <= 0 {
		return nil, fmt.Errorf("%w: baud rate must be positive", ErrInvalidArgument)
	}

	bus := NewBus(opts.SubscriberBuffer)
	link := NewLink(opts.Link, bus)
	gateway := NewGateway(link, opts.Bindings, opts.Gateway)
	if opts.Auditor != nil {
		gateway.SetAuditor(opts.Auditor)
	}
	if opts.Logger != nil {
		link.SetLogger(opts.Logger)
		gateway.SetLogger(opts.Logger)
	}

	return &Bridge{bus: bus, link: link, gateway: gateway}, nil
}

// Start opens the serial link. Completion is reported on the bus.
func (b *Bridge) Start(ctx context.Context) error {
	var err error
	b.startOnce.Do(func() {
		err = b.link.Open(ctx)
	})
	return err
}

// Reopen retries the serial link after it closed or failed to open.
func (b *Bridge) Reopen(ctx context.Context) error {
	err := b.link.Open(ctx)
	if errors.Is(err, ErrAlreadyOpen) {
		return nil
	}
	return err
}

// Stop closes the link, then the bus, ending every subscription.
// Safe to call multiple times.
func (b *Bridge) Stop() error {
	var err error
	b.stopOnce.Do(func() {
		err = b.link.Close()
		b.bus.Close()
	})
	return err
}

// Submit validates cmd and writes it to the device. See Gateway.Submit.
func (b *Bridge) Submit(ctx context.Context, cmd Command) (Ack, error) {
	return b.gateway.Submit(ctx, cmd)
}

// Subscribe registers an event subscriber. See Bus.Subscribe.
func (b *Bridge) Subscribe() *Subscription { return b.bus.Subscribe() }

// Unsubscribe removes an event subscriber.
func (b *Bridge) Unsubscribe(sub *Subscription) { b.bus.Unsubscribe(sub) }

// Status returns the last published ConnectionStatus.
func (b *Bridge) Status() ConnectionStatus { return b.bus.Status() }

// Bus exposes the event bus for in-process consumers (mirror, recorder).
func (b *Bridge) Bus() *Bus { return b.bus }

// LinkStats returns serial link counters.
func (b *Bridge) LinkStats() LinkStats { return b.link.Stats() }

// BusStats returns fan-out counters.
func (b *Bridge) BusStats() BusStats { return b.bus.Stats() }

// GatewayStats returns submission counters.
func (b *Bridge) GatewayStats() GatewayStats { return b.gateway.Stats() }

// Snapshot is a point-in-time view of the bridge for status endpoints.
type Snapshot struct {
	Status       ConnectionStatus `json:"status"`
	State        string           `json:"state"`
	Port         string           `json:"port"`
	LinesRx      uint64           `json:"lines_received"`
	CommandsTx   uint64           `json:"commands_sent"`
	Errors       uint64           `json:"errors"`
	Reconnects   uint64           `json:"reconnects"`
	Subscribers  int              `json:"subscribers"`
	Dropped      uint64           `json:"events_dropped"`
	Accepted     uint64           `json:"commands_accepted"`
	Rejected     uint64           `json:"commands_rejected"`
	LastActivity *time.Time       `json:"last_activity,omitempty"`
}

// Snapshot returns the current status and counters.
func (b *Bridge) Snapshot() Snapshot {
	link := b.link.Stats()
	bus := b.bus.Stats()
	gw := b.gateway.Stats()
	s := Snapshot{
		Status:      b.bus.Status(),
		State:       link.State.String(),
		Port:        link.Path,
		LinesRx:     link.LinesRx,
		CommandsTx:  link.CommandsTx,
		Errors:      link.ErrorsTotal,
		Reconnects:  link.ReconnectsTotal,
		Subscribers: bus.Subscribers,
		Dropped:     bus.Dropped,
		Accepted:    gw.Accepted,
		Rejected:    gw.Rejected,
	}
	if !link.LastActivity.IsZero() {
		last := link.LastActivity.UTC()
		s.LastActivity = &last
	}
	return s
}
