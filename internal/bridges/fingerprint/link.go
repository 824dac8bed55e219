package fingerprint

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// MaxLineLength bounds a single device line. Longer input is split
	// into chunks of this size, each handled as its own line.
	MaxLineLength = 4096

	defaultReconnectInitialDelay = 5 * time.Second
	defaultReconnectMaxDelay     = 2 * time.Minute
	reconnectBackoffFactor       = 1.5
)

// State is the serial link lifecycle state.
type State int32

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// PortOpener acquires the physical port. OpenSerialPort is the
// production implementation; tests substitute in-memory pipes.
type PortOpener func(path string, baudRate int) (io.ReadWriteCloser, error)

// Publisher receives everything the link observes. *Bus satisfies it.
type Publisher interface {
	Publish(ev Event)
}

// LinkConfig holds serial link settings.
type LinkConfig struct {
	// Path is the device path, e.g. "/dev/ttyUSB0".
	Path string

	// BaudRate must match the controller firmware.
	BaudRate int

	// Opener acquires the port. Default: OpenSerialPort.
	Opener PortOpener

	// Reconnect re-opens the port after it closes, errors or fails to
	// open. Off by default: retry is otherwise the caller's decision.
	Reconnect bool

	// ReconnectInitialDelay is the first wait before re-opening.
	// Default: 5 seconds. Grows by 1.5x per failed attempt.
	ReconnectInitialDelay time.Duration

	// ReconnectMaxDelay caps the backoff. Default: 2 minutes.
	ReconnectMaxDelay time.Duration
}

// LinkStats holds operational statistics.
type LinkStats struct {
	Path            string
	State           State
	Connected       bool
	LinesRx         uint64
	CommandsTx      uint64
	ErrorsTotal     uint64
	ReconnectsTotal uint64
	LastActivity    time.Time
}

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Link owns the serial connection to the sensor controller.
//
// It is the only writer to the port. Each received line is published as
// a RawMessage followed by its classified events before the next line is
// read, so subscribers observe device output in arrival order.
//
// Lifecycle:
//
//	Closed ──Open──► Opening ──ok──► Open ──EOF/error/Close──► Closed
//	                    └────open error────► Failed
//
// Every transition publishes a ConnectionStatus. Open may be called
// again from Closed or Failed.
//
// Thread Safety: All methods are safe for concurrent use. Writes are
// serialised among themselves; reads proceed independently.
type Link struct {
	cfg LinkConfig
	bus Publisher

	mu    sync.Mutex
	state State
	port  io.ReadWriteCloser
	gen   uint64 // bumped on every Open and Close; stale goroutines compare and bail

	writeMu sync.Mutex

	done *closeOnce
	wg   sync.WaitGroup

	linesRx         atomic.Uint64
	commandsTx      atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	lastActivity    atomic.Int64 // Unix nanoseconds

	logSink
}

// NewLink creates a closed link publishing to bus. Call Open to connect.
func NewLink(cfg LinkConfig, bus Publisher) *Link {
	if cfg.Opener == nil {
		cfg.Opener = OpenSerialPort
	}
	if cfg.ReconnectInitialDelay <= 0 {
		cfg.ReconnectInitialDelay = defaultReconnectInitialDelay
	}
	if cfg.ReconnectMaxDelay < cfg.ReconnectInitialDelay {
		cfg.ReconnectMaxDelay = max(defaultReconnectMaxDelay, cfg.ReconnectInitialDelay)
	}
	return &Link{
		cfg:   cfg,
		bus:   bus,
		state: StateClosed,
		done:  newCloseOnce(),
	}
}

// Open starts acquiring the port and returns immediately.
//
// Completion is signalled on the bus: ConnectionStatus{Connected: true}
// once the port is open, or Connected: false with a diagnostic if it
// could not be opened. ctx bounds reconnect waits; use Close to stop
// the link.
func (l *Link) Open(ctx context.Context) error {
	l.mu.Lock()
	if l.isClosed() {
		l.mu.Unlock()
		return ErrLinkClosed
	}
	if l.state == StateOpening || l.state == StateOpen {
		l.mu.Unlock()
		return ErrAlreadyOpen
	}
	l.state = StateOpening
	l.gen++
	gen := l.gen
	// Added under mu so a concurrent Close always waits for this run.
	l.wg.Add(1)
	l.mu.Unlock()

	l.logInfo("opening serial port", "path", l.cfg.Path, "baud_rate", l.cfg.BaudRate)

	go l.run(ctx, gen)
	return nil
}

// run opens the port and reads until it closes, then optionally retries.
func (l *Link) run(ctx context.Context, gen uint64) {
	defer l.wg.Done()

	backoff := l.cfg.ReconnectInitialDelay
	for {
		port, err := l.cfg.Opener(l.cfg.Path, l.cfg.BaudRate)
		if err != nil {
			if !l.failOpen(gen, err) {
				return
			}
		} else {
			if !l.attach(gen, port) {
				return
			}
			backoff = l.cfg.ReconnectInitialDelay
			readErr := l.readLoop(port)
			if !l.detach(gen, readErr) {
				return
			}
		}

		if !l.cfg.Reconnect {
			return
		}

		l.logInfo("serial port re-open scheduled", "backoff", backoff.String())
		select {
		case <-ctx.Done():
			return
		case <-l.done.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(time.Duration(float64(backoff)*reconnectBackoffFactor), l.cfg.ReconnectMaxDelay)

		l.mu.Lock()
		if gen != l.gen || l.isClosed() {
			l.mu.Unlock()
			return
		}
		l.state = StateOpening
		l.mu.Unlock()
		l.reconnectsTotal.Add(1)
	}
}

// failOpen records an open error. Returns false if this generation is stale.
func (l *Link) failOpen(gen uint64, err error) bool {
	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return false
	}
	l.state = StateFailed
	l.mu.Unlock()

	l.errorsTotal.Add(1)
	l.logError("error opening serial port", err, "path", l.cfg.Path)
	l.bus.Publish(ConnectionStatus{
		Connected: false,
		Message:   "error opening serial port: " + err.Error(),
	})
	return true
}

// attach installs an opened port. Returns false (and closes port) if
// Close or a newer Open superseded this generation meanwhile.
func (l *Link) attach(gen uint64, port io.ReadWriteCloser) bool {
	l.mu.Lock()
	if gen != l.gen || l.isClosed() {
		l.mu.Unlock()
		port.Close() //nolint:errcheck // Superseded, nothing to report
		return false
	}
	l.state = StateOpen
	l.port = port
	l.mu.Unlock()

	l.touch()
	l.logInfo("serial port open", "path", l.cfg.Path)
	l.bus.Publish(ConnectionStatus{
		Connected: true,
		Message:   fmt.Sprintf("port %s open", l.cfg.Path),
	})
	return true
}

// detach handles the end of the read loop. Returns false if Close
// already accounted for it.
func (l *Link) detach(gen uint64, readErr error) bool {
	l.mu.Lock()
	if gen != l.gen || l.state != StateOpen {
		l.mu.Unlock()
		return false
	}
	port := l.port
	l.port = nil
	l.state = StateClosed
	l.mu.Unlock()

	port.Close() //nolint:errcheck // Already failed or at EOF

	status := ConnectionStatus{Connected: false, Message: "serial port closed"}
	if readErr != nil {
		l.errorsTotal.Add(1)
		status.Message = "serial port error: " + readErr.Error()
		l.logError("serial port error", readErr, "path", l.cfg.Path)
	} else {
		l.logInfo("serial port closed", "path", l.cfg.Path)
	}
	l.bus.Publish(status)
	return true
}

// readLoop consumes lines until EOF or a read error. EOF returns nil.
func (l *Link) readLoop(port io.Reader) error {
	scanner := bufio.NewScanner(port)
	scanner.Buffer(make([]byte, 0, 256), 2*MaxLineLength)
	scanner.Split(splitLines(MaxLineLength))

	for scanner.Scan() {
		l.linesRx.Add(1)
		l.touch()
		l.handleLine(scanner.Text())
	}
	return scanner.Err()
}

// handleLine publishes the raw line, then whatever it classifies to.
func (l *Link) handleLine(raw string) {
	line := strings.TrimSpace(raw)
	l.logDebug("serial line", "line", line)

	l.bus.Publish(RawMessage{Text: line})
	for _, ev := range Classify(line) {
		if _, isRaw := ev.(RawMessage); isRaw {
			continue
		}
		l.bus.Publish(ev)
	}
}

// splitLines is bufio.ScanLines with a length cap: a line longer than
// limit is emitted in limit-sized pieces.
func splitLines(limit int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		window := data
		if len(window) > limit+1 {
			window = window[:limit+1]
		}
		if i := bytes.IndexByte(window, '\n'); i >= 0 {
			return i + 1, data[:i], nil
		}
		if len(data) > limit {
			return limit, data[:limit], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

// Write sends text to the device exactly as given.
//
// It fails with ErrLinkUnavailable unless the link is open and wraps
// port errors in ErrWriteFailed. A failed write does not change the
// connection status; only the read side reports closure. Write returns
// once the bytes are handed to the port and never waits for a reply.
func (l *Link) Write(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	port := l.port
	open := l.state == StateOpen
	l.mu.Unlock()
	if !open || port == nil {
		return ErrLinkUnavailable
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if _, err := io.WriteString(port, text); err != nil {
		l.errorsTotal.Add(1)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	l.commandsTx.Add(1)
	l.touch()
	return nil
}

// IsOpen reports whether the link is in StateOpen.
func (l *Link) IsOpen() bool {
	return l.State() == StateOpen
}

// State returns the current lifecycle state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Path returns the configured device path.
func (l *Link) Path() string {
	return l.cfg.Path
}

// Stats returns current operational statistics.
func (l *Link) Stats() LinkStats {
	state := l.State()
	var last time.Time
	if ns := l.lastActivity.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return LinkStats{
		Path:            l.cfg.Path,
		State:           state,
		Connected:       state == StateOpen,
		LinesRx:         l.linesRx.Load(),
		CommandsTx:      l.commandsTx.Load(),
		ErrorsTotal:     l.errorsTotal.Load(),
		ReconnectsTotal: l.reconnectsTotal.Load(),
		LastActivity:    last,
	}
}

// Close closes the port and stops the read loop and any pending
// re-open. Safe to call multiple times.
func (l *Link) Close() error {
	l.done.Close()

	l.mu.Lock()
	wasActive := l.state == StateOpen || l.state == StateOpening
	port := l.port
	l.port = nil
	l.state = StateClosed
	l.gen++
	l.mu.Unlock()

	var closeErr error
	if port != nil {
		if err := port.Close(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			closeErr = fmt.Errorf("closing serial port: %w", err)
		}
	}

	l.wg.Wait()

	if wasActive {
		l.bus.Publish(ConnectionStatus{Connected: false, Message: "serial port closed"})
		l.logInfo("serial link closed", "path", l.cfg.Path)
	}
	return closeErr
}

func (l *Link) isClosed() bool {
	select {
	case <-l.done.Done():
		return true
	default:
		return false
	}
}

func (l *Link) touch() {
	l.lastActivity.Store(time.Now().UnixNano())
}
