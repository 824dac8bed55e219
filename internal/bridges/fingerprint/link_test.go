package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testPortPath = "/dev/ttyTEST0"

// fakePort is an in-memory serial port. The test plays the device by
// writing to dev; everything the link writes is captured.
type fakePort struct {
	r   *io.PipeReader
	dev *io.PipeWriter

	mu       sync.Mutex
	written  bytes.Buffer
	writeErr error

	closed atomic.Bool
}

func newFakePort() *fakePort {
	r, w := io.Pipe()
	return &fakePort{r: r, dev: w}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.closed.Store(true)
	return p.r.Close()
}

func (p *fakePort) setWriteErr(err error) {
	p.mu.Lock()
	p.writeErr = err
	p.mu.Unlock()
}

func (p *fakePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// send plays device output.
func (p *fakePort) send(t *testing.T, text string) {
	t.Helper()
	if _, err := io.WriteString(p.dev, text); err != nil {
		t.Fatalf("device write: %v", err)
	}
}

func staticOpener(port io.ReadWriteCloser, err error) PortOpener {
	return func(string, int) (io.ReadWriteCloser, error) {
		if err != nil {
			return nil, err
		}
		return port, nil
	}
}

// newTestLink returns a link on a fresh bus plus a subscription that has
// already consumed the initial snapshot.
func newTestLink(t *testing.T, cfg LinkConfig) (*Link, *Subscription) {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = testPortPath
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 57600
	}
	bus := NewBus(256)
	sub := bus.Subscribe()
	recv(t, sub)

	link := NewLink(cfg, bus)
	t.Cleanup(func() {
		link.Close() //nolint:errcheck
		bus.Close()
	})
	return link, sub
}

// nextStatus skips events until a ConnectionStatus arrives.
func nextStatus(t *testing.T, sub *Subscription) ConnectionStatus {
	t.Helper()
	for {
		if st, ok := recv(t, sub).(ConnectionStatus); ok {
			return st
		}
	}
}

func openTestLink(t *testing.T, port *fakePort) (*Link, *Subscription) {
	t.Helper()
	link, sub := newTestLink(t, LinkConfig{Opener: staticOpener(port, nil)})
	if err := link.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	st := nextStatus(t, sub)
	if !st.Connected {
		t.Fatalf("status after Open = %#v, want connected", st)
	}
	return link, sub
}

func TestLink_Open(t *testing.T) {
	port := newFakePort()
	link, sub := newTestLink(t, LinkConfig{Opener: staticOpener(port, nil)})

	if link.State() != StateClosed {
		t.Fatalf("initial State() = %s, want closed", link.State())
	}
	if err := link.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	st := nextStatus(t, sub)
	want := ConnectionStatus{Connected: true, Message: "port " + testPortPath + " open"}
	if st != want {
		t.Errorf("status = %#v, want %#v", st, want)
	}
	if !link.IsOpen() {
		t.Error("IsOpen() = false after connected status")
	}

	if err := link.Open(context.Background()); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("second Open() error = %v, want ErrAlreadyOpen", err)
	}
}

func TestLink_OpenFailure(t *testing.T) {
	link, sub := newTestLink(t, LinkConfig{Opener: staticOpener(nil, errors.New("no such file or directory"))})

	if err := link.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	st := nextStatus(t, sub)
	want := ConnectionStatus{Connected: false, Message: "error opening serial port: no such file or directory"}
	if st != want {
		t.Errorf("status = %#v, want %#v", st, want)
	}
	link.wg.Wait()
	if link.State() != StateFailed {
		t.Errorf("State() = %s, want failed", link.State())
	}
	if link.Stats().ErrorsTotal != 1 {
		t.Errorf("ErrorsTotal = %d, want 1", link.Stats().ErrorsTotal)
	}

	// Retrying from Failed is the caller's decision and is allowed.
	if err := link.Open(context.Background()); err != nil {
		t.Errorf("Open() from failed error = %v", err)
	}
}

func TestLink_LinesPublishedInOrder(t *testing.T) {
	port := newFakePort()
	_, sub := openTestLink(t, port)

	port.send(t, "SENSOR:OK\r\nENROLL:OK ID=4\nhello\n")

	want := []Event{
		RawMessage{Text: "SENSOR:OK"},
		SensorStatus{OK: true, Message: msgSensorOK},
		RawMessage{Text: "ENROLL:OK ID=4"},
		EnrollStatus{Phase: PhaseSuccess, FingerID: intPtr(4)},
		RawMessage{Text: "hello"},
	}
	for i, w := range want {
		got := recv(t, sub)
		if !eventsEqual(got, w) {
			t.Fatalf("event %d = %#v, want %#v", i, got, w)
		}
	}
}

func TestLink_SensorErrorEventOrder(t *testing.T) {
	port := newFakePort()
	_, sub := openTestLink(t, port)

	port.send(t, "SENSOR:ERROR ENROLL:timeout\n")

	names := []string{recv(t, sub).Name(), recv(t, sub).Name(), recv(t, sub).Name()}
	want := []string{EventRawMessage, EventSensorStatus, EventEnrollStatus}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestLink_LongLineChunked(t *testing.T) {
	port := newFakePort()
	_, sub := openTestLink(t, port)

	long := strings.Repeat("A", 2*MaxLineLength+10)
	port.send(t, long+"\nSENSOR:OK\n")

	for _, wantLen := range []int{MaxLineLength, MaxLineLength, 10} {
		ev := recv(t, sub)
		raw, ok := ev.(RawMessage)
		if !ok {
			t.Fatalf("event = %T, want RawMessage", ev)
		}
		if len(raw.Text) != wantLen {
			t.Fatalf("chunk length = %d, want %d", len(raw.Text), wantLen)
		}
	}
	if ev := recv(t, sub); ev.Name() != EventRawMessage {
		t.Fatalf("event = %s, want raw message for SENSOR:OK", ev.Name())
	}
	if ev := recv(t, sub); ev.Name() != EventSensorStatus {
		t.Fatalf("event = %s, want sensor status after long line", ev.Name())
	}
}

func TestLink_Write(t *testing.T) {
	port := newFakePort()
	link, _ := openTestLink(t, port)

	if err := link.Write(context.Background(), "VERIFY\n"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := link.Write(context.Background(), "ENROLL 3\n"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := port.Written(); got != "VERIFY\nENROLL 3\n" {
		t.Errorf("written = %q", got)
	}
	if n := link.Stats().CommandsTx; n != 2 {
		t.Errorf("CommandsTx = %d, want 2", n)
	}
}

func TestLink_WriteNotOpen(t *testing.T) {
	link, _ := newTestLink(t, LinkConfig{Opener: staticOpener(newFakePort(), nil)})

	if err := link.Write(context.Background(), "VERIFY\n"); !errors.Is(err, ErrLinkUnavailable) {
		t.Errorf("Write() error = %v, want ErrLinkUnavailable", err)
	}
}

func TestLink_WriteCancelledContext(t *testing.T) {
	port := newFakePort()
	link, _ := openTestLink(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := link.Write(ctx, "VERIFY\n"); !errors.Is(err, context.Canceled) {
		t.Errorf("Write() error = %v, want context.Canceled", err)
	}
	if port.Written() != "" {
		t.Errorf("written = %q, want nothing", port.Written())
	}
}

func TestLink_WriteFailureKeepsStatus(t *testing.T) {
	port := newFakePort()
	link, sub := openTestLink(t, port)

	port.setWriteErr(errors.New("i/o error"))
	err := link.Write(context.Background(), "EMPTY\n")
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("Write() error = %v, want ErrWriteFailed", err)
	}
	if !strings.Contains(err.Error(), "i/o error") {
		t.Errorf("error %q does not carry the port error", err)
	}

	if !link.IsOpen() {
		t.Error("link closed after write failure")
	}
	for _, ev := range drain(sub) {
		if _, ok := ev.(ConnectionStatus); ok {
			t.Errorf("unexpected status event %#v after write failure", ev)
		}
	}
	if link.Stats().ErrorsTotal != 1 {
		t.Errorf("ErrorsTotal = %d, want 1", link.Stats().ErrorsTotal)
	}
}

func TestLink_ConcurrentWritesDoNotInterleave(t *testing.T) {
	port := newFakePort()
	link, _ := openTestLink(t, port)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := link.Write(context.Background(), "DELETE 12345\n"); err != nil {
				t.Errorf("Write() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got, want := port.Written(), strings.Repeat("DELETE 12345\n", 20); got != want {
		t.Errorf("written output interleaved: %q", got)
	}
}

func TestLink_DeviceClosesPort(t *testing.T) {
	port := newFakePort()
	link, sub := openTestLink(t, port)

	port.dev.Close()

	st := nextStatus(t, sub)
	want := ConnectionStatus{Connected: false, Message: "serial port closed"}
	if st != want {
		t.Errorf("status = %#v, want %#v", st, want)
	}
	link.wg.Wait()
	if link.State() != StateClosed {
		t.Errorf("State() = %s, want closed", link.State())
	}
	if err := link.Write(context.Background(), "VERIFY\n"); !errors.Is(err, ErrLinkUnavailable) {
		t.Errorf("Write() after close error = %v, want ErrLinkUnavailable", err)
	}
}

func TestLink_ReadError(t *testing.T) {
	port := newFakePort()
	link, sub := openTestLink(t, port)

	port.dev.CloseWithError(errors.New("device unplugged"))

	st := nextStatus(t, sub)
	want := ConnectionStatus{Connected: false, Message: "serial port error: device unplugged"}
	if st != want {
		t.Errorf("status = %#v, want %#v", st, want)
	}
	link.wg.Wait()
	if !port.closed.Load() {
		t.Error("port not closed after read error")
	}
}

func TestLink_Close(t *testing.T) {
	port := newFakePort()
	link, sub := openTestLink(t, port)

	if err := link.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	st := nextStatus(t, sub)
	if st.Connected || st.Message != "serial port closed" {
		t.Errorf("status = %#v, want closed", st)
	}
	if !port.closed.Load() {
		t.Error("port not closed")
	}
	if err := link.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := link.Open(context.Background()); !errors.Is(err, ErrLinkClosed) {
		t.Errorf("Open() after Close error = %v, want ErrLinkClosed", err)
	}
}

func TestLink_OpenCloseConcurrent(t *testing.T) {
	for i := 0; i < 200; i++ {
		var closeReturned, lateOpen atomic.Bool
		var ports []*fakePort
		var portsMu sync.Mutex
		opener := func(string, int) (io.ReadWriteCloser, error) {
			if closeReturned.Load() {
				lateOpen.Store(true)
			}
			p := newFakePort()
			portsMu.Lock()
			ports = append(ports, p)
			portsMu.Unlock()
			return p, nil
		}

		bus := NewBus(16)
		link := NewLink(LinkConfig{Path: testPortPath, BaudRate: 57600, Opener: opener}, bus)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := link.Open(context.Background())
			if err != nil && !errors.Is(err, ErrLinkClosed) {
				t.Errorf("Open() error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			link.Close() //nolint:errcheck
			closeReturned.Store(true)
		}()
		wg.Wait()

		if lateOpen.Load() {
			t.Fatalf("iteration %d: port opened after Close returned", i)
		}
		portsMu.Lock()
		for _, p := range ports {
			if !p.closed.Load() {
				t.Errorf("iteration %d: port left open after Close", i)
			}
		}
		portsMu.Unlock()
		bus.Close()
	}
}

func TestLink_Reconnect(t *testing.T) {
	port := newFakePort()
	var calls atomic.Int32
	opener := func(string, int) (io.ReadWriteCloser, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("busy")
		}
		return port, nil
	}

	link, sub := newTestLink(t, LinkConfig{
		Opener:                opener,
		Reconnect:             true,
		ReconnectInitialDelay: 10 * time.Millisecond,
		ReconnectMaxDelay:     20 * time.Millisecond,
	})
	if err := link.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if st := nextStatus(t, sub); st.Connected {
		t.Fatalf("first status = %#v, want open failure", st)
	}
	if st := nextStatus(t, sub); !st.Connected {
		t.Fatalf("second status = %#v, want connected", st)
	}
	if n := link.Stats().ReconnectsTotal; n != 1 {
		t.Errorf("ReconnectsTotal = %d, want 1", n)
	}
}

func TestLink_NoReconnectByDefault(t *testing.T) {
	var calls atomic.Int32
	opener := func(string, int) (io.ReadWriteCloser, error) {
		calls.Add(1)
		return nil, errors.New("busy")
	}
	link, sub := newTestLink(t, LinkConfig{Opener: opener, ReconnectInitialDelay: time.Millisecond})
	if err := link.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	nextStatus(t, sub)
	link.wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("opener called %d times, want 1", n)
	}
}

func TestLink_Stats(t *testing.T) {
	port := newFakePort()
	link, sub := openTestLink(t, port)

	port.send(t, "VERIFY:START\n")
	recv(t, sub)
	recv(t, sub)

	s := link.Stats()
	if s.Path != testPortPath || s.State != StateOpen || !s.Connected {
		t.Errorf("Stats() = %+v", s)
	}
	if s.LinesRx != 1 {
		t.Errorf("LinesRx = %d, want 1", s.LinesRx)
	}
	if s.LastActivity.IsZero() {
		t.Error("LastActivity not set")
	}
}

func TestLink_Defaults(t *testing.T) {
	link := NewLink(LinkConfig{Path: "/dev/x", BaudRate: 9600}, NewBus(1))
	if link.cfg.Opener == nil {
		t.Error("Opener default not applied")
	}
	if link.cfg.ReconnectInitialDelay != defaultReconnectInitialDelay {
		t.Errorf("ReconnectInitialDelay = %v", link.cfg.ReconnectInitialDelay)
	}
	if link.cfg.ReconnectMaxDelay != defaultReconnectMaxDelay {
		t.Errorf("ReconnectMaxDelay = %v", link.cfg.ReconnectMaxDelay)
	}
	if link.Path() != "/dev/x" {
		t.Errorf("Path() = %q", link.Path())
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateClosed:  "closed",
		StateOpening: "opening",
		StateOpen:    "open",
		StateFailed:  "failed",
		State(9):     "state(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int32(s), got, want)
		}
	}
}

func TestSplitLines(t *testing.T) {
	split := splitLines(4)
	tests := []struct {
		name    string
		data    string
		atEOF   bool
		advance int
		token   string
	}{
		{"full line", "ab\ncd", false, 3, "ab"},
		{"need more", "abc", false, 0, ""},
		{"newline at limit", "abcd\n", false, 5, "abcd"},
		{"over limit", "abcdef", false, 4, "abcd"},
		{"tail at EOF", "ab", true, 2, "ab"},
		{"empty at EOF", "", true, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advance, token, err := split([]byte(tt.data), tt.atEOF)
			if err != nil {
				t.Fatalf("split() error = %v", err)
			}
			if advance != tt.advance || string(token) != tt.token {
				t.Errorf("split(%q) = (%d, %q), want (%d, %q)", tt.data, advance, token, tt.advance, tt.token)
			}
		})
	}
}

// eventsEqual compares events including pointer fields by value.
func eventsEqual(a, b Event) bool {
	if a.Name() != b.Name() {
		return false
	}
	pa, errA := json.Marshal(a.Payload())
	pb, errB := json.Marshal(b.Payload())
	return errA == nil && errB == nil && bytes.Equal(pa, pb)
}
