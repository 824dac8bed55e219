package fingerprint

import (
	"sync"
	"testing"
	"time"
)

// recv reads one event or fails after a short wait.
func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// drain returns every event currently queued on sub.
func drain(sub *Subscription) []Event {
	var events []Event
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestBus_SubscribeDeliversSnapshot(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	sub := bus.Subscribe()
	got := drain(sub)
	want := ConnectionStatus{Connected: false, Message: "disconnected"}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("initial events = %#v, want [%#v]", got, want)
	}

	bus.Publish(ConnectionStatus{Connected: true, Message: "port /dev/ttyUSB0 open"})

	late := bus.Subscribe()
	got = drain(late)
	want = ConnectionStatus{Connected: true, Message: "connected"}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("late subscriber events = %#v, want [%#v]", got, want)
	}
}

func TestBus_NoReplay(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	bus.Publish(RawMessage{Text: "before"})
	bus.Publish(SensorStatus{OK: true})

	sub := bus.Subscribe()
	got := drain(sub)
	if len(got) != 1 {
		t.Fatalf("late subscriber got %d events, want only the status snapshot", len(got))
	}
	if _, ok := got[0].(ConnectionStatus); !ok {
		t.Errorf("first event = %T, want ConnectionStatus", got[0])
	}
}

func TestBus_PerSubscriberOrder(t *testing.T) {
	bus := NewBus(128)
	defer bus.Close()

	a := bus.Subscribe()
	b := bus.Subscribe()
	drain(a)
	drain(b)

	for i := range 50 {
		bus.Publish(RawMessage{Text: string(rune('A' + i%26))})
	}

	for _, sub := range []*Subscription{a, b} {
		got := drain(sub)
		if len(got) != 50 {
			t.Fatalf("got %d events, want 50", len(got))
		}
		for i, ev := range got {
			want := string(rune('A' + i%26))
			if ev.(RawMessage).Text != want {
				t.Fatalf("event %d = %q, want %q", i, ev.(RawMessage).Text, want)
			}
		}
	}
}

func TestBus_DropOldest(t *testing.T) {
	bus := NewBus(3)
	defer bus.Close()

	sub := bus.Subscribe() // snapshot occupies one slot
	for _, text := range []string{"1", "2", "3", "4"} {
		bus.Publish(RawMessage{Text: text})
	}

	got := drain(sub)
	if len(got) != 3 {
		t.Fatalf("queued = %d, want 3", len(got))
	}
	for i, want := range []string{"2", "3", "4"} {
		if got[i].(RawMessage).Text != want {
			t.Errorf("event %d = %#v, want %q", i, got[i], want)
		}
	}
	if sub.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", sub.Dropped())
	}
	if s := bus.Stats(); s.Dropped != 2 {
		t.Errorf("Stats().Dropped = %d, want 2", s.Dropped)
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()
	_ = bus.Subscribe() // never read

	done := make(chan struct{})
	go func() {
		for range 1000 {
			bus.Publish(RawMessage{Text: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	sub := bus.Subscribe()
	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub) // second call is a no-op
	bus.Unsubscribe(nil)

	drain(sub)
	if _, ok := <-sub.Events(); ok {
		t.Error("channel still open after Unsubscribe")
	}
	if n := bus.Stats().Subscribers; n != 0 {
		t.Errorf("Subscribers = %d, want 0", n)
	}

	bus.Publish(RawMessage{Text: "after"}) // must not panic on closed channel
}

func TestBus_Close(t *testing.T) {
	bus := NewBus(4)
	sub := bus.Subscribe()
	bus.Close()

	drain(sub)
	if _, ok := <-sub.Events(); ok {
		t.Error("channel still open after Close")
	}

	late := bus.Subscribe()
	if _, ok := <-late.Events(); ok {
		t.Error("subscription after Close should be closed")
	}
}

func TestBus_StatusAndStats(t *testing.T) {
	bus := NewBus(0)
	if bus.buffer != DefaultSubscriberBuffer {
		t.Errorf("buffer = %d, want %d", bus.buffer, DefaultSubscriberBuffer)
	}

	status := ConnectionStatus{Connected: true, Message: "port x open"}
	bus.PublishStatus(status)
	if got := bus.Status(); got != status {
		t.Errorf("Status() = %#v, want %#v", got, status)
	}

	bus.Subscribe()
	bus.Publish(RawMessage{Text: "a"})
	s := bus.Stats()
	if s.Subscribers != 1 || s.Published != 2 {
		t.Errorf("Stats() = %+v, want 1 subscriber, 2 published", s)
	}
}

func TestBus_ConcurrentSubscribePublish(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := bus.Subscribe()
			if _, ok := <-sub.Events(); !ok {
				t.Error("subscription closed before first event")
			}
			bus.Unsubscribe(sub)
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				bus.Publish(RawMessage{Text: "x"})
			}
		}()
	}
	wg.Wait()
}
