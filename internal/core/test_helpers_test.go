package core

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func startHub(t *testing.T, opts HubOptions) *Hub {
	t.Helper()

	hub := NewHub(nil, opts)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func newTestClient(id, name string, role Role) *Client {
	return NewClient(Identity{UserID: id, UserName: name, UserRole: role}, nil)
}

func admit(t *testing.T, hub *Hub, c *Client) {
	t.Helper()

	if err := hub.Admit(c); err != nil {
		t.Fatalf("admit %s: %v", c.Identity.UserID, err)
	}
	mustEvent(t, c.Events, EventWelcome)
}

// forceSweep runs one sweep pass on the hub goroutine and waits for it.
func forceSweep(hub *Hub) {
	done := make(chan struct{})
	hub.inbox <- envelope{fn: func() {
		hub.sweep()
		close(done)
	}}
	<-done
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// requireNoEvent fails if a buffered event of the given kind is waiting.
func requireNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			return
		}
	}
}

func testClock() *clock.Mock {
	return clock.NewMock()
}
