package core

import "github.com/google/uuid"

// Client is one admitted connection as seen by the hub. Two logins of the
// same user produce two distinct clients; ConnID tells them apart after the
// registry entry has been superseded.
type Client struct {
	ConnID   string
	Identity Identity
	Events   chan *Event

	closeConn func()
}

// NewClient constructs a client with an initialized event channel. closeConn,
// when non-nil, force-closes the underlying transport; the liveness sweep
// uses it to collect half-open connections.
func NewClient(identity Identity, closeConn func()) *Client {
	return &Client{
		ConnID:    uuid.NewString(),
		Identity:  identity,
		Events:    make(chan *Event, 16),
		closeConn: closeConn,
	}
}

func (c *Client) push(ev *Event) {
	select {
	case c.Events <- ev:
	default:
		// Drop if slow consumer.
	}
}
