package core

import "sync"

// outBuffer is the per-client send queue depth. A client that cannot drain
// this many frames is considered too slow and starts losing frames rather
// than stalling the room.
const outBuffer = 64

// Client is one realtime session attached to the hub. The transport layer
// reads frames from Out and submits decoded commands through the hub; the
// hub owns all other fields.
type Client struct {
	id  string
	out chan []byte

	closeOnce sync.Once

	// Session state below is touched only by the hub loop.
	username string
	avatar   string
	color    string
}

// NewClient creates a detached client with the given session id.
func NewClient(id string) *Client {
	return &Client{
		id:  id,
		out: make(chan []byte, outBuffer),
	}
}

// ID returns the session id.
func (c *Client) ID() string { return c.id }

// Out is the channel of encoded frames for the transport to write out.
// It is closed when the hub releases the client.
func (c *Client) Out() <-chan []byte { return c.out }

// enqueue offers a frame to the client without blocking the hub. It reports
// false when the client's queue is full and the frame was dropped.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.out <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) closeOut() {
	c.closeOnce.Do(func() { close(c.out) })
}
