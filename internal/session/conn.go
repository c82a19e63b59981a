// Package session implements the streaming session protocol: the duplex
// connection to the backend and the controller that orchestrates frames,
// chat messages, and reconnection.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/supreme-gg-gg/multiflex/internal/protocol"
)

// ConnState tracks the transport lifecycle of one connection instance.
type ConnState int

const (
	// StateConnecting means the dial is in flight; the link is not usable.
	StateConnecting ConnState = iota
	// StateOpen means the link is usable.
	StateOpen
	// StateClosed is terminal for this instance; a replacement must be a
	// fresh Conn.
	StateClosed
)

// maxFrameSize bounds an inbound frame. Generated documents with inlined
// styles run large, so this is well above the library default.
const maxFrameSize = 8 << 20

// Events receives connection lifecycle callbacks. Callbacks fire from the
// connection's read goroutine, serially ordered.
type Events struct {
	OnOpen    func()
	OnMessage func(raw []byte)
	OnError   func(err error)
	// OnClose fires once when the connection leaves service. code is
	// websocket.StatusNormalClosure for clean teardown and some other
	// status (or -1 when no close frame was seen) otherwise.
	OnClose func(code websocket.StatusCode)
}

// Conn owns one websocket connection for its lifetime. Opening is
// asynchronous: nothing may assume the link is usable until OnOpen fires.
type Conn struct {
	mu         sync.Mutex
	ws         *websocket.Conn
	state      ConnState
	localClose bool
	cancel     context.CancelFunc
}

// Dialer opens a connection; it exists so tests can substitute transports.
type Dialer func(ctx context.Context, url string, ev Events) *Conn

// Dial starts connecting to url and returns immediately. Lifecycle is
// reported through ev.
func Dial(ctx context.Context, url string, ev Events) *Conn {
	ctx, cancel := context.WithCancel(ctx)
	c := &Conn{state: StateConnecting, cancel: cancel}

	go c.run(ctx, url, ev)
	return c
}

func (c *Conn) run(ctx context.Context, url string, ev Events) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		slog.Warn("Connection dial failed", "url", url, "error", err)
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		if ev.OnError != nil {
			ev.OnError(err)
		}
		if ev.OnClose != nil {
			ev.OnClose(websocket.StatusAbnormalClosure)
		}
		return
	}
	ws.SetReadLimit(maxFrameSize)

	c.mu.Lock()
	if c.localClose {
		// Closed while the dial was in flight.
		c.mu.Unlock()
		_ = ws.Close(websocket.StatusNormalClosure, "superseded")
		return
	}
	c.ws = ws
	c.state = StateOpen
	c.mu.Unlock()

	if ev.OnOpen != nil {
		ev.OnOpen()
	}

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			code := websocket.CloseStatus(err)
			c.mu.Lock()
			local := c.localClose
			c.state = StateClosed
			c.mu.Unlock()

			if local {
				// Teardown we initiated; the close callback still fires with
				// the normal code so owners can observe the transition.
				code = websocket.StatusNormalClosure
			} else if code == -1 {
				slog.Warn("Connection read failed", "error", err)
				code = websocket.StatusAbnormalClosure
			}
			if ev.OnClose != nil {
				ev.OnClose(code)
			}
			return
		}
		if ev.OnMessage != nil {
			ev.OnMessage(data)
		}
	}
}

// State returns the current transport state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send encodes and writes an outbound message. Sending while the link is
// not open is a logged no-op, never an error to the caller.
func (c *Conn) Send(ctx context.Context, v any) error {
	c.mu.Lock()
	ws := c.ws
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open {
		slog.Warn("Send dropped: connection not open")
		return nil
	}

	data, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

// Close tears the connection down with a normal closure code. It is
// idempotent and suppresses the abnormal-close path in the read loop.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.localClose {
		c.mu.Unlock()
		return
	}
	c.localClose = true
	ws := c.ws
	c.state = StateClosed
	c.mu.Unlock()

	if ws != nil {
		if err := ws.Close(websocket.StatusNormalClosure, "session ended"); err != nil {
			slog.Debug("Failed to close websocket", "error", err)
		}
	}
	c.cancel()
}
