// Package transport implements the host-platform push channel named
// in spec §9 Design Notes: "model this as a message bus abstraction
// with two concrete transports: in-process channels between
// co-located components, and a host-platform push channel between
// processes. Keep the typed message contract identical across both."
// This file is the cross-process transport, backed by a websocket
// connection per observer.
package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chunkynosher/quicktabs/internal/broadcast"
	"github.com/chunkynosher/quicktabs/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn wraps one observer's websocket connection as a broadcast.Target
// sink, and as an inbound envelope source for the caller's dispatch
// loop.
type Conn struct {
	id     broadcast.ObserverID
	ws     *websocket.Conn
	logger logging.Logger

	writeMu sync.Mutex
}

// NewConn wraps an already-upgraded websocket connection.
func NewConn(id broadcast.ObserverID, ws *websocket.Conn, logger logging.Logger) *Conn {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Conn{id: id, ws: ws, logger: logger}
}

// Target returns the broadcast.Target this connection fulfills:
// Broadcaster.Broadcast calls Send directly, isolated from every
// other target's failure (spec §4.6).
func (c *Conn) Target() broadcast.Target {
	return broadcast.Target{ID: c.id, Send: c.Send}
}

// Send writes one framed message to the observer. Safe for concurrent
// use; gorilla/websocket requires a single writer at a time, hence the
// mutex.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(3 * time.Second)
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// ReadLoop blocks reading inbound envelopes (raw JSON bytes) and
// invokes handle for each one, until the connection closes or ctx is
// canceled. Callers run this in its own goroutine per connection.
func (c *Conn) ReadLoop(ctx context.Context, handle func(payload []byte)) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Debug("transport: connection closed", logging.Err(err))
			return
		}
		handle(payload)
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.ws.Close() }

// Upgrade upgrades an HTTP request to a websocket connection and wraps
// it as a Conn bound to id.
func Upgrade(w http.ResponseWriter, r *http.Request, id broadcast.ObserverID, logger logging.Logger) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(id, ws, logger), nil
}

// Dial connects to a push-channel endpoint as a client observer (used
// by non-browser test harnesses and the demo binary; a real browser
// extension's content script would use the host platform's own
// runtime messaging instead of this transport directly).
func Dial(ctx context.Context, url string, id broadcast.ObserverID, logger logging.Logger) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(id, ws, logger), nil
}
