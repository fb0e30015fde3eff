package transport

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeDeadline = 10 * time.Second
	readDeadline  = 5 * time.Minute
	outboundQueue = 64
)

// Conn wraps one gateway websocket connection. All writes funnel
// through a single pump goroutine so events from concurrent flows
// never interleave on the wire.
type Conn struct {
	ws     *websocket.Conn
	out    chan any
	closed chan struct{}
	logger zerolog.Logger
}

func newConn(ws *websocket.Conn, logger zerolog.Logger) *Conn {
	c := &Conn{
		ws:     ws,
		out:    make(chan any, outboundQueue),
		closed: make(chan struct{}),
		logger: logger,
	}
	go c.writePump()
	return c
}

func (c *Conn) writePump() {
	for {
		select {
		case v := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteJSON(v); err != nil {
				c.logger.Warn().Err(err).Msg("gateway write failed")
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// enqueue hands an event to the write pump without blocking; a full
// queue means the gateway stopped draining and the write is refused.
func (c *Conn) enqueue(v any) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.out <- v:
		return true
	default:
		return false
	}
}

// ReadJSON decodes the next inbound frame, refreshing the read
// deadline first.
func (c *Conn) ReadJSON(v any) error {
	c.ws.SetReadDeadline(time.Now().Add(readDeadline))
	return c.ws.ReadJSON(v)
}

// WriteError pushes a typed error event to the gateway.
func (c *Conn) WriteError(msg string) {
	c.enqueue(ErrorEvent{Event: EventError, Error: msg})
}

func (c *Conn) close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
		c.ws.Close()
	}
}
