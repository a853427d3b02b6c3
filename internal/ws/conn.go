// Package ws implements the session transport over WebSockets, for browser
// clients and networks where UDP is blocked. Packets are sent as binary
// messages in the same encoding ENet carries.
package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sauerbraten/arena/pkg/protocol"
	"github.com/sauerbraten/arena/pkg/protocol/disconnectreason"
)

const (
	sendBacklog  = 256
	writeTimeout = 5 * time.Second
	// close codes 4000-4999 are reserved for applications
	closeCodeBase = 4000
)

var (
	errBacklogFull = errors.New("ws: send backlog full")
	errConnClosed  = errors.New("ws: connection closed")
)

// conn serializes writes to one websocket. A close is queued behind the
// packets already accepted by send, so they reach the remote end first.
type conn struct {
	ws  *websocket.Conn
	out chan protocol.Packet

	closing   chan struct{} // closed once close was called
	done      chan struct{} // closed once the socket is gone
	reason    disconnectreason.ID
	closeOnce sync.Once
	doneOnce  sync.Once
}

func newConn(c *websocket.Conn) *conn {
	cn := &conn{
		ws:      c,
		out:     make(chan protocol.Packet, sendBacklog),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go cn.writeLoop()
	return cn
}

func (c *conn) writeLoop() {
	for {
		select {
		case p := <-c.out:
			if !c.write(p) {
				c.teardown()
				return
			}
		case <-c.closing:
			c.flush()
			msg := websocket.FormatCloseMessage(closeCodeBase+int(c.reason), c.reason.String())
			c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
			c.teardown()
			return
		}
	}
}

func (c *conn) write(p protocol.Packet) bool {
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.BinaryMessage, p) == nil
}

// flush writes whatever send queued before the close.
func (c *conn) flush() {
	for {
		select {
		case p := <-c.out:
			if !c.write(p) {
				return
			}
		default:
			return
		}
	}
}

func (c *conn) teardown() {
	c.doneOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *conn) send(p protocol.Packet) error {
	select {
	case <-c.closing:
		return errConnClosed
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.out <- p:
		return nil
	default:
		return errBacklogFull
	}
}

// close tells the remote end why and tears the connection down once the
// queued packets are written. It does not block.
func (c *conn) close(reason disconnectreason.ID) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.closing)
	})
}

// closedWith reports the reason passed to close, if close was called.
func (c *conn) closedWith() (disconnectreason.ID, bool) {
	select {
	case <-c.closing:
		return c.reason, true
	default:
		return disconnectreason.None, false
	}
}

// reasonOf maps a read error back to the reason the remote end gave.
func reasonOf(err error) disconnectreason.ID {
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code >= closeCodeBase && ce.Code < closeCodeBase+1000 {
		return disconnectreason.ID(ce.Code - closeCodeBase)
	}
	return disconnectreason.None
}
