package ws

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sauerbraten/arena/internal/transport"
	"github.com/sauerbraten/arena/pkg/protocol"
	"github.com/sauerbraten/arena/pkg/protocol/disconnectreason"
)

// Client is a WebSocket connection to a Server.
type Client struct {
	c      *conn
	log    *zap.Logger
	events chan transport.Event

	mu      sync.Mutex
	localID transport.PeerID
	joined  bool
}

var _ transport.Transport = (*Client)(nil)

// Dial connects to url, e.g. ws://host:port/ws. Connected is emitted once
// the server told this client its peer id.
func Dial(url string, log *zap.Logger) (*Client, error) {
	wsConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dialing %s: %w", url, err)
	}

	cl := &Client{
		c:      newConn(wsConn),
		log:    log,
		events: make(chan transport.Event, sendBacklog),
	}
	go cl.readLoop()
	return cl, nil
}

func (cl *Client) readLoop() {
	defer close(cl.events)

	for {
		_, data, err := cl.c.ws.ReadMessage()
		if err != nil {
			cl.lost(reasonOf(err))
			return
		}

		cl.mu.Lock()
		joined := cl.joined
		cl.mu.Unlock()

		if joined {
			cl.events <- transport.Event{Type: transport.Received, Peer: transport.ServerID, Packet: data}
			continue
		}

		id, err := transport.ParseWelcome(data)
		if err != nil {
			cl.log.Warn("ws: bad welcome from server", zap.Error(err))
			cl.c.close(disconnectreason.MessageError)
			cl.lost(disconnectreason.MessageError)
			return
		}

		cl.mu.Lock()
		cl.localID, cl.joined = id, true
		cl.mu.Unlock()
		cl.events <- transport.Event{Type: transport.Connected, Peer: transport.ServerID}
	}
}

func (cl *Client) lost(reason disconnectreason.ID) {
	cl.mu.Lock()
	cl.joined = false
	cl.mu.Unlock()
	cl.c.close(disconnectreason.None)
	cl.events <- transport.Event{Type: transport.Disconnected, Peer: transport.ServerID, Reason: reason}
}

func (cl *Client) LocalID() transport.PeerID {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.localID
}

func (cl *Client) IsServer() bool { return false }

func (cl *Client) Peers() []transport.PeerID {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if !cl.joined {
		return nil
	}
	return []transport.PeerID{transport.ServerID}
}

func (cl *Client) Send(to transport.PeerID, p protocol.Packet) error {
	if to != transport.ServerID {
		return transport.ErrUnknownPeer
	}
	cl.mu.Lock()
	joined := cl.joined
	cl.mu.Unlock()
	if !joined {
		return transport.ErrClosed
	}
	return cl.c.send(p)
}

func (cl *Client) Disconnect(id transport.PeerID, reason disconnectreason.ID) {
	if id == transport.ServerID {
		cl.c.close(reason)
	}
}

func (cl *Client) Events() <-chan transport.Event { return cl.events }

func (cl *Client) Close() error {
	cl.c.close(disconnectreason.None)
	return nil
}
