package transport

import (
	"errors"

	"github.com/sauerbraten/arena/pkg/protocol"
	"github.com/sauerbraten/arena/pkg/protocol/disconnectreason"
)

// PeerID identifies a participant of a session. The server is always 1,
// clients are numbered from 2 upward in connection order.
type PeerID int32

const (
	NoPeer   PeerID = 0
	ServerID PeerID = 1
)

var (
	ErrUnknownPeer = errors.New("no such peer")
	ErrClosed      = errors.New("transport closed")
)

type EventType int

const (
	// On a server: a client finished connecting. On a client: the server
	// assigned this process its peer id.
	Connected EventType = iota
	Disconnected
	Received
)

func (t EventType) String() string {
	switch t {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Received:
		return "received"
	default:
		return "unknown"
	}
}

type Event struct {
	Type   EventType
	Peer   PeerID
	Packet protocol.Packet
	Reason disconnectreason.ID
}

// Transport is a reliable, ordered, star-shaped message channel: clients only
// talk to the server, the server talks to every client.
type Transport interface {
	LocalID() PeerID
	IsServer() bool
	// Connected remote peers. Always {ServerID} on a connected client.
	Peers() []PeerID
	Send(to PeerID, p protocol.Packet) error
	Disconnect(id PeerID, reason disconnectreason.ID)
	Events() <-chan Event
	Close() error
}
