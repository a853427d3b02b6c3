package transport

import (
	"sort"
	"sync"

	"github.com/sauerbraten/arena/pkg/protocol"
	"github.com/sauerbraten/arena/pkg/protocol/disconnectreason"
)

const loopbackQueueSize = 1024

// Network connects in-process Loopback transports. It is used for local
// play and for exercising multi-peer sessions without sockets.
type Network struct {
	mu     sync.Mutex
	nextID PeerID
	server *Loopback
	nodes  map[PeerID]*Loopback
}

func NewNetwork() *Network {
	return &Network{
		nextID: ServerID + 1,
		nodes:  map[PeerID]*Loopback{},
	}
}

// Listen creates the server end of the network.
func (n *Network) Listen() (*Loopback, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.server != nil {
		return nil, ErrClosed
	}

	n.server = newLoopback(n, ServerID)
	n.nodes[ServerID] = n.server
	return n.server, nil
}

// Connect creates a client. Without a listening server the client stays
// pending forever, like a handshake nobody answers.
func (n *Network) Connect() *Loopback {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.server == nil {
		return newLoopback(n, NoPeer)
	}

	id := n.nextID
	n.nextID++

	c := newLoopback(n, id)
	n.nodes[id] = c

	n.server.push(Event{Type: Connected, Peer: id})
	c.push(Event{Type: Connected, Peer: ServerID})

	return c
}

// Loopback is one end of a Network.
type Loopback struct {
	network *Network
	id      PeerID
	events  chan Event
	closed  bool
}

var _ Transport = (*Loopback)(nil)

func newLoopback(n *Network, id PeerID) *Loopback {
	return &Loopback{
		network: n,
		id:      id,
		events:  make(chan Event, loopbackQueueSize),
	}
}

func (l *Loopback) push(e Event) {
	if l.closed {
		return
	}
	l.events <- e
}

func (l *Loopback) LocalID() PeerID { return l.id }

func (l *Loopback) IsServer() bool { return l.id == ServerID }

func (l *Loopback) Events() <-chan Event { return l.events }

func (l *Loopback) Peers() []PeerID {
	n := l.network
	n.mu.Lock()
	defer n.mu.Unlock()

	if l.closed || n.nodes[l.id] != l {
		return nil
	}

	if !l.IsServer() {
		if n.server == nil {
			return nil
		}
		return []PeerID{ServerID}
	}

	peers := make([]PeerID, 0, len(n.nodes))
	for id := range n.nodes {
		if id != ServerID {
			peers = append(peers, id)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return peers
}

func (l *Loopback) Send(to PeerID, p protocol.Packet) error {
	n := l.network
	n.mu.Lock()
	defer n.mu.Unlock()

	if l.closed || n.nodes[l.id] != l {
		return ErrClosed
	}

	// star topology: clients only reach the server
	if !l.IsServer() && to != ServerID {
		return ErrUnknownPeer
	}

	dst, ok := n.nodes[to]
	if !ok || dst == l {
		return ErrUnknownPeer
	}

	dst.push(Event{Type: Received, Peer: l.id, Packet: append(protocol.Packet(nil), p...)})
	return nil
}

func (l *Loopback) Disconnect(id PeerID, reason disconnectreason.ID) {
	n := l.network
	n.mu.Lock()
	defer n.mu.Unlock()

	if l.IsServer() {
		n.drop(id, reason)
	} else if id == ServerID {
		n.drop(l.id, reason)
	}
}

func (l *Loopback) Close() error {
	n := l.network
	n.mu.Lock()
	defer n.mu.Unlock()

	if l.closed {
		return nil
	}

	if l.IsServer() {
		for id := range n.nodes {
			if id != ServerID {
				n.drop(id, disconnectreason.Shutdown)
			}
		}
		delete(n.nodes, ServerID)
		n.server = nil
	} else if l.id != NoPeer {
		n.drop(l.id, disconnectreason.None)
	}

	l.closed = true
	close(l.events)
	return nil
}

// drop severs the link between the server and client id, notifying both ends.
// not safe for concurrent use
func (n *Network) drop(id PeerID, reason disconnectreason.ID) {
	c, ok := n.nodes[id]
	if !ok || id == ServerID {
		return
	}
	delete(n.nodes, id)

	c.push(Event{Type: Disconnected, Peer: ServerID, Reason: reason})
	n.server.push(Event{Type: Disconnected, Peer: id, Reason: reason})
}
