package transport

import (
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/sauerbraten/arena/pkg/protocol"
)

// Welcome is the first packet a server sends to a new client over a socket
// transport. It tells the client its peer id.
func Welcome(id PeerID) protocol.Packet {
	return protocol.EncodeMessage(protocol.ServerInfo{PeerID: int32(id)})
}

// ParseWelcome reads the peer id out of the server's first packet.
func ParseWelcome(p protocol.Packet) (PeerID, error) {
	m, err := protocol.DecodeMessage(p)
	if err != nil {
		return NoPeer, err
	}
	info, ok := m.(protocol.ServerInfo)
	if !ok {
		return NoPeer, fmt.Errorf("expected %s, got %s: %w", protocol.ServerInfo{}.Code(), m.Code(), protocol.ErrMalformed)
	}
	if PeerID(info.PeerID) <= ServerID {
		return NoPeer, fmt.Errorf("invalid peer id %d: %w", info.PeerID, protocol.ErrMalformed)
	}
	return PeerID(info.PeerID), nil
}

// Registry hands out client peer ids on a server and maps them to the
// connection handles K of a socket transport.
type Registry[K comparable] struct {
	mu     sync.Mutex
	nextID PeerID
	ids    map[K]PeerID
	conns  map[PeerID]K
	ips    map[PeerID]net.IP
}

func NewRegistry[K comparable]() *Registry[K] {
	return &Registry[K]{
		nextID: ServerID + 1,
		ids:    map[K]PeerID{},
		conns:  map[PeerID]K{},
		ips:    map[PeerID]net.IP{},
	}
}

func (r *Registry[K]) Add(conn K, ip net.IP) PeerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.ids[conn] = id
	r.conns[id] = conn
	r.ips[id] = ip
	return id
}

func (r *Registry[K]) Remove(conn K) (PeerID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.ids[conn]
	if !ok {
		return NoPeer, false
	}
	delete(r.ids, conn)
	delete(r.conns, id)
	delete(r.ips, id)
	return id, true
}

func (r *Registry[K]) ID(conn K) (PeerID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ids[conn]
	return id, ok
}

func (r *Registry[K]) Conn(id PeerID) (K, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry[K]) IP(id PeerID) net.IP {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ips[id]
}

// IDs returns the registered peer ids in ascending order.
func (r *Registry[K]) IDs() []PeerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]PeerID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry[K]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
