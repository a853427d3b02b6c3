// Package enet implements the session transport on top of ENet, a reliable
// UDP protocol. One goroutine owns the ENet host; everything else talks to it
// through channels.
package enet

import (
	"fmt"
	"net"
	"sync"
	"time"

	goenet "github.com/codecat/go-enet"
	"go.uber.org/zap"

	"github.com/sauerbraten/arena/internal/transport"
	"github.com/sauerbraten/arena/pkg/protocol"
	"github.com/sauerbraten/arena/pkg/protocol/disconnectreason"
)

const (
	channels     = 1
	channel      = 0
	serviceWait  = 5 // ms
	eventBacklog = 256
	outBacklog   = 1024
)

var initOnce sync.Once

func initialize() {
	initOnce.Do(func() { goenet.Initialize() })
}

type command struct {
	to      transport.PeerID
	packet  protocol.Packet
	kick    bool
	reason  disconnectreason.ID
	closing chan struct{}
}

// Host is an ENet server or client.
type Host struct {
	host   goenet.Host
	server bool
	log    *zap.Logger

	out    chan command
	events chan transport.Event
	done   chan struct{}

	// owned by run
	pending *eventQueue

	// server side
	peers *transport.Registry[goenet.Peer]

	// client side
	mu       sync.Mutex
	localID  transport.PeerID
	upstream goenet.Peer
	joined   bool

	closeOnce sync.Once
}

var _ transport.Transport = (*Host)(nil)

// Listen starts a server accepting up to maxClients clients on port.
func Listen(port int, maxClients int, log *zap.Logger) (*Host, error) {
	initialize()

	host, err := goenet.NewHost(goenet.NewListenAddress(uint16(port)), uint64(maxClients), channels, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("enet: listening on port %d: %w", port, err)
	}

	h := newHost(host, true, log)
	h.localID = transport.ServerID
	h.peers = transport.NewRegistry[goenet.Peer]()
	go h.run()
	return h, nil
}

// Dial starts connecting to a server. Connected is emitted once the server
// told this client its peer id.
func Dial(addr string, port int, log *zap.Logger) (*Host, error) {
	initialize()

	host, err := goenet.NewHost(nil, 1, channels, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("enet: creating client host: %w", err)
	}

	peer, err := host.Connect(goenet.NewAddress(addr, uint16(port)), channels, 0)
	if err != nil {
		host.Destroy()
		return nil, fmt.Errorf("enet: connecting to %s:%d: %w", addr, port, err)
	}

	h := newHost(host, false, log)
	h.upstream = peer
	go h.run()
	return h, nil
}

func newHost(host goenet.Host, server bool, log *zap.Logger) *Host {
	events := make(chan transport.Event, eventBacklog)
	return &Host{
		host:   host,
		server: server,
		log:    log,
		out:    make(chan command, outBacklog),
		events: events,
		done:   make(chan struct{}),

		pending: newEventQueue(events),
	}
}

func (h *Host) LocalID() transport.PeerID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.localID
}

func (h *Host) IsServer() bool { return h.server }

func (h *Host) Peers() []transport.PeerID {
	if h.server {
		return h.peers.IDs()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.joined {
		return nil
	}
	return []transport.PeerID{transport.ServerID}
}

// RemoteIP returns the address a client connected from.
func (h *Host) RemoteIP(id transport.PeerID) net.IP {
	if !h.server {
		return nil
	}
	return h.peers.IP(id)
}

func (h *Host) Send(to transport.PeerID, p protocol.Packet) error {
	if !h.known(to) {
		return transport.ErrUnknownPeer
	}
	return h.enqueue(command{to: to, packet: p})
}

func (h *Host) Disconnect(id transport.PeerID, reason disconnectreason.ID) {
	if !h.known(id) {
		return
	}
	h.enqueue(command{to: id, kick: true, reason: reason})
}

func (h *Host) Events() <-chan transport.Event { return h.events }

// Close disconnects every peer and releases the ENet host.
func (h *Host) Close() error {
	h.closeOnce.Do(func() {
		closing := make(chan struct{})
		select {
		case h.out <- command{closing: closing}:
			<-closing
		case <-h.done:
		}
	})
	return nil
}

func (h *Host) known(id transport.PeerID) bool {
	if h.server {
		_, ok := h.peers.Conn(id)
		return ok
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.joined && id == transport.ServerID
}

func (h *Host) enqueue(c command) error {
	select {
	case <-h.done:
		return transport.ErrClosed
	default:
	}
	select {
	case h.out <- c:
		return nil
	case <-h.done:
		return transport.ErrClosed
	}
}

func (h *Host) run() {
	defer close(h.done)
	defer close(h.events)

	for {
		if closing := h.drain(); closing != nil {
			h.shutdown()
			close(closing)
			return
		}

		h.pending.deliver()
		if h.pending.len() >= eventBacklog {
			// consumer is behind: leave incoming traffic buffered in ENet,
			// but keep taking commands
			h.pending.wait(serviceWait * time.Millisecond)
			continue
		}

		ev := h.host.Service(serviceWait)
		switch ev.GetType() {
		case goenet.EventNone:
			continue
		case goenet.EventConnect:
			h.handleConnect(ev.GetPeer())
		case goenet.EventDisconnect:
			h.handleDisconnect(ev.GetPeer(), disconnectreason.ID(ev.GetData()))
		case goenet.EventReceive:
			packet := ev.GetPacket()
			data := packet.GetData()
			packet.Destroy()
			h.handleReceive(ev.GetPeer(), data)
		}
	}
}

// drain applies queued outgoing commands. It returns the close request if
// one was queued.
func (h *Host) drain() chan struct{} {
	for {
		select {
		case c := <-h.out:
			if c.closing != nil {
				return c.closing
			}
			h.apply(c)
		default:
			return nil
		}
	}
}

func (h *Host) apply(c command) {
	peer, ok := h.peer(c.to)
	if !ok {
		return
	}

	if c.kick {
		if h.server {
			h.peers.Remove(peer)
		}
		peer.DisconnectLater(uint32(c.reason))
		h.emit(transport.Event{Type: transport.Disconnected, Peer: c.to, Reason: c.reason})
		return
	}

	if err := peer.SendBytes(c.packet, channel, goenet.PacketFlagReliable); err != nil {
		h.log.Warn("enet: send failed", zap.Int32("peer", int32(c.to)), zap.Error(err))
	}
}

func (h *Host) peer(id transport.PeerID) (goenet.Peer, bool) {
	if h.server {
		return h.peers.Conn(id)
	}
	return h.upstream, h.upstream != nil && id == transport.ServerID
}

func (h *Host) handleConnect(peer goenet.Peer) {
	if !h.server {
		// the session starts once the welcome arrives
		return
	}

	ip := net.ParseIP(peer.GetAddress().String())
	id := h.peers.Add(peer, ip)
	if err := peer.SendBytes(transport.Welcome(id), channel, goenet.PacketFlagReliable); err != nil {
		h.log.Warn("enet: sending welcome failed", zap.Int32("peer", int32(id)), zap.Error(err))
	}
	h.log.Debug("enet: client connected", zap.Int32("peer", int32(id)), zap.Stringer("ip", ip))
	h.emit(transport.Event{Type: transport.Connected, Peer: id})
}

func (h *Host) handleDisconnect(peer goenet.Peer, reason disconnectreason.ID) {
	if h.server {
		id, ok := h.peers.Remove(peer)
		if !ok {
			// kicked earlier, already reported
			return
		}
		h.emit(transport.Event{Type: transport.Disconnected, Peer: id, Reason: reason})
		return
	}

	h.mu.Lock()
	h.joined = false
	h.upstream = nil
	h.mu.Unlock()
	h.emit(transport.Event{Type: transport.Disconnected, Peer: transport.ServerID, Reason: reason})
}

func (h *Host) handleReceive(peer goenet.Peer, data []byte) {
	if h.server {
		id, ok := h.peers.ID(peer)
		if !ok {
			return
		}
		h.emit(transport.Event{Type: transport.Received, Peer: id, Packet: data})
		return
	}

	h.mu.Lock()
	joined := h.joined
	h.mu.Unlock()

	if joined {
		h.emit(transport.Event{Type: transport.Received, Peer: transport.ServerID, Packet: data})
		return
	}

	id, err := transport.ParseWelcome(data)
	if err != nil {
		h.log.Warn("enet: bad welcome from server", zap.Error(err))
		peer.DisconnectNow(uint32(disconnectreason.MessageError))
		h.emit(transport.Event{Type: transport.Disconnected, Peer: transport.ServerID, Reason: disconnectreason.MessageError})
		return
	}

	h.mu.Lock()
	h.localID, h.joined = id, true
	h.mu.Unlock()
	h.emit(transport.Event{Type: transport.Connected, Peer: transport.ServerID})
}

func (h *Host) shutdown() {
	if h.server {
		for _, id := range h.peers.IDs() {
			if peer, ok := h.peers.Conn(id); ok {
				peer.DisconnectNow(uint32(disconnectreason.Shutdown))
			}
		}
	} else if h.upstream != nil {
		h.upstream.DisconnectNow(uint32(disconnectreason.None))
	}

	// let the disconnects go out before the socket goes away
	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		if h.host.Service(serviceWait).GetType() == goenet.EventNone {
			break
		}
	}
	h.host.Destroy()
}

// emit queues e for the consumer. It never blocks, so run keeps draining
// commands even while the consumer is busy sending them.
func (h *Host) emit(e transport.Event) {
	h.pending.push(e)
}
