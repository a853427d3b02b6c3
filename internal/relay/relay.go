package relay

import (
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sauerbraten/arena/internal/clock"
	"github.com/sauerbraten/arena/internal/transport"
	"github.com/sauerbraten/arena/pkg/protocol"
	"github.com/sauerbraten/arena/pkg/protocol/disconnectreason"
	"github.com/sauerbraten/arena/pkg/protocol/nmc"
)

// Handler receives every message that surfaces on this process, together
// with the peer it originated from (as far as this process can tell).
type Handler func(origin transport.PeerID, m protocol.Message)

type Config struct {
	MessagesPerSecond float64 `json:"messages_per_second"` // per peer; 0 disables limiting
	Burst             int     `json:"burst"`
}

func DefaultConfig() Config {
	return Config{MessagesPerSecond: 20, Burst: 40}
}

// payloads clients may ask the server to fan out
var relayable = map[nmc.ID]bool{
	nmc.RelayMessage:        true,
	nmc.PlayShootEffects:    true,
	nmc.NotifyRespawnedShot: true,
	nmc.NotifyRespawnedFell: true,
}

// payloads clients may ask the server to forward to a single peer
var directable = map[nmc.ID]bool{
	nmc.ReceiveHit: true,
}

// Relay delivers messages over a star-shaped transport. Clients never talk to
// each other: broadcasts and targeted messages from clients are wrapped in an
// envelope and routed by the server.
type Relay struct {
	t       transport.Transport
	clock   clock.Clock
	deliver Handler
	log     *zap.Logger

	cfg      Config
	limiters map[transport.PeerID]*rate.Limiter
}

func New(t transport.Transport, cfg Config, clk clock.Clock, deliver Handler, log *zap.Logger) *Relay {
	return &Relay{
		t:        t,
		clock:    clk,
		deliver:  deliver,
		log:      log,
		cfg:      cfg,
		limiters: map[transport.PeerID]*rate.Limiter{},
	}
}

func (r *Relay) LocalID() transport.PeerID { return r.t.LocalID() }

func (r *Relay) IsServer() bool { return r.t.IsServer() }

func (r *Relay) send(to transport.PeerID, p protocol.Packet) {
	if err := r.t.Send(to, p); err != nil {
		r.log.Debug("dropping message", zap.Int32("to", int32(to)), zap.Error(err))
	}
}

// SendToServer delivers m to the server. On the server itself this is a no-op.
func (r *Relay) SendToServer(m protocol.Message) {
	if r.IsServer() {
		return
	}
	r.send(transport.ServerID, protocol.EncodeMessage(m))
}

// SendToAllClientsExcept sends an individually addressed copy of m to every
// connected client not listed in excluded.
func (r *Relay) SendToAllClientsExcept(excluded []transport.PeerID, m protocol.Message) {
	if !r.IsServer() {
		r.log.Warn("only the server can address clients", zap.Stringer("msg", m.Code()))
		return
	}

	p := protocol.EncodeMessage(m)
	for _, id := range r.t.Peers() {
		if id == transport.ServerID || contains(excluded, id) {
			continue
		}
		r.send(id, p)
	}
}

// Broadcast delivers m to every participant except this process and the
// listed peers.
func (r *Relay) Broadcast(excluded []transport.PeerID, m protocol.Message) {
	if r.IsServer() {
		r.SendToAllClientsExcept(excluded, m)
		return
	}

	env := protocol.Relay{Payload: m}
	for _, id := range excluded {
		env.Excluded = append(env.Excluded, int32(id))
	}
	r.send(transport.ServerID, protocol.EncodeMessage(env))
}

// SendTo delivers m to a single peer. Clients go through the server. A
// target that is not connected (any more) drops the message.
func (r *Relay) SendTo(target transport.PeerID, m protocol.Message) {
	if target == r.LocalID() {
		r.deliver(target, m)
		return
	}
	if r.IsServer() || target == transport.ServerID {
		r.send(target, protocol.EncodeMessage(m))
		return
	}
	r.send(transport.ServerID, protocol.EncodeMessage(protocol.Direct{Target: int32(target), Payload: m}))
}

// Route fans a message out on behalf of origin: the server surfaces it
// locally unless it is the origin or excluded, and forwards it to every
// client that is neither.
func (r *Relay) Route(origin transport.PeerID, excluded []transport.PeerID, m protocol.Message) {
	if !r.IsServer() {
		return
	}

	skip := append([]transport.PeerID{origin}, excluded...)

	if !contains(skip, transport.ServerID) {
		r.deliver(origin, m)
	}
	r.SendToAllClientsExcept(skip, m)
}

// Receive decodes a packet from peer from and surfaces or routes every
// message in it. It returns the decode error, if any; messages preceding a
// malformed one are still handled.
func (r *Relay) Receive(from transport.PeerID, p protocol.Packet) error {
	msgs, err := protocol.DecodeMessages(p)
	for _, m := range msgs {
		r.handle(from, m)
	}
	return err
}

func (r *Relay) handle(from transport.PeerID, m protocol.Message) {
	switch m := m.(type) {
	case protocol.Relay:
		if !r.IsServer() {
			r.log.Debug("ignoring relay envelope on client", zap.Int32("from", int32(from)))
			return
		}
		if !relayable[m.Payload.Code()] {
			r.log.Warn("refusing to relay", zap.Int32("from", int32(from)), zap.Stringer("msg", m.Payload.Code()))
			return
		}
		if !r.allow(from) {
			return
		}
		excluded := make([]transport.PeerID, 0, len(m.Excluded))
		for _, id := range m.Excluded {
			excluded = append(excluded, transport.PeerID(id))
		}
		r.Route(from, excluded, m.Payload)

	case protocol.Direct:
		if !r.IsServer() {
			r.log.Debug("ignoring direct envelope on client", zap.Int32("from", int32(from)))
			return
		}
		if !directable[m.Payload.Code()] {
			r.log.Warn("refusing to forward", zap.Int32("from", int32(from)), zap.Stringer("msg", m.Payload.Code()))
			return
		}
		if !r.allow(from) {
			return
		}
		target := transport.PeerID(m.Target)
		if target == transport.ServerID {
			r.deliver(from, m.Payload)
			return
		}
		r.send(target, protocol.EncodeMessage(m.Payload))

	default:
		if r.IsServer() && m.Code() == nmc.RelayMessage && !r.allow(from) {
			return
		}
		r.deliver(from, m)
	}
}

func (r *Relay) allow(from transport.PeerID) bool {
	if r.cfg.MessagesPerSecond <= 0 {
		return true
	}

	l, ok := r.limiters[from]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.cfg.MessagesPerSecond), r.cfg.Burst)
		r.limiters[from] = l
	}

	if !l.AllowN(r.clock.Now(), 1) {
		r.log.Info("rate limited", zap.Int32("peer", int32(from)))
		return false
	}
	return true
}

// Disconnect closes the connection to a client, or to the server when
// called on a client with transport.ServerID.
func (r *Relay) Disconnect(id transport.PeerID, reason disconnectreason.ID) {
	r.t.Disconnect(id, reason)
}

// Forget drops per-peer state of a disconnected peer.
func (r *Relay) Forget(id transport.PeerID) {
	delete(r.limiters, id)
}

func contains(ids []transport.PeerID, id transport.PeerID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
