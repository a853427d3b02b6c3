package relay

import (
	"go.uber.org/zap"

	"github.com/sauerbraten/arena/internal/transport"
	"github.com/sauerbraten/arena/pkg/protocol"
)

// Synchronizer collects the latest owner state of every actor on the server
// and periodically sends each client the states of everybody else, packed
// into a single packet.
type Synchronizer struct {
	relay  *Relay
	log    *zap.Logger
	states map[transport.PeerID]protocol.PlayerState
	order  []transport.PeerID
}

func NewSynchronizer(r *Relay, log *zap.Logger) *Synchronizer {
	return &Synchronizer{
		relay:  r,
		log:    log,
		states: map[transport.PeerID]protocol.PlayerState{},
	}
}

// Publish reports the local owner's state. Clients send it to the server
// right away; the server queues it for the next flush.
func (s *Synchronizer) Publish(state protocol.PlayerState) {
	if !s.relay.IsServer() {
		s.relay.SendToServer(state)
		return
	}
	s.Accept(transport.ServerID, state)
}

// Accept queues a state reported by peer from. Peers may only report their
// own actor; anything else is dropped and false is returned.
func (s *Synchronizer) Accept(from transport.PeerID, state protocol.PlayerState) bool {
	if transport.PeerID(state.ID) != from {
		s.log.Warn("dropping state for foreign actor", zap.Int32("from", int32(from)), zap.Int32("actor", state.ID))
		return false
	}
	if _, ok := s.states[from]; !ok {
		s.order = append(s.order, from)
	}
	s.states[from] = state
	return true
}

// Flush sends the queued states and clears the queue. Each client receives
// every queued state except its own.
func (s *Synchronizer) Flush() {
	if !s.relay.IsServer() || len(s.states) == 0 {
		return
	}

	for _, client := range s.relay.t.Peers() {
		var p protocol.Packet
		for _, id := range s.order {
			if id == client {
				continue
			}
			p = append(p, protocol.EncodeMessage(s.states[id])...)
		}
		if len(p) > 0 {
			s.relay.send(client, p)
		}
	}

	s.states = map[transport.PeerID]protocol.PlayerState{}
	s.order = s.order[:0]
}

// Forget drops a queued state of a disconnected peer.
func (s *Synchronizer) Forget(id transport.PeerID) {
	if _, ok := s.states[id]; !ok {
		return
	}
	delete(s.states, id)
	for i, x := range s.order {
		if x == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
