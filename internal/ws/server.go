package ws

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sauerbraten/arena/internal/transport"
	"github.com/sauerbraten/arena/pkg/protocol"
	"github.com/sauerbraten/arena/pkg/protocol/disconnectreason"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Server accepts WebSocket clients. Mount Handler on an http.Server.
type Server struct {
	log    *zap.Logger
	peers  *transport.Registry[*conn]
	events chan transport.Event

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

var _ transport.Transport = (*Server)(nil)

func NewServer(log *zap.Logger) *Server {
	return &Server{
		log:    log,
		peers:  transport.NewRegistry[*conn](),
		events: make(chan transport.Event, sendBacklog),
		done:   make(chan struct{}),
	}
}

// Handler serves the socket on /ws and a liveness probe on /healthz.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", s.serveWS)
	r.Get("/healthz", s.healthz)
	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.peers.Len(),
	})
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	c := newConn(wsConn)
	id := s.peers.Add(c, remoteIP(r))
	c.send(transport.Welcome(id))
	s.log.Debug("ws: client connected", zap.Int32("peer", int32(id)), zap.String("addr", r.RemoteAddr))
	s.emit(transport.Event{Type: transport.Connected, Peer: id})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			reason, kicked := c.closedWith()
			if !kicked {
				reason = reasonOf(err)
			}
			s.peers.Remove(c)
			c.close(disconnectreason.None)
			s.emit(transport.Event{Type: transport.Disconnected, Peer: id, Reason: reason})
			return
		}
		s.emit(transport.Event{Type: transport.Received, Peer: id, Packet: data})
	}
}

func remoteIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

func (s *Server) LocalID() transport.PeerID { return transport.ServerID }

func (s *Server) IsServer() bool { return true }

func (s *Server) Peers() []transport.PeerID { return s.peers.IDs() }

func (s *Server) RemoteIP(id transport.PeerID) net.IP { return s.peers.IP(id) }

func (s *Server) Send(to transport.PeerID, p protocol.Packet) error {
	c, ok := s.peers.Conn(to)
	if !ok {
		return transport.ErrUnknownPeer
	}
	return c.send(p)
}

// Disconnect closes the connection after the packets already sent to id. The
// peer leaves Peers at once; Disconnected follows from its read loop.
func (s *Server) Disconnect(id transport.PeerID, reason disconnectreason.ID) {
	c, ok := s.peers.Conn(id)
	if !ok {
		return
	}
	s.peers.Remove(c)
	c.close(reason)
}

// Events is never closed; it goes quiet after Close.
func (s *Server) Events() <-chan transport.Event { return s.events }

func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	for _, id := range s.peers.IDs() {
		if c, ok := s.peers.Conn(id); ok {
			s.peers.Remove(c)
			c.close(disconnectreason.Shutdown)
		}
	}
	return nil
}

func (s *Server) emit(e transport.Event) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.events <- e:
	case <-s.done:
	}
}
