package session

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sauerbraten/arena/internal/admission"
	"github.com/sauerbraten/arena/internal/clock"
	"github.com/sauerbraten/arena/internal/combat"
	"github.com/sauerbraten/arena/internal/events"
	"github.com/sauerbraten/arena/internal/geom"
	"github.com/sauerbraten/arena/internal/player"
	"github.com/sauerbraten/arena/internal/relay"
	"github.com/sauerbraten/arena/internal/rng"
	"github.com/sauerbraten/arena/internal/transport"
	"github.com/sauerbraten/arena/internal/validate"
	"github.com/sauerbraten/arena/internal/world"
	"github.com/sauerbraten/arena/pkg/protocol"
	"github.com/sauerbraten/arena/pkg/protocol/disconnectreason"
)

// messages shown when joining does not work out
const (
	ReasonTimedOut         = "Failed to connect to server, timed out."
	ReasonConnectionFailed = "Failed to connect to server."
	ReasonBanned           = "You are banned from this server."
	ReasonServerFull       = "The server is full."
)

const (
	defaultJoinTimeout = 5 * time.Second
	defaultMaxClients  = 16
)

var (
	ErrInvalidName = errors.New("invalid display name")
	ErrNotServer   = errors.New("not listening as a server")
	ErrIsServer    = errors.New("servers cannot join other games")
)

type Config struct {
	Player      player.Config
	Relay       relay.Config
	SpawnZone   geom.SpawnZone
	JoinTimeout time.Duration
	MaxClients  int
}

// Stats records kills and falls; implemented by the stats store.
type Stats interface {
	RecordFrag(session uuid.UUID, shooter, victim string) error
	RecordFall(session uuid.UUID, name string) error
}

// Bans tells whether a remote address may connect.
type Bans interface {
	IsBanned(ip net.IP) (reason string, banned bool)
}

// Addresser is implemented by transports that know their peers' addresses.
type Addresser interface {
	RemoteIP(id transport.PeerID) net.IP
}

type Deps struct {
	Scene combat.Scene
	Bus   *events.Bus
	Clock clock.Clock // timer callbacks must run on the game loop
	Rng   rng.Source
	Log   *zap.Logger
	Stats Stats // optional
	Bans  Bans  // optional
}

// Session is the state of one game as seen from this process: the actors,
// who owns which, and how messages get in and out. All methods must be
// called from the goroutine driving the game loop.
type Session struct {
	ID uuid.UUID

	t         transport.Transport
	relay     *relay.Relay
	sync      *relay.Synchronizer
	roster    *world.Roster
	admission *admission.Controller
	combat    *combat.Resolver
	bus       *events.Bus
	clock     clock.Clock
	log       *zap.Logger
	cfg       Config
	stats     Stats
	bans      Bans

	name      string      // requested while joining
	joining   clock.Timer // pending join timeout
	requested bool
	joined    bool
	kicked    bool
	closed    bool
}

func New(t transport.Transport, cfg Config, deps Deps) *Session {
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = defaultJoinTimeout
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = defaultMaxClients
	}
	if deps.Bus == nil {
		deps.Bus = &events.Bus{}
	}
	if deps.Rng == nil {
		deps.Rng = rng.New(0)
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	s := &Session{
		ID:     uuid.New(),
		t:      t,
		roster: world.NewRoster(),
		bus:    deps.Bus,
		clock:  deps.Clock,
		cfg:    cfg,
		stats:  deps.Stats,
		bans:   deps.Bans,
	}
	s.log = deps.Log.With(zap.Stringer("session", s.ID))

	s.relay = relay.New(t, cfg.Relay, deps.Clock, s.deliver, s.log.Named("relay"))
	s.sync = relay.NewSynchronizer(s.relay, s.log.Named("sync"))
	s.admission = admission.New(s.relay, s.roster, cfg.SpawnZone, deps.Rng, cfg.Player, deps.Clock, s.admitted, s.log.Named("admission"))

	scene := deps.Scene
	if scene == nil {
		scene = combat.RayScene{Roster: s.roster, HitRadius: 0.6, EyeHeight: 1.5}
	}
	s.combat = combat.NewResolver(s.relay, scene, s.roster, s.bus, cfg.SpawnZone, deps.Rng, s.log.Named("combat"))

	if t.IsServer() && s.stats != nil {
		s.bus.OnPlayerRespawnedShot(func(name, shooter string) {
			if err := s.stats.RecordFrag(s.ID, shooter, name); err != nil {
				s.log.Error("recording frag", zap.Error(err))
			}
		})
		s.bus.OnPlayerRespawnedFell(func(name string) {
			if err := s.stats.RecordFall(s.ID, name); err != nil {
				s.log.Error("recording fall", zap.Error(err))
			}
		})
	}

	return s
}

func (s *Session) Bus() *events.Bus { return s.bus }

func (s *Session) Roster() *world.Roster { return s.roster }

func (s *Session) IsServer() bool { return s.t.IsServer() }

// Local returns this process's own actor, or nil before joining.
func (s *Session) Local() *player.Actor { return s.roster.Local() }

// Score is how many times the local actor depleted someone else.
func (s *Session) Score() int { return s.combat.Score() }

// Host admits the hosting player into its own, freshly listening game.
func (s *Session) Host(name string) error {
	if !s.t.IsServer() {
		return ErrNotServer
	}
	if !validate.IsValidDisplayName(name) {
		return ErrInvalidName
	}

	if _, err := s.admission.AdmitSelf(name); err != nil {
		return fmt.Errorf("failed to host game: %w", err)
	}
	s.joined = true
	return nil
}

// Join starts joining the game on the other end of the transport. Joining
// completes when the server spawns our actor; a kick, a disconnect or the
// join timeout end it instead.
func (s *Session) Join(name string) error {
	if s.t.IsServer() {
		return ErrIsServer
	}
	if !validate.IsValidDisplayName(name) {
		return ErrInvalidName
	}

	s.name = name
	s.joining = s.clock.AfterFunc(s.cfg.JoinTimeout, func() {
		if s.joined || s.closed {
			return
		}
		s.joining = nil
		s.log.Info("join timed out", zap.Duration("after", s.cfg.JoinTimeout))
		s.bus.JoinFailed(ReasonTimedOut)
		s.Close()
	})

	// the transport may have finished connecting already
	if len(s.t.Peers()) > 0 && s.t.LocalID() != transport.NoPeer {
		s.requestSlot()
	}

	return nil
}

// CancelJoin gives up on a pending join and closes the connection.
func (s *Session) CancelJoin() {
	if s.joined {
		return
	}
	s.stopJoinTimer()
	s.Close()
}

func (s *Session) stopJoinTimer() {
	if s.joining != nil {
		s.joining.Stop()
		s.joining = nil
	}
}

func (s *Session) requestSlot() {
	if s.name == "" || s.requested || s.joined {
		return
	}
	s.requested = true
	s.log.Debug("requesting player slot", zap.String("name", s.name))
	s.relay.SendToServer(protocol.RequestPlayerSlot{Name: s.name})
}

// admitted runs on the server for every accepted slot, the host's own included.
func (s *Session) admitted(a *player.Actor) {
	if a.IsLocalAuthority() {
		s.bus.NewGameStarted(a.Name)
		return
	}
	s.bus.PlayerJoined(a.Name)
}

// HandleEvent processes one transport event.
func (s *Session) HandleEvent(e transport.Event) {
	if s.closed {
		return
	}

	switch e.Type {
	case transport.Connected:
		if s.t.IsServer() {
			s.connect(e.Peer)
		} else {
			s.log.Info("connected to server", zap.Int32("peer_id", int32(s.t.LocalID())))
			s.requestSlot()
		}

	case transport.Disconnected:
		if s.t.IsServer() {
			s.disconnect(e.Peer, e.Reason)
		} else if e.Peer == transport.ServerID {
			s.lostServer(e.Reason)
		}

	case transport.Received:
		if s.t.IsServer() && !s.connected(e.Peer) {
			// already rejected, but its packets were still queued
			return
		}
		if err := s.relay.Receive(e.Peer, e.Packet); err != nil {
			s.log.Warn("malformed packet", zap.Int32("from", int32(e.Peer)), zap.Error(err))
			if s.t.IsServer() {
				s.t.Disconnect(e.Peer, disconnectreason.MessageError)
			}
		}
	}
}

func (s *Session) connected(id transport.PeerID) bool {
	for _, p := range s.t.Peers() {
		if p == id {
			return true
		}
	}
	return false
}

func (s *Session) connect(id transport.PeerID) {
	if s.bans != nil {
		if a, ok := s.t.(Addresser); ok {
			if ip := a.RemoteIP(id); ip != nil {
				if reason, banned := s.bans.IsBanned(ip); banned {
					s.log.Info("rejecting banned peer", zap.Int32("peer", int32(id)), zap.Stringer("ip", ip), zap.String("reason", reason))
					s.relay.SendTo(id, protocol.KickedFromServer{Reason: ReasonBanned})
					s.t.Disconnect(id, disconnectreason.Banned)
					return
				}
			}
		}
	}

	if len(s.t.Peers()) > s.cfg.MaxClients {
		s.log.Info("rejecting peer, server full", zap.Int32("peer", int32(id)))
		s.relay.SendTo(id, protocol.KickedFromServer{Reason: ReasonServerFull})
		s.t.Disconnect(id, disconnectreason.ServerFull)
		return
	}

	s.log.Debug("peer connected", zap.Int32("peer", int32(id)))
}

func (s *Session) disconnect(id transport.PeerID, reason disconnectreason.ID) {
	s.relay.Forget(id)
	s.sync.Forget(id)

	a, ok := s.roster.Remove(id)
	if !ok {
		return
	}

	s.log.Info("leave", zap.String("name", a.Name), zap.Int32("peer", int32(id)), zap.Stringer("reason", reason))
	s.bus.PlayerLeft(a.Name)
	s.relay.Broadcast(nil, protocol.DespawnPlayer{ID: int32(id)})
}

func (s *Session) lostServer(reason disconnectreason.ID) {
	s.log.Info("disconnected from server", zap.Stringer("reason", reason))

	wasJoined := s.joined
	s.stopJoinTimer()
	s.roster.Clear()
	s.joined = false

	switch {
	case s.kicked:
		// KickedFromServer was raised already
	case wasJoined:
		s.bus.ServerShutDown()
	case s.name != "":
		s.bus.JoinFailed(ReasonConnectionFailed)
	}

	s.closed = true
	s.t.Close()
}

// deliver handles every message surfacing on this process.
func (s *Session) deliver(origin transport.PeerID, m protocol.Message) {
	switch m := m.(type) {
	case protocol.RequestPlayerSlot:
		if _, err := s.admission.RequestSlot(origin, m.Name); err != nil {
			s.log.Info("slot request rejected", zap.Int32("from", int32(origin)), zap.String("name", m.Name), zap.Error(err))
		}

	case protocol.KickedFromServer:
		if s.t.IsServer() || origin != transport.ServerID {
			return
		}
		s.kicked = true
		s.stopJoinTimer()
		s.log.Info("kicked", zap.String("reason", m.Reason))
		s.bus.KickedFromServer(m.Reason)

	case protocol.SpawnPlayer:
		if s.t.IsServer() {
			return
		}
		s.spawn(m)

	case protocol.DespawnPlayer:
		if s.t.IsServer() {
			return
		}
		if a, ok := s.roster.Remove(transport.PeerID(m.ID)); ok {
			s.bus.PlayerLeft(a.Name)
		}

	case protocol.PlayerState:
		if s.t.IsServer() && !s.sync.Accept(origin, m) {
			return
		}
		if a, ok := s.roster.ByID(transport.PeerID(m.ID)); ok {
			a.ApplyRemoteState(m.Position, m.Yaw, int(m.Health))
		}

	case protocol.ReceiveHit:
		s.combat.ReceiveHit(m)

	case protocol.PlayShootEffects:
		s.bus.ShotFired(m.Name)

	case protocol.NotifyRespawnedShot:
		s.bus.PlayerRespawnedShot(m.Name, m.ShooterName)

	case protocol.NotifyRespawnedFell:
		s.bus.PlayerRespawnedFell(m.Name)

	case protocol.RelayMessage:
		if text := validate.SanitizeChat(m.Text); text != "" {
			s.bus.RemoteMessageReceived(text)
		}

	default:
		s.log.Debug("unhandled message", zap.Stringer("code", m.Code()), zap.Int32("from", int32(origin)))
	}
}

func (s *Session) spawn(m protocol.SpawnPlayer) {
	id := transport.PeerID(m.ID)

	if id == s.t.LocalID() {
		if s.roster.Local() != nil {
			return
		}
		a := player.NewOwner(id, m.Name, m.Position, s.cfg.Player, s.clock)
		if err := s.roster.Add(a); err != nil {
			s.log.Error("adding own actor", zap.Error(err))
			return
		}
		s.stopJoinTimer()
		s.joined = true
		s.log.Info("joined game", zap.String("name", m.Name), zap.Int32("peer_id", m.ID))
		s.bus.NewGameStarted(m.Name)
		return
	}

	a := player.NewPuppet(id, m.Name, m.Position, int(m.Health), s.cfg.Player, s.clock)
	if err := s.roster.Add(a); err != nil {
		s.log.Debug("ignoring spawn", zap.Int32("peer", m.ID), zap.Error(err))
		return
	}
	if !m.Existing {
		s.bus.PlayerJoined(m.Name)
	}
}

// Tick advances every actor by dt seconds. in is applied to the local actor.
func (s *Session) Tick(dt float64, in player.Input, body player.Body) {
	local := s.roster.Local()

	s.roster.ForEach(func(a *player.Actor) {
		if a != local {
			a.Step(dt, player.Input{}, nil)
		}
	})

	if local == nil {
		return
	}

	res := local.Step(dt, in, body)
	if res.Discharged {
		s.combat.Discharge(local, res.Energy)
	}
	if res.Fell {
		s.combat.Fell(local)
	}
}

// FlushState publishes the local actor's state and, on the server, sends
// out everything collected since the last flush.
func (s *Session) FlushState() {
	if local := s.roster.Local(); local != nil {
		s.sync.Publish(protocol.PlayerState{
			ID:       int32(local.ID),
			Position: local.Position,
			Yaw:      local.Yaw,
			Health:   int32(local.Health),
		})
	}
	s.sync.Flush()
}

// SendChat sends a chat line to everybody else, optionally hiding it from
// one player.
func (s *Session) SendChat(text, excludedName string) {
	local := s.roster.Local()
	text = validate.SanitizeChat(text)
	if local == nil || text == "" {
		return
	}

	var excluded []transport.PeerID
	if excludedName != "" {
		if a, ok := s.roster.ByName(excludedName); ok {
			excluded = append(excluded, a.ID)
		}
	}

	s.relay.Broadcast(excluded, protocol.RelayMessage{Text: fmt.Sprintf("%s: %s", local.Name, text)})
}

func (s *Session) SetInputEnabled(enabled bool) {
	if local := s.roster.Local(); local != nil {
		local.SetInputEnabled(enabled)
	}
}

// Close leaves the game. Closing the server ends the game for everybody.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.stopJoinTimer()
	s.roster.Clear()
	s.joined = false
	return s.t.Close()
}
