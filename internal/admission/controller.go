package admission

import (
	"errors"

	"go.uber.org/zap"

	"github.com/sauerbraten/arena/internal/clock"
	"github.com/sauerbraten/arena/internal/geom"
	"github.com/sauerbraten/arena/internal/player"
	"github.com/sauerbraten/arena/internal/rng"
	"github.com/sauerbraten/arena/internal/transport"
	"github.com/sauerbraten/arena/internal/validate"
	"github.com/sauerbraten/arena/internal/world"
	"github.com/sauerbraten/arena/pkg/protocol"
	"github.com/sauerbraten/arena/pkg/protocol/disconnectreason"
)

// kick reasons shown to the rejected player
const (
	ReasonAlreadyInGame = "You're already in the game."
	ReasonNameInUse     = "Your name is already in use by another player."
	ReasonInvalidName   = "Your name is not valid."
)

var (
	ErrNotServer     = errors.New("slot requests are only handled by the server")
	ErrAlreadyInGame = errors.New("peer already has an actor")
	ErrNameInUse     = errors.New("name already in use")
	ErrInvalidName   = errors.New("invalid display name")
)

// Network is what the controller needs from the relay.
type Network interface {
	IsServer() bool
	LocalID() transport.PeerID
	SendTo(target transport.PeerID, m protocol.Message)
	Broadcast(excluded []transport.PeerID, m protocol.Message)
	Disconnect(id transport.PeerID, reason disconnectreason.ID)
}

// Controller decides who gets an actor. Only the server admits players.
type Controller struct {
	net    Network
	roster *world.Roster
	zone   geom.SpawnZone
	rng    rng.Source
	cfg    player.Config
	clock  clock.Clock
	log    *zap.Logger

	// called with every admitted actor, after the join was broadcast
	onAdmit func(a *player.Actor)
}

func New(net Network, roster *world.Roster, zone geom.SpawnZone, r rng.Source, cfg player.Config, clk clock.Clock, onAdmit func(*player.Actor), log *zap.Logger) *Controller {
	if onAdmit == nil {
		onAdmit = func(*player.Actor) {}
	}
	return &Controller{
		net:     net,
		roster:  roster,
		zone:    zone,
		rng:     r,
		cfg:     cfg,
		clock:   clk,
		log:     log,
		onAdmit: onAdmit,
	}
}

// RequestSlot handles a slot request from sender. Duplicate peers and names
// are kicked and disconnected; everyone else gets an actor at a fresh spawn
// point, announced to all peers.
func (c *Controller) RequestSlot(sender transport.PeerID, name string) (*player.Actor, error) {
	if !c.net.IsServer() {
		c.log.Debug("ignoring slot request", zap.Int32("from", int32(sender)))
		return nil, ErrNotServer
	}

	if _, ok := c.roster.ByID(sender); ok {
		c.kick(sender, ReasonAlreadyInGame, disconnectreason.Duplicate)
		return nil, ErrAlreadyInGame
	}

	if _, ok := c.roster.ByName(name); ok {
		c.kick(sender, ReasonNameInUse, disconnectreason.Duplicate)
		return nil, ErrNameInUse
	}

	if !validate.IsValidDisplayName(name) {
		c.kick(sender, ReasonInvalidName, disconnectreason.Kick)
		return nil, ErrInvalidName
	}

	return c.admit(sender, name), nil
}

// AdmitSelf gives the hosting server its own actor, bypassing the wire.
func (c *Controller) AdmitSelf(name string) (*player.Actor, error) {
	if !c.net.IsServer() {
		return nil, ErrNotServer
	}
	if c.roster.Local() != nil {
		return nil, ErrAlreadyInGame
	}
	return c.admit(c.net.LocalID(), name), nil
}

func (c *Controller) admit(id transport.PeerID, name string) *player.Actor {
	pos := c.zone.Sample(c.rng)

	var a *player.Actor
	if id == c.net.LocalID() {
		a = player.NewOwner(id, name, pos, c.cfg, c.clock)
	} else {
		a = player.NewPuppet(id, name, pos, c.cfg.MaxHealth, c.cfg, c.clock)
	}

	if err := c.roster.Add(a); err != nil {
		// checked above, so this is a programming error
		panic(err)
	}

	c.log.Info("join", zap.String("name", name), zap.Int32("peer", int32(id)))

	c.net.Broadcast(nil, spawnMessage(a, false))

	// bring the newcomer up to date
	if id != c.net.LocalID() {
		c.roster.ForEach(func(other *player.Actor) {
			if other.ID != id {
				c.net.SendTo(id, spawnMessage(other, true))
			}
		})
	}

	c.onAdmit(a)

	return a
}

func (c *Controller) kick(id transport.PeerID, reason string, dr disconnectreason.ID) {
	c.log.Info("kicking", zap.Int32("peer", int32(id)), zap.String("reason", reason))
	c.net.SendTo(id, protocol.KickedFromServer{Reason: reason})
	c.net.Disconnect(id, dr)
}

func spawnMessage(a *player.Actor, existing bool) protocol.SpawnPlayer {
	return protocol.SpawnPlayer{
		ID:       int32(a.ID),
		Name:     a.Name,
		Position: a.Position,
		Health:   int32(a.Health),
		Existing: existing,
	}
}
