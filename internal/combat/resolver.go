package combat

import (
	"math"

	"go.uber.org/zap"

	"github.com/sauerbraten/arena/internal/events"
	"github.com/sauerbraten/arena/internal/geom"
	"github.com/sauerbraten/arena/internal/player"
	"github.com/sauerbraten/arena/internal/rng"
	"github.com/sauerbraten/arena/internal/transport"
	"github.com/sauerbraten/arena/internal/world"
	"github.com/sauerbraten/arena/pkg/protocol"
)

type RespawnCause int

const (
	Shot RespawnCause = iota
	Fell
)

func (c RespawnCause) String() string {
	if c == Fell {
		return "fell"
	}
	return "shot"
}

// HitEvent is a discharge that struck another actor.
type HitEvent struct {
	Energy      float64
	ShooterName string
	TargetID    transport.PeerID
}

// Scene answers what a shooter's forward aim intersects.
type Scene interface {
	Aim(shooter *player.Actor) (target transport.PeerID, ok bool)
}

// Network is what the resolver needs from the relay.
type Network interface {
	SendTo(target transport.PeerID, m protocol.Message)
	Broadcast(excluded []transport.PeerID, m protocol.Message)
}

// Resolver turns the local owner's discharges into hits on other actors and
// applies hits the local owner receives. Damage is asserted by the shooter
// and trusted by the victim.
type Resolver struct {
	net    Network
	scene  Scene
	roster *world.Roster
	bus    *events.Bus
	zone   geom.SpawnZone
	rng    rng.Source
	log    *zap.Logger

	score int
}

func NewResolver(net Network, scene Scene, roster *world.Roster, bus *events.Bus, zone geom.SpawnZone, r rng.Source, log *zap.Logger) *Resolver {
	return &Resolver{
		net:    net,
		scene:  scene,
		roster: roster,
		bus:    bus,
		zone:   zone,
		rng:    r,
		log:    log,
	}
}

// Score is the number of times the local owner depleted another actor.
func (r *Resolver) Score() int { return r.score }

// Discharge handles a shot of the local owner. The hit is applied to the
// victim's local mirror straight away and sent to the victim's owner, who
// applies it for real.
func (r *Resolver) Discharge(shooter *player.Actor, energy float64) (HitEvent, bool) {
	r.net.Broadcast(nil, protocol.PlayShootEffects{Name: shooter.Name})

	id, ok := r.scene.Aim(shooter)
	if !ok || id == shooter.ID {
		return HitEvent{}, false
	}

	victim, ok := r.roster.ByID(id)
	if !ok {
		return HitEvent{}, false
	}

	hit := HitEvent{Energy: energy, ShooterName: shooter.Name, TargetID: id}

	if victim.PreviewHit(player.Damage(energy)) {
		r.score++
		r.bus.PlayerScored(r.score, shooter.Name, victim.Name)
	}
	r.bus.PuppetHit(victim.Name, victim.Health)

	r.net.SendTo(id, protocol.ReceiveHit{Energy: energy, ShooterName: shooter.Name})

	return hit, true
}

// ReceiveHit applies a hit to the local owner, respawning it when its health
// is used up.
func (r *Resolver) ReceiveHit(hit protocol.ReceiveHit) {
	self := r.roster.Local()
	if self == nil {
		r.log.Debug("hit without local actor", zap.String("shooter", hit.ShooterName))
		return
	}

	// energy is the shooter's claim; only (0, 1] can come from a discharge
	if math.IsNaN(hit.Energy) || hit.Energy <= 0 {
		r.log.Debug("dropping hit with invalid energy", zap.String("shooter", hit.ShooterName), zap.Float64("energy", hit.Energy))
		return
	}
	energy := math.Min(hit.Energy, 1)

	if self.TakeDamage(player.Damage(energy)) <= 0 {
		r.respawn(self, Shot, hit.ShooterName)
	}

	r.bus.SelfHealthChanged(self.Name, self.Health)
}

// Fell respawns the local owner after it touched the level boundary.
func (r *Resolver) Fell(self *player.Actor) {
	r.respawn(self, Fell, "")
}

func (r *Resolver) respawn(self *player.Actor, cause RespawnCause, shooterName string) {
	self.Respawn(r.zone.Sample(r.rng))

	r.log.Debug("respawned", zap.String("name", self.Name), zap.Stringer("cause", cause))

	switch cause {
	case Shot:
		r.bus.PlayerRespawnedShot(self.Name, shooterName)
		r.net.Broadcast(nil, protocol.NotifyRespawnedShot{Name: self.Name, ShooterName: shooterName})
	case Fell:
		r.bus.PlayerRespawnedFell(self.Name)
		r.net.Broadcast(nil, protocol.NotifyRespawnedFell{Name: self.Name})
	}
}
