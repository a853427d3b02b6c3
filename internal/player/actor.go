package player

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/sauerbraten/arena/internal/clock"
	"github.com/sauerbraten/arena/internal/transport"
	"github.com/sauerbraten/arena/internal/weapon"
)

type Config struct {
	MaxHealth    int           `json:"max_health"`
	Speed        float64       `json:"speed"`
	JumpVelocity float64       `json:"jump_velocity"`
	Gravity      float64       `json:"gravity"`
	JumpCooldown time.Duration `json:"jump_cooldown_in_ms"`
	HitFlash     time.Duration `json:"hit_flash_in_ms"`
	Weapon       weapon.Config `json:"weapon"`
}

func DefaultConfig() Config {
	return Config{
		MaxHealth:    100,
		Speed:        7,
		JumpVelocity: 20,
		Gravity:      50,
		JumpCooldown: 500 * time.Millisecond,
		HitFlash:     200 * time.Millisecond,
		Weapon:       weapon.DefaultConfig(),
	}
}

// how fast puppets close the gap to their last reported position, per second
const interpolationRate = 15.0

// Input is one frame of local control state.
type Input struct {
	Move    mgl64.Vec2 // x strafes right, y walks forward; length <= 1
	Yaw     float64    // absolute heading in radians
	Jump    bool
	Trigger bool // held
}

// Body is the physics collaborator that resolves movement against the level.
type Body interface {
	MoveAndSlide(pos, vel mgl64.Vec3, dt float64) (newPos, newVel mgl64.Vec3, onFloor bool)
	OutOfBounds(pos mgl64.Vec3) bool
}

type StepResult struct {
	Discharged bool
	Energy     float64
	Fell       bool
}

// Actor is a player entity. The actor whose ID matches the local peer id is
// the owner: it reads input, drives its weapon and is the only writer of its
// position and health. Every other actor is a puppet mirroring relayed state.
type Actor struct {
	ID       transport.PeerID
	Name     string
	Health   int
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Yaw      float64

	cfg   Config
	clock clock.Clock
	local bool

	// owner only
	inputEnabled bool
	weapon       *weapon.Weapon
	onFloor      bool
	jumpCooldown clock.Timer

	// puppet only
	target   mgl64.Vec3
	flashing bool
	flash    clock.Timer
}

func NewOwner(id transport.PeerID, name string, pos mgl64.Vec3, cfg Config, clk clock.Clock) *Actor {
	return &Actor{
		ID:           id,
		Name:         name,
		Health:       cfg.MaxHealth,
		Position:     pos,
		cfg:          cfg,
		clock:        clk,
		local:        true,
		inputEnabled: true,
		weapon:       weapon.New(cfg.Weapon, clk),
	}
}

func NewPuppet(id transport.PeerID, name string, pos mgl64.Vec3, health int, cfg Config, clk clock.Clock) *Actor {
	return &Actor{
		ID:       id,
		Name:     name,
		Health:   health,
		Position: pos,
		target:   pos,
		cfg:      cfg,
		clock:    clk,
	}
}

func (a *Actor) IsLocalAuthority() bool { return a.local }

func (a *Actor) MaxHealth() int { return a.cfg.MaxHealth }

// Weapon is nil on puppets.
func (a *Actor) Weapon() *weapon.Weapon { return a.weapon }

func (a *Actor) InputEnabled() bool { return a.local && a.inputEnabled }

// SetInputEnabled toggles input consumption; pending cooldowns are frozen
// while input is off.
func (a *Actor) SetInputEnabled(enabled bool) {
	if !a.local || a.inputEnabled == enabled {
		return
	}
	a.inputEnabled = enabled
	if a.jumpCooldown != nil {
		if enabled {
			a.jumpCooldown.Resume()
		} else {
			a.jumpCooldown.Pause()
		}
	}
}

// Step advances the actor by dt seconds.
func (a *Actor) Step(dt float64, in Input, body Body) (res StepResult) {
	if !a.local {
		a.Position = a.Position.Add(a.target.Sub(a.Position).Mul(math.Min(1, dt*interpolationRate)))
		return
	}

	if a.inputEnabled {
		if in.Trigger {
			a.weapon.Charge()
		} else if a.weapon.IsCharging() {
			res.Energy, res.Discharged = a.weapon.Discharge()
		}

		a.Yaw = in.Yaw
		dir := mgl64.Rotate2D(in.Yaw).Mul2x1(in.Move)
		a.Velocity[0] = dir.X() * a.cfg.Speed
		a.Velocity[2] = -dir.Y() * a.cfg.Speed

		if in.Jump && a.onFloor && a.jumpCooldown == nil {
			a.Velocity[1] = a.cfg.JumpVelocity
			a.jumpCooldown = a.clock.AfterFunc(a.cfg.JumpCooldown, func() { a.jumpCooldown = nil })
		}
	} else {
		a.Velocity[0], a.Velocity[2] = 0, 0
	}

	a.Velocity[1] -= a.cfg.Gravity * dt

	if body == nil {
		return
	}

	a.Position, a.Velocity, a.onFloor = body.MoveAndSlide(a.Position, a.Velocity, dt)
	res.Fell = body.OutOfBounds(a.Position)

	return
}

// ApplyRemoteState updates a puppet from its owner's latest report. The
// owner's health is authoritative and overrides any optimistic mirror.
func (a *Actor) ApplyRemoteState(pos mgl64.Vec3, yaw float64, health int) {
	if a.local {
		return
	}
	a.target = pos
	a.Yaw = yaw
	a.Health = health
}

// Target is the last position reported for a puppet.
func (a *Actor) Target() mgl64.Vec3 { return a.target }

// Teleport moves a puppet without interpolating, e.g. after a respawn.
func (a *Actor) Teleport(pos mgl64.Vec3) {
	a.Position, a.target = pos, pos
	a.Velocity = mgl64.Vec3{}
}

// PreviewHit applies damage to the local mirror of a puppet and shows the hit
// indicator. When the mirror is depleted it is reset to full health and
// depleted is true.
func (a *Actor) PreviewHit(damage int) (depleted bool) {
	a.flashing = true
	if a.flash != nil {
		a.flash.Stop()
	}
	a.flash = a.clock.AfterFunc(a.cfg.HitFlash, func() { a.flashing = false })

	a.Health -= damage
	if a.Health <= 0 {
		a.Health = a.cfg.MaxHealth
		return true
	}
	return false
}

func (a *Actor) Flashing() bool { return a.flashing }

// TakeDamage lowers the owner's health without clamping; the caller decides
// about respawning when the result is <= 0.
func (a *Actor) TakeDamage(damage int) int {
	a.Health -= damage
	return a.Health
}

// Respawn restores full health at pos and clears momentum.
func (a *Actor) Respawn(pos mgl64.Vec3) {
	a.Health = a.cfg.MaxHealth
	a.Teleport(pos)
	a.onFloor = false
}

// Damage converts discharge energy into hit points.
func Damage(energy float64) int {
	return int(math.Min(100, math.Round(energy*100)))
}
