package combat

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/sauerbraten/arena/internal/player"
	"github.com/sauerbraten/arena/internal/transport"
	"github.com/sauerbraten/arena/internal/world"
)

// RayScene casts a ray along the shooter's heading and returns the nearest
// actor whose bounding sphere it passes through. There is no level geometry
// to block the ray.
type RayScene struct {
	Roster    *world.Roster
	HitRadius float64
	Range     float64
	EyeHeight float64
}

// Forward is the unit direction an actor with heading yaw looks and walks.
func Forward(yaw float64) mgl64.Vec3 {
	return mgl64.Vec3{-math.Sin(yaw), 0, -math.Cos(yaw)}
}

func (s RayScene) Aim(shooter *player.Actor) (transport.PeerID, bool) {
	origin := shooter.Position.Add(mgl64.Vec3{0, s.EyeHeight, 0})
	dir := Forward(shooter.Yaw)

	best, found := math.Inf(1), transport.NoPeer
	s.Roster.ForEach(func(a *player.Actor) {
		if a.ID == shooter.ID {
			return
		}
		center := a.Position.Add(mgl64.Vec3{0, s.EyeHeight, 0})
		along := center.Sub(origin).Dot(dir)
		if along <= 0 || (s.Range > 0 && along > s.Range) {
			return
		}
		closest := origin.Add(dir.Mul(along))
		if closest.Sub(center).Len() <= s.HitRadius && along < best {
			best, found = along, a.ID
		}
	})

	return found, found != transport.NoPeer
}

// FixedAim is a scene for headless play: whatever the shooter does, the aim
// rests on one chosen peer.
type FixedAim struct {
	target transport.PeerID
}

func (f *FixedAim) Set(id transport.PeerID) { f.target = id }

func (f *FixedAim) Clear() { f.target = transport.NoPeer }

func (f *FixedAim) Aim(*player.Actor) (transport.PeerID, bool) {
	return f.target, f.target != transport.NoPeer
}
