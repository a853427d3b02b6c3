package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/sauerbraten/arena/internal/rng"
)

// SpawnZone is a horizontal disc actors respawn in.
type SpawnZone struct {
	Center mgl64.Vec3
	Radius float64
}

// Sample returns a point distributed uniformly over the disc's area, at the
// height of its center.
func (z SpawnZone) Sample(r rng.Source) mgl64.Vec3 {
	theta := r.Float64() * 2 * math.Pi
	dist := z.Radius * math.Sqrt(r.Float64())

	return z.Center.Add(mgl64.Vec3{dist * math.Cos(theta), 0, dist * math.Sin(theta)})
}

// Contains reports whether p lies within the disc's radius, ignoring height.
func (z SpawnZone) Contains(p mgl64.Vec3) bool {
	return HorizontalDistance(z.Center, p) <= z.Radius+1e-9
}

func HorizontalDistance(a, b mgl64.Vec3) float64 {
	return mgl64.Vec2{a.X() - b.X(), a.Z() - b.Z()}.Len()
}
