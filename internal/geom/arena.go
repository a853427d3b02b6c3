package geom

import "github.com/go-gl/mathgl/mgl64"

// Arena is a headless stand-in for the physics collaborator: a circular floor
// at FloorY with nothing around it. Bodies leaving the floor keep falling
// until they cross KillY, which counts as touching the boundary.
type Arena struct {
	Center mgl64.Vec3
	Radius float64
	FloorY float64
	KillY  float64
}

// MoveAndSlide integrates pos by vel over dt and resolves floor contact.
func (a Arena) MoveAndSlide(pos, vel mgl64.Vec3, dt float64) (newPos, newVel mgl64.Vec3, onFloor bool) {
	newPos = pos.Add(vel.Mul(dt))
	newVel = vel

	overFloor := HorizontalDistance(a.Center, newPos) <= a.Radius
	if overFloor && newPos.Y() <= a.FloorY && pos.Y() >= a.FloorY-0.5 {
		newPos[1] = a.FloorY
		if newVel.Y() < 0 {
			newVel[1] = 0
		}
		onFloor = true
	}

	return newPos, newVel, onFloor
}

func (a Arena) OutOfBounds(pos mgl64.Vec3) bool {
	return pos.Y() < a.KillY
}
