package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Orbit is the camera-orbit control. While suspended it ignores input so
// a drag and an orbit never both consume the same pointer stream.
type Orbit struct {
	Target   mgl64.Vec3
	Yaw      float64 // degrees around Y
	Pitch    float64 // degrees above the XZ plane
	Distance float64
	Fovy     float64 // degrees

	suspended bool
}

const (
	minPitch    = -89
	maxPitch    = 89
	minDistance = 0.5
	maxDistance = 50
)

// NewOrbit returns a camera looking at the origin from the front, slightly
// above the strand.
func NewOrbit(distance float64) *Orbit {
	return &Orbit{Pitch: 20, Distance: distance, Fovy: 45}
}

// Suspend stops the orbit from reacting to input.
func (o *Orbit) Suspend() { o.suspended = true }

// Resume re-enables input.
func (o *Orbit) Resume() { o.suspended = false }

// Enabled reports whether input is currently accepted.
func (o *Orbit) Enabled() bool { return !o.suspended }

// Rotate turns the camera. It reports false when suspended.
func (o *Orbit) Rotate(dYaw, dPitch float64) bool {
	if o.suspended {
		return false
	}
	o.Yaw = math.Mod(o.Yaw+dYaw, 360)
	o.Pitch = mgl64.Clamp(o.Pitch+dPitch, minPitch, maxPitch)
	return true
}

// Zoom scales the orbit distance. It reports false when suspended.
func (o *Orbit) Zoom(factor float64) bool {
	if o.suspended || factor <= 0 {
		return false
	}
	o.Distance = mgl64.Clamp(o.Distance*factor, minDistance, maxDistance)
	return true
}

// Eye returns the camera position.
func (o *Orbit) Eye() mgl64.Vec3 {
	yaw := mgl64.DegToRad(o.Yaw)
	pitch := mgl64.DegToRad(o.Pitch)
	dir := mgl64.Vec3{
		math.Cos(pitch) * math.Sin(yaw),
		math.Sin(pitch),
		math.Cos(pitch) * math.Cos(yaw),
	}
	return o.Target.Add(dir.Mul(o.Distance))
}
