// Package drag implements the pointer drag lifecycle for placed instances:
// pick up, optimistic moves, one snap attempt on release, and rollback on
// cancel.
package drag

import (
	"log"

	"github.com/chazu/bangle/pkg/registry"
	"github.com/chazu/bangle/pkg/snap"
	"github.com/go-gl/mathgl/mgl64"
)

// State is the controller's lifecycle state.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// Placer resolves the snap point for an instance at a candidate position.
type Placer interface {
	Place(self registry.InstanceID, candidate mgl64.Vec3) (snap.Point, bool)
}

// PlacerFunc adapts a function to Placer.
type PlacerFunc func(self registry.InstanceID, candidate mgl64.Vec3) (snap.Point, bool)

func (f PlacerFunc) Place(self registry.InstanceID, candidate mgl64.Vec3) (snap.Point, bool) {
	return f(self, candidate)
}

// OrbitControls is the camera control suspended while a drag is active.
type OrbitControls interface {
	Suspend()
	Resume()
}

// session holds the state of one drag. It exists only while dragging.
type session struct {
	target    registry.InstanceID
	origin    mgl64.Vec3
	position  mgl64.Vec3
	rotation  mgl64.Vec3
	scale     mgl64.Vec3
	snapped   bool
	snapIndex int
}

// Controller drives drags against a registry. It is not safe for
// concurrent use.
type Controller struct {
	reg    *registry.Registry
	placer Placer
	orbit  OrbitControls
	log    *log.Logger

	state   State
	session *session
}

// New returns an idle controller. orbit may be nil; a nil logger selects
// log.Default().
func New(reg *registry.Registry, placer Placer, orbit OrbitControls, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{reg: reg, placer: placer, orbit: orbit, log: logger}
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.state }

// Target returns the instance being dragged.
func (c *Controller) Target() (registry.InstanceID, bool) {
	if c.session == nil {
		return 0, false
	}
	return c.session.target, true
}

// PointerDown picks up instance id with the pointer at the given
// drag-plane position. A missing instance leaves the controller idle.
func (c *Controller) PointerDown(id registry.InstanceID, pointer mgl64.Vec3) bool {
	if c.state == Dragging {
		c.Cancel()
	}
	inst, ok := c.reg.Get(id)
	if !ok {
		c.reset()
		return false
	}
	c.session = &session{
		target:    id,
		origin:    pointer,
		position:  inst.Position,
		rotation:  inst.Rotation,
		scale:     inst.Scale,
		snapped:   inst.Snapped,
		snapIndex: inst.SnapIndex,
	}
	c.state = Dragging
	if c.orbit != nil {
		c.orbit.Suspend()
	}
	return true
}

// PointerMove moves the target by the pointer's displacement from where
// the drag began. The registry is updated immediately.
func (c *Controller) PointerMove(pointer mgl64.Vec3) bool {
	if c.state != Dragging {
		return false
	}
	s := c.session
	pos := s.position.Add(pointer.Sub(s.origin))
	if !c.reg.UpdatePosition(s.target, pos) {
		c.log.Printf("drag: %s vanished mid-drag", s.target)
		c.reset()
		return false
	}
	return true
}

// PointerUp ends the drag with one snap attempt at the final position.
// It reports whether the target snapped.
func (c *Controller) PointerUp() bool {
	if c.state != Dragging {
		return false
	}
	id := c.session.target
	c.reset()
	return c.Place(id)
}

// Cancel aborts the drag and restores the target's pre-drag transform.
func (c *Controller) Cancel() {
	if c.state != Dragging {
		return
	}
	s := c.session
	c.reg.Restore(s.target, s.position, s.rotation, s.scale, s.snapped, s.snapIndex)
	c.reset()
}

// Place runs a single snap attempt for id at its current position, as
// after a catalog drop. Without a free snap point in range the instance
// stays where it is.
func (c *Controller) Place(id registry.InstanceID) bool {
	inst, ok := c.reg.Get(id)
	if !ok || c.placer == nil {
		return false
	}
	p, ok := c.placer.Place(id, inst.Position)
	if !ok {
		return false
	}
	return c.reg.SetSnap(id, p.Position, p.Index)
}

func (c *Controller) reset() {
	if c.state == Dragging && c.orbit != nil {
		c.orbit.Resume()
	}
	c.state = Idle
	c.session = nil
}
