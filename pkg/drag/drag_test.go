package drag_test

import (
	"testing"

	"github.com/chazu/bangle/pkg/catalog"
	"github.com/chazu/bangle/pkg/drag"
	"github.com/chazu/bangle/pkg/registry"
	"github.com/chazu/bangle/pkg/snap"
	"github.com/go-gl/mathgl/mgl64"
)

type fakeOrbit struct {
	suspended bool
	suspends  int
	resumes   int
}

func (o *fakeOrbit) Suspend() { o.suspended = true; o.suspends++ }
func (o *fakeOrbit) Resume()  { o.suspended = false; o.resumes++ }

// countingPlacer wraps a snap engine and counts attempts.
type countingPlacer struct {
	engine *snap.Engine
	reg    *registry.Registry
	calls  int
}

func (p *countingPlacer) Place(self registry.InstanceID, candidate mgl64.Vec3) (snap.Point, bool) {
	p.calls++
	var occ []snap.Occupant
	for _, inst := range p.reg.All() {
		occ = append(occ, snap.Occupant{ID: uint64(inst.ID), Position: inst.Position})
	}
	return p.engine.Find(candidate, occ, uint64(self))
}

func setup() (*registry.Registry, *countingPlacer, *fakeOrbit, *drag.Controller) {
	reg := registry.New()
	placer := &countingPlacer{
		engine: &snap.Engine{Lattice: snap.NewLattice(120, 5.5), Radius: 2.5, MinSeparation: 0.08},
		reg:    reg,
	}
	orbit := &fakeOrbit{}
	return reg, placer, orbit, drag.New(reg, placer, orbit, nil)
}

func addAt(reg *registry.Registry, pos mgl64.Vec3) registry.InstanceID {
	return reg.Add(registry.Instance{Part: catalog.Part{ID: "pearl", AssetRef: "sdf:sphere:0.1"}, Position: pos}).ID
}

func TestDragSnapsOnceAtRelease(t *testing.T) {
	reg, placer, orbit, c := setup()
	id := addAt(reg, mgl64.Vec3{1, 0.5, 0})

	if !c.PointerDown(id, mgl64.Vec3{1, 0.5, 0}) {
		t.Fatal("PointerDown failed")
	}
	if c.State() != drag.Dragging || !orbit.suspended {
		t.Fatalf("state = %v, orbit suspended = %v", c.State(), orbit.suspended)
	}
	for i := 0; i < 10; i++ {
		c.PointerMove(mgl64.Vec3{1 - 0.1*float64(i), 0.5, 0})
	}
	if placer.calls != 0 {
		t.Fatalf("placer called %d times during moves", placer.calls)
	}
	inst, _ := reg.Get(id)
	if inst.Snapped {
		t.Fatal("instance should be unsnapped while dragging")
	}

	if !c.PointerUp() {
		t.Fatal("expected a snap on release")
	}
	if placer.calls != 1 {
		t.Errorf("placer called %d times, want 1", placer.calls)
	}
	if c.State() != drag.Idle || orbit.suspended || orbit.resumes != 1 {
		t.Errorf("after release: state %v, orbit %+v", c.State(), orbit)
	}
	inst, _ = reg.Get(id)
	if !inst.Snapped || inst.Position.Y() != 0 || inst.Position.Z() != 0 {
		t.Errorf("instance not on the lattice: %+v", inst)
	}
}

func TestMovesUpdateRegistryWithOffset(t *testing.T) {
	reg, _, _, c := setup()
	id := addAt(reg, mgl64.Vec3{0.2, 0, 0})
	c.PointerDown(id, mgl64.Vec3{0.25, 0.1, 0})
	c.PointerMove(mgl64.Vec3{0.75, 0.6, 0})
	inst, _ := reg.Get(id)
	want := mgl64.Vec3{0.7, 0.5, 0}
	if !inst.Position.ApproxEqual(want) {
		t.Errorf("position = %v, want %v", inst.Position, want)
	}
}

func TestReleaseOutOfRangeStaysUnsnapped(t *testing.T) {
	reg, placer, _, c := setup()
	id := addAt(reg, mgl64.Vec3{0, 0, 0})
	c.PointerDown(id, mgl64.Vec3{})
	c.PointerMove(mgl64.Vec3{0, 10, 0})
	if c.PointerUp() {
		t.Fatal("snap should fail out of range")
	}
	inst, _ := reg.Get(id)
	if inst.Snapped || inst.Position != (mgl64.Vec3{0, 10, 0}) {
		t.Errorf("instance = %+v", inst)
	}
	if placer.calls != 1 {
		t.Errorf("placer called %d times, want 1", placer.calls)
	}
}

func TestCancelRestoresPreDragTransform(t *testing.T) {
	reg, placer, orbit, c := setup()
	id := addAt(reg, mgl64.Vec3{0.5, 0, 0})
	reg.SetSnap(id, mgl64.Vec3{0.5, 0, 0}, 71)

	c.PointerDown(id, mgl64.Vec3{})
	c.PointerMove(mgl64.Vec3{1, 1, 0})
	c.Cancel()

	inst, _ := reg.Get(id)
	if inst.Position != (mgl64.Vec3{0.5, 0, 0}) || !inst.Snapped || inst.SnapIndex != 71 {
		t.Errorf("instance after cancel = %+v", inst)
	}
	if placer.calls != 0 {
		t.Errorf("cancel ran %d snap attempts", placer.calls)
	}
	if c.State() != drag.Idle || orbit.suspended {
		t.Errorf("state %v, orbit suspended %v", c.State(), orbit.suspended)
	}
}

func TestMissingTargetFallsBackToIdle(t *testing.T) {
	reg, _, orbit, c := setup()
	if c.PointerDown(registry.InstanceID(42), mgl64.Vec3{}) {
		t.Fatal("PointerDown on missing instance should fail")
	}
	if c.State() != drag.Idle || orbit.suspends != 0 {
		t.Fatalf("state %v, suspends %d", c.State(), orbit.suspends)
	}

	id := addAt(reg, mgl64.Vec3{})
	c.PointerDown(id, mgl64.Vec3{})
	reg.Remove(id)
	if c.PointerMove(mgl64.Vec3{1, 0, 0}) {
		t.Error("move on removed target should fail")
	}
	if c.State() != drag.Idle || orbit.suspended {
		t.Errorf("state %v, orbit suspended %v", c.State(), orbit.suspended)
	}
	if c.PointerUp() {
		t.Error("PointerUp while idle should do nothing")
	}
}

func TestEventsWhileIdleAreIgnored(t *testing.T) {
	_, placer, _, c := setup()
	if c.PointerMove(mgl64.Vec3{1, 0, 0}) || c.PointerUp() {
		t.Fatal("idle controller accepted events")
	}
	c.Cancel()
	if placer.calls != 0 {
		t.Errorf("placer called %d times", placer.calls)
	}
}

func TestPlaceAfterDrop(t *testing.T) {
	reg, placer, _, c := setup()
	first := addAt(reg, mgl64.Vec3{0.05, 0, 0})
	if !c.Place(first) {
		t.Fatal("first drop did not snap")
	}
	second := addAt(reg, mgl64.Vec3{0.05, 0, 0})
	if !c.Place(second) {
		t.Fatal("second drop did not snap")
	}
	a, _ := reg.Get(first)
	b, _ := reg.Get(second)
	if a.SnapIndex != 61 || b.SnapIndex != 59 {
		t.Errorf("snap indices = %d, %d; want 61, 59", a.SnapIndex, b.SnapIndex)
	}
	if placer.calls != 2 {
		t.Errorf("placer called %d times, want 2", placer.calls)
	}
}

func TestPointerDownWhileDraggingCancelsPrevious(t *testing.T) {
	reg, _, orbit, c := setup()
	a := addAt(reg, mgl64.Vec3{0.3, 0, 0})
	b := addAt(reg, mgl64.Vec3{-0.3, 0, 0})
	c.PointerDown(a, mgl64.Vec3{})
	c.PointerMove(mgl64.Vec3{0, 1, 0})
	c.PointerDown(b, mgl64.Vec3{})
	inst, _ := reg.Get(a)
	if inst.Position != (mgl64.Vec3{0.3, 0, 0}) {
		t.Errorf("first target not restored: %v", inst.Position)
	}
	if got, _ := c.Target(); got != b {
		t.Errorf("target = %v, want %v", got, b)
	}
	if !orbit.suspended {
		t.Error("orbit should stay suspended for the new drag")
	}
}
