package registry

import (
	"testing"

	"github.com/chazu/bangle/pkg/catalog"
	"github.com/go-gl/mathgl/mgl64"
)

func pearl() Instance {
	return Instance{Part: catalog.Part{ID: "pearl", Name: "Pearl", AssetRef: "sdf:sphere:0.08"}}
}

func TestAddAssignsFreshIDs(t *testing.T) {
	r := New()
	a := r.Add(pearl())
	b := r.Add(Instance{ID: a.ID, Part: catalog.Part{ID: "star"}})
	if a.ID == 0 || b.ID == 0 {
		t.Fatal("ids must be non-zero")
	}
	if a.ID == b.ID {
		t.Fatal("Add reused an id supplied by the caller")
	}
	if a.Scale != (mgl64.Vec3{1, 1, 1}) {
		t.Errorf("default scale = %v, want (1,1,1)", a.Scale)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestIDsNeverReusedAfterRemoval(t *testing.T) {
	r := New()
	seen := map[InstanceID]bool{}
	for i := 0; i < 20; i++ {
		inst := r.Add(pearl())
		if seen[inst.ID] {
			t.Fatalf("id %s reused", inst.ID)
		}
		seen[inst.ID] = true
		if i%2 == 0 {
			r.Remove(inst.ID)
		}
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := New()
	inst := r.Add(pearl())
	if !r.Remove(inst.ID) {
		t.Fatal("first Remove should report true")
	}
	if r.Remove(inst.ID) {
		t.Error("second Remove should be a no-op")
	}
	if r.Remove(999) {
		t.Error("Remove of unknown id should be a no-op")
	}
	if _, ok := r.Get(inst.ID); ok {
		t.Error("removed instance still visible")
	}
}

func TestUpdatePositionUnknownIsNoop(t *testing.T) {
	r := New()
	calls := 0
	r.Subscribe(func(Change) { calls++ })
	if r.UpdatePosition(42, mgl64.Vec3{1, 0, 0}) {
		t.Error("UpdatePosition of unknown id should report false")
	}
	if r.SetSnap(42, mgl64.Vec3{}, 0) {
		t.Error("SetSnap of unknown id should report false")
	}
	if calls != 0 {
		t.Errorf("no-op mutations notified %d times", calls)
	}
}

func TestUpdatePositionAndSnap(t *testing.T) {
	r := New()
	inst := r.Add(pearl())
	r.SetSnap(inst.ID, mgl64.Vec3{0.5, 0, 0}, 70)
	got, _ := r.Get(inst.ID)
	if !got.Snapped || got.SnapIndex != 70 || got.Position.X() != 0.5 {
		t.Errorf("after SetSnap: %+v", got)
	}
	r.UpdatePosition(inst.ID, mgl64.Vec3{0.6, 0.1, 0})
	got, _ = r.Get(inst.ID)
	if got.Snapped {
		t.Error("UpdatePosition should clear the snapped flag")
	}
	if got.Position != (mgl64.Vec3{0.6, 0.1, 0}) {
		t.Errorf("position = %v", got.Position)
	}
}

func TestRestore(t *testing.T) {
	r := New()
	inst := r.Add(pearl())
	r.UpdatePosition(inst.ID, mgl64.Vec3{3, 3, 3})
	r.Restore(inst.ID, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 90, 0}, mgl64.Vec3{2, 2, 2}, true, 12)
	got, _ := r.Get(inst.ID)
	if got.Position != (mgl64.Vec3{1, 0, 0}) || got.Rotation != (mgl64.Vec3{0, 90, 0}) || got.Scale != (mgl64.Vec3{2, 2, 2}) {
		t.Errorf("restored transform = %+v", got)
	}
	if !got.Snapped || got.SnapIndex != 12 {
		t.Errorf("restored snap = %v/%d", got.Snapped, got.SnapIndex)
	}
}

func TestSubscribeOrderAndKinds(t *testing.T) {
	r := New()
	var kinds []ChangeKind
	var order []string
	r.Subscribe(func(c Change) {
		kinds = append(kinds, c.Kind)
		order = append(order, "a")
	})
	r.Subscribe(func(c Change) { order = append(order, "b") })

	inst := r.Add(pearl())
	r.UpdatePosition(inst.ID, mgl64.Vec3{1, 0, 0})
	r.Remove(inst.ID)

	want := []ChangeKind{ChangeAdded, ChangeMoved, ChangeRemoved}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
	for i := 0; i < len(order); i += 2 {
		if order[i] != "a" || order[i+1] != "b" {
			t.Fatalf("subscribers called out of order: %v", order)
		}
	}
}

func TestRemoveNotifiesBeforeEntryDropped(t *testing.T) {
	r := New()
	keep := r.Add(pearl())
	gone := r.Add(pearl())
	var visible []InstanceID
	var stillStored bool
	r.Subscribe(func(c Change) {
		if c.Kind != ChangeRemoved {
			return
		}
		for _, inst := range r.All() {
			visible = append(visible, inst.ID)
		}
		_, stillStored = r.entries[c.ID]
	})
	r.Remove(gone.ID)
	if len(visible) != 1 || visible[0] != keep.ID {
		t.Errorf("All() during removal = %v, want only %s", visible, keep.ID)
	}
	if !stillStored {
		t.Error("entry should still be stored while subscribers release resources")
	}
	if _, ok := r.entries[gone.ID]; ok {
		t.Error("entry should be dropped after notification")
	}
}

func TestUnsubscribe(t *testing.T) {
	r := New()
	calls := 0
	unsub := r.Subscribe(func(Change) { calls++ })
	r.Add(pearl())
	unsub()
	r.Add(pearl())
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestAllOrderedByID(t *testing.T) {
	r := New()
	for i := 0; i < 5; i++ {
		r.Add(pearl())
	}
	r.Remove(3)
	all := r.All()
	if len(all) != 4 {
		t.Fatalf("len(All()) = %d, want 4", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("All() not ordered: %v", all)
		}
	}
}
