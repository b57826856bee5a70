// Package registry is the single source of truth for the parts placed in
// the current design. It assigns instance ids and notifies subscribers of
// every mutation; it never touches rendering state.
package registry

import (
	"fmt"
	"sort"

	"github.com/chazu/bangle/pkg/catalog"
	"github.com/go-gl/mathgl/mgl64"
)

// InstanceID identifies one placement. Ids are never reused.
type InstanceID uint64

// String returns a short printable form.
func (id InstanceID) String() string {
	return fmt.Sprintf("inst-%d", uint64(id))
}

// Instance is one placed copy of a catalog part.
type Instance struct {
	ID       InstanceID
	Part     catalog.Part
	Position mgl64.Vec3
	Rotation mgl64.Vec3 // Euler degrees
	Scale    mgl64.Vec3

	// Snapped is true while Position sits on lattice point SnapIndex.
	Snapped   bool
	SnapIndex int
}

// ChangeKind enumerates registry mutations.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeRemoved
	ChangeMoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// Change describes one mutation. Instance is the state after the change,
// or the last state for removals.
type Change struct {
	Kind     ChangeKind
	ID       InstanceID
	Instance Instance
}

type entry struct {
	inst     Instance
	retiring bool
}

// Registry holds placed instances. It is owned by a single goroutine and
// is not safe for concurrent use.
type Registry struct {
	last    InstanceID
	entries map[InstanceID]*entry
	subs    map[int]func(Change)
	subSeq  int
	subKeys []int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[InstanceID]*entry),
		subs:    make(map[int]func(Change)),
	}
}

// Subscribe registers fn to be called synchronously after every mutation,
// in subscription order. The returned function removes the subscription.
func (r *Registry) Subscribe(fn func(Change)) (unsubscribe func()) {
	r.subSeq++
	key := r.subSeq
	r.subs[key] = fn
	r.subKeys = append(r.subKeys, key)
	return func() {
		delete(r.subs, key)
		for i, k := range r.subKeys {
			if k == key {
				r.subKeys = append(r.subKeys[:i], r.subKeys[i+1:]...)
				break
			}
		}
	}
}

func (r *Registry) notify(c Change) {
	keys := append([]int(nil), r.subKeys...)
	for _, k := range keys {
		if fn, ok := r.subs[k]; ok {
			fn(c)
		}
	}
}

// Add records inst under a fresh id and returns the stored instance. Any
// id already set on inst is ignored. A zero scale becomes (1,1,1).
func (r *Registry) Add(inst Instance) Instance {
	r.last++
	inst.ID = r.last
	if inst.Scale == (mgl64.Vec3{}) {
		inst.Scale = mgl64.Vec3{1, 1, 1}
	}
	r.entries[inst.ID] = &entry{inst: inst}
	r.notify(Change{Kind: ChangeAdded, ID: inst.ID, Instance: inst})
	return inst
}

// Remove deletes the instance. Subscribers are notified while the entry is
// retiring (already invisible to Get and All) so scene resources are freed
// before the entry is dropped. Removing an absent id is a no-op.
func (r *Registry) Remove(id InstanceID) bool {
	e, ok := r.entries[id]
	if !ok || e.retiring {
		return false
	}
	e.retiring = true
	r.notify(Change{Kind: ChangeRemoved, ID: id, Instance: e.inst})
	delete(r.entries, id)
	return true
}

// UpdatePosition moves an instance off the lattice. Unknown ids are
// ignored.
func (r *Registry) UpdatePosition(id InstanceID, pos mgl64.Vec3) bool {
	e, ok := r.live(id)
	if !ok {
		return false
	}
	e.inst.Position = pos
	e.inst.Snapped = false
	e.inst.SnapIndex = 0
	r.notify(Change{Kind: ChangeMoved, ID: id, Instance: e.inst})
	return true
}

// SetSnap moves an instance onto lattice point index at pos. Unknown ids
// are ignored.
func (r *Registry) SetSnap(id InstanceID, pos mgl64.Vec3, index int) bool {
	e, ok := r.live(id)
	if !ok {
		return false
	}
	e.inst.Position = pos
	e.inst.Snapped = true
	e.inst.SnapIndex = index
	r.notify(Change{Kind: ChangeMoved, ID: id, Instance: e.inst})
	return true
}

// Restore puts back a full transform, as when a drag is rolled back.
func (r *Registry) Restore(id InstanceID, pos, rot, scale mgl64.Vec3, snapped bool, index int) bool {
	e, ok := r.live(id)
	if !ok {
		return false
	}
	e.inst.Position, e.inst.Rotation, e.inst.Scale = pos, rot, scale
	e.inst.Snapped, e.inst.SnapIndex = snapped, index
	r.notify(Change{Kind: ChangeMoved, ID: id, Instance: e.inst})
	return true
}

func (r *Registry) live(id InstanceID) (*entry, bool) {
	e, ok := r.entries[id]
	if !ok || e.retiring {
		return nil, false
	}
	return e, true
}

// Get returns a copy of the instance.
func (r *Registry) Get(id InstanceID) (Instance, bool) {
	e, ok := r.live(id)
	if !ok {
		return Instance{}, false
	}
	return e.inst, true
}

// Has reports whether id is live.
func (r *Registry) Has(id InstanceID) bool {
	_, ok := r.live(id)
	return ok
}

// All returns copies of all live instances ordered by id.
func (r *Registry) All() []Instance {
	out := make([]Instance, 0, len(r.entries))
	for _, e := range r.entries {
		if !e.retiring {
			out = append(out, e.inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live instances.
func (r *Registry) Len() int {
	n := 0
	for _, e := range r.entries {
		if !e.retiring {
			n++
		}
	}
	return n
}
