package scene

import (
	"fmt"
	"image/color"
	"log"
	"sort"
	"strings"

	"github.com/chazu/bangle/pkg/kernel"
	"github.com/chazu/bangle/pkg/registry"
)

// colorPalette is a default palette used to assign distinct colors to parts.
var colorPalette = []color.RGBA{
	{0x4A, 0x90, 0xD9, 0xFF}, {0xE6, 0x7E, 0x22, 0xFF}, {0x2E, 0xCC, 0x71, 0xFF}, {0x9B, 0x59, 0xB6, 0xFF},
	{0xE7, 0x4C, 0x3C, 0xFF}, {0x1A, 0xBC, 0x9C, 0xFF}, {0xF3, 0x9C, 0x12, 0xFF}, {0x34, 0x98, 0xDB, 0xFF},
}

// MeshSource supplies meshes for asset references. Request asks for an
// asynchronous resolution; the caller re-syncs once the mesh arrives.
type MeshSource interface {
	Mesh(ref string) (*kernel.Mesh, bool)
	Request(ref string)
}

// InvariantViolation reports a registry/scene mismatch found after a diff
// pass. It signals a programming error; the reconciler recovers with a
// full re-sync.
type InvariantViolation struct {
	Missing    []registry.InstanceID // in the registry, no node, not awaiting a mesh
	Orphans    []NodeID              // instance node with no registry entry
	Duplicates []registry.InstanceID // more than one node for an instance
}

func (e *InvariantViolation) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing nodes for %v", e.Missing))
	}
	if len(e.Orphans) > 0 {
		parts = append(parts, fmt.Sprintf("orphan nodes %v", e.Orphans))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate nodes for %v", e.Duplicates))
	}
	return "scene invariant violation: " + strings.Join(parts, "; ")
}

// Reconciler keeps the instance nodes of a Graph equal to the contents of
// a Registry. It subscribes to the registry and runs synchronously inside
// every notification, so a frame never sees a half-applied change.
type Reconciler struct {
	graph  *Graph
	reg    *registry.Registry
	device Device
	meshes MeshSource
	log    *log.Logger

	awaiting map[registry.InstanceID]string
	resyncs  int
	unsub    func()
}

// NewReconciler wires a reconciler to reg and performs an initial sync.
// A nil logger selects log.Default().
func NewReconciler(g *Graph, reg *registry.Registry, dev Device, meshes MeshSource, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	r := &Reconciler{
		graph:    g,
		reg:      reg,
		device:   dev,
		meshes:   meshes,
		log:      logger,
		awaiting: make(map[registry.InstanceID]string),
	}
	r.unsub = reg.Subscribe(r.onChange)
	r.syncOrRecover()
	return r
}

// Close stops listening to the registry.
func (r *Reconciler) Close() {
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
}

func (r *Reconciler) onChange(c registry.Change) {
	if c.Kind == registry.ChangeMoved {
		if n, ok := r.graph.NodeFor(c.ID); ok {
			applyTransform(n, c.Instance)
			return
		}
	}
	r.syncOrRecover()
}

func (r *Reconciler) syncOrRecover() {
	if err := r.Sync(); err != nil {
		r.log.Printf("scene: %v; forcing full re-sync", err)
		r.Resync()
	}
}

// Sync diffs the registry against the graph. Orphaned instance nodes are
// removed with their resources released in the same pass; registry
// instances without a node are inserted when their mesh is available and
// requested otherwise. A mismatch remaining after the pass is returned as
// *InvariantViolation.
func (r *Reconciler) Sync() error {
	instances := r.reg.All()
	expected := make(map[registry.InstanceID]registry.Instance, len(instances))
	for _, inst := range instances {
		expected[inst.ID] = inst
	}

	var violation InvariantViolation
	seen := make(map[registry.InstanceID]bool)
	for _, n := range r.graph.InstanceNodes() {
		inst, ok := expected[n.Instance]
		switch {
		case !ok:
			r.drop(n)
		case seen[n.Instance]:
			violation.Duplicates = append(violation.Duplicates, n.Instance)
		default:
			seen[n.Instance] = true
			applyTransform(n, inst)
		}
	}

	for id := range r.awaiting {
		if _, ok := expected[id]; !ok {
			delete(r.awaiting, id)
		}
	}

	for _, inst := range instances {
		if seen[inst.ID] {
			continue
		}
		r.insert(inst)
	}

	r.verify(expected, &violation)
	if len(violation.Missing)+len(violation.Orphans)+len(violation.Duplicates) > 0 {
		return &violation
	}
	return nil
}

// Resync drops every instance node and rebuilds them from the registry.
func (r *Reconciler) Resync() {
	r.resyncs++
	for _, n := range r.graph.InstanceNodes() {
		r.drop(n)
	}
	r.awaiting = make(map[registry.InstanceID]string)
	for _, inst := range r.reg.All() {
		r.insert(inst)
	}
}

// Resyncs returns how many forced re-syncs have run.
func (r *Reconciler) Resyncs() int {
	return r.resyncs
}

// Awaiting returns the instances whose mesh has been requested but not
// yet delivered, in id order.
func (r *Reconciler) Awaiting() []registry.InstanceID {
	out := make([]registry.InstanceID, 0, len(r.awaiting))
	for id := range r.awaiting {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Reconciler) insert(inst registry.Instance) {
	ref := inst.Part.AssetRef
	mesh, ok := r.meshes.Mesh(ref)
	if !ok {
		if _, pending := r.awaiting[inst.ID]; !pending {
			r.awaiting[inst.ID] = ref
			r.meshes.Request(ref)
		}
		return
	}
	delete(r.awaiting, inst.ID)
	n := r.graph.insert(&Node{
		Name:     inst.Part.DisplayName(),
		Tag:      TagInstance,
		Kind:     NodeMesh,
		Instance: inst.ID,
		Geometry: r.device.NewGeometry(mesh),
		Material: r.device.NewMaterial(colorFor(inst.ID)),
	})
	applyTransform(n, inst)
}

func (r *Reconciler) drop(n *Node) {
	n.release()
	r.graph.remove(n.ID)
}

func (r *Reconciler) verify(expected map[registry.InstanceID]registry.Instance, v *InvariantViolation) {
	have := make(map[registry.InstanceID]bool)
	for _, n := range r.graph.InstanceNodes() {
		if _, ok := expected[n.Instance]; !ok {
			v.Orphans = append(v.Orphans, n.ID)
			continue
		}
		if n.Geometry == nil || n.Geometry.Disposed() {
			v.Missing = append(v.Missing, n.Instance)
		}
		have[n.Instance] = true
	}
	for id := range expected {
		if !have[id] {
			if _, pending := r.awaiting[id]; !pending {
				v.Missing = append(v.Missing, id)
			}
		}
	}
}

func applyTransform(n *Node, inst registry.Instance) {
	n.Position = inst.Position
	n.Rotation = inst.Rotation
	n.Scale = inst.Scale
}

func colorFor(id registry.InstanceID) color.RGBA {
	return colorPalette[uint64(id)%uint64(len(colorPalette))]
}
