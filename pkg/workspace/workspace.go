// Package workspace ties the bracelet editor together: catalog drops,
// asynchronous asset loading, the instance registry, snapping, the scene
// graph and capture all hang off one Workspace value.
//
// A Workspace is owned by a single goroutine (the UI loop). Asset loads
// run in the background and are applied on the owner goroutine by Frame
// or Settle.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log"
	"math"
	"time"

	"github.com/chazu/bangle/pkg/asset"
	"github.com/chazu/bangle/pkg/capture"
	"github.com/chazu/bangle/pkg/catalog"
	"github.com/chazu/bangle/pkg/config"
	"github.com/chazu/bangle/pkg/drag"
	"github.com/chazu/bangle/pkg/handoff"
	"github.com/chazu/bangle/pkg/kernel"
	"github.com/chazu/bangle/pkg/registry"
	"github.com/chazu/bangle/pkg/scene"
	"github.com/chazu/bangle/pkg/snap"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// StrandRadius is the radius of the strand cylinder in strand units.
const StrandRadius = 0.03

var (
	strandColor     = color.RGBA{0xC8, 0xB8, 0x9A, 0xFF}
	backgroundColor = color.RGBA{0x1E, 0x1E, 0x1E, 0xFF}
)

// ErrUnknownPart is returned when a drop names a part the catalog lacks.
var ErrUnknownPart = errors.New("unknown part")

// ErrClosed is returned by operations on a closed workspace.
var ErrClosed = errors.New("workspace closed")

// StrandMeshCells returns a marching-cubes resolution fine enough to mesh
// a strand of the given length at StrandRadius.
func StrandMeshCells(length float64) int {
	return int(math.Ceil(length / (StrandRadius / 2)))
}

// Options configures a Workspace. Loader is required; other fields have
// defaults.
type Options struct {
	Config       config.Config
	Loader       asset.Loader
	Catalog      *catalog.Catalog
	StrandKernel kernel.Kernel    // nil leaves the strand without geometry
	Device       scene.Device     // nil selects a SoftwareDevice
	Renderer     capture.Renderer // nil selects a SoftwareRenderer
	Logger       *log.Logger
}

type pendingDrop struct {
	part     catalog.Part
	position mgl64.Vec3
}

// Workspace is the editing context for one bracelet design.
type Workspace struct {
	id     string
	cfg    config.Config
	log    *log.Logger
	ctx    context.Context
	cancel context.CancelFunc

	catalog *catalog.Catalog
	loader  asset.Loader
	cache   *asset.Cache
	loads   map[string]<-chan asset.Result
	drops   []pendingDrop

	lattice *snap.Lattice
	snapper *snap.Engine
	reg     *registry.Registry

	graph   *scene.Graph
	device  scene.Device
	rec     *scene.Reconciler
	orbit   *scene.Orbit
	strand  *scene.Node
	kernel  kernel.Kernel
	drag    *drag.Controller
	capture *capture.Service

	notices   []Notice
	noticeSeq int
	closed    bool
}

// New builds a workspace with an empty registry, the strand and the fixed
// scenery in place.
func New(opts Options) (*Workspace, error) {
	if opts.Loader == nil {
		return nil, fmt.Errorf("workspace: an asset loader is required")
	}
	cfg := opts.Config.WithDefaults()
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.New()
	}
	device := opts.Device
	if device == nil {
		device = scene.NewSoftwareDevice()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = capture.NewSoftwareRenderer(cfg.CaptureWidth, cfg.CaptureHeight)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Workspace{
		id:      uuid.NewString(),
		cfg:     cfg,
		log:     logger,
		ctx:     ctx,
		cancel:  cancel,
		catalog: cat,
		loader:  opts.Loader,
		cache:   asset.NewCache(),
		loads:   make(map[string]<-chan asset.Result),
		lattice: snap.NewLattice(cfg.SnapPointCount, cfg.StrandLength),
		reg:     registry.New(),
		graph:   scene.NewGraph(),
		device:  device,
		orbit:   scene.NewOrbit(cfg.StrandLength * 1.2),
		kernel:  opts.StrandKernel,
		capture: capture.NewService(renderer, cfg.CaptureTimeout),
	}
	w.snapper = &snap.Engine{Lattice: w.lattice, Radius: cfg.SnapRadius, MinSeparation: cfg.MinSeparation}

	w.strand = w.graph.AddFixed("strand", scene.NodeMesh, nil, w.device.NewMaterial(strandColor))
	w.rebuildStrand()
	w.graph.AddFixed("ambient-light", scene.NodeLight, nil, nil)
	w.graph.AddFixed("key-light", scene.NodeLight, nil, nil)
	w.graph.AddFixed("grid", scene.NodeGrid, nil, nil)
	w.graph.AddFixed("camera", scene.NodeCamera, nil, nil)

	w.rec = scene.NewReconciler(w.graph, w.reg, w.device, meshSource{w}, logger)
	w.drag = drag.New(w.reg, w, w.orbit, logger)
	return w, nil
}

// ID returns the design id.
func (w *Workspace) ID() string { return w.id }

// Registry exposes the instance registry for read access.
func (w *Workspace) Registry() *registry.Registry { return w.reg }

// Graph exposes the scene graph for read access.
func (w *Workspace) Graph() *scene.Graph { return w.graph }

// Lattice exposes the snap lattice.
func (w *Workspace) Lattice() *snap.Lattice { return w.lattice }

// Orbit exposes the camera orbit control.
func (w *Workspace) Orbit() *scene.Orbit { return w.orbit }

// Catalog returns the parts available for dropping.
func (w *Workspace) Catalog() *catalog.Catalog { return w.catalog }

// Reconciler exposes the scene reconciler.
func (w *Workspace) Reconciler() *scene.Reconciler { return w.rec }

// DragState returns the drag controller state.
func (w *Workspace) DragState() drag.State { return w.drag.State() }

// Place implements drag.Placer: it resolves the snap point for self at
// candidate against every other instance's current position.
func (w *Workspace) Place(self registry.InstanceID, candidate mgl64.Vec3) (snap.Point, bool) {
	all := w.reg.All()
	occupants := make([]snap.Occupant, 0, len(all))
	for _, inst := range all {
		occupants = append(occupants, snap.Occupant{ID: uint64(inst.ID), Position: inst.Position})
	}
	return w.snapper.Find(candidate, occupants, uint64(self))
}

// Drop handles a catalog drag payload released at position. A malformed
// payload is logged and ignored. When the part's mesh is cached the
// instance is created and snapped immediately; otherwise the drop waits
// for the asset load.
func (w *Workspace) Drop(payload []byte, position mgl64.Vec3) error {
	part, err := catalog.ParsePayload(payload)
	if err != nil {
		w.log.Printf("workspace: ignoring drop: %v", err)
		return err
	}
	_, err = w.DropPart(part, position)
	return err
}

// DropByID drops the catalog part with the given id.
func (w *Workspace) DropByID(partID string, position mgl64.Vec3) (registry.InstanceID, error) {
	part, ok := w.catalog.Lookup(partID)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPart, partID)
	}
	return w.DropPart(part, position)
}

// DropPart drops part at position. It returns the new instance id, or 0
// when the instance is waiting for its mesh. Drops are instantiated in
// the order they were made, so a drop never overtakes an earlier one that
// is still loading.
func (w *Workspace) DropPart(part catalog.Part, position mgl64.Vec3) (registry.InstanceID, error) {
	if w.closed {
		return 0, ErrClosed
	}
	if _, ok := w.cache.Mesh(part.AssetRef); ok && len(w.drops) == 0 {
		return w.instantiate(part, position), nil
	}
	w.drops = append(w.drops, pendingDrop{part: part, position: position})
	w.request(part.AssetRef)
	return 0, nil
}

// PendingDrops returns the number of drops waiting for a mesh.
func (w *Workspace) PendingDrops() int { return len(w.drops) }

// drain instantiates queued drops from the front while their meshes are
// cached.
func (w *Workspace) drain() {
	for len(w.drops) > 0 {
		d := w.drops[0]
		if _, ok := w.cache.Mesh(d.part.AssetRef); !ok {
			return
		}
		w.drops = w.drops[1:]
		w.instantiate(d.part, d.position)
	}
}

// instantiate registers a part and runs the post-drop snap attempt.
func (w *Workspace) instantiate(part catalog.Part, position mgl64.Vec3) registry.InstanceID {
	inst := registry.Instance{Part: part, Position: position}
	if t := part.DefaultTransform; t != nil {
		inst.Rotation = mgl64.Vec3(t.Rotation)
		inst.Scale = mgl64.Vec3(t.Scale)
	}
	inst = w.reg.Add(inst)
	w.drag.Place(inst.ID)
	return inst.ID
}

func (w *Workspace) request(ref string) {
	if _, inflight := w.loads[ref]; inflight {
		return
	}
	if _, ok := w.cache.Mesh(ref); ok {
		return
	}
	w.loads[ref] = asset.Start(w.ctx, w.loader, ref)
}

// Pending returns the number of asset loads in flight.
func (w *Workspace) Pending() int { return len(w.loads) }

// Frame applies every asset load that has completed since the last call.
// It never blocks and returns the number of loads applied.
func (w *Workspace) Frame() int {
	applied := 0
	for ref, ch := range w.loads {
		select {
		case res := <-ch:
			w.complete(ref, res)
			applied++
		default:
		}
	}
	if applied > 0 && len(w.rec.Awaiting()) > 0 {
		w.resync()
	}
	return applied
}

// Settle blocks until every asset load in flight has been applied or ctx
// is done.
func (w *Workspace) Settle(ctx context.Context) error {
	for len(w.loads) > 0 {
		for ref, ch := range w.loads {
			select {
			case res := <-ch:
				w.complete(ref, res)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if len(w.rec.Awaiting()) > 0 {
		w.resync()
	}
	return nil
}

func (w *Workspace) complete(ref string, res asset.Result) {
	delete(w.loads, ref)

	if res.Err != nil {
		w.log.Printf("workspace: %v", res.Err)
		name := ref
		kept := w.drops[:0]
		for _, d := range w.drops {
			if d.part.AssetRef == ref {
				name = d.part.DisplayName()
				continue
			}
			kept = append(kept, d)
		}
		w.drops = kept
		w.notify(fmt.Sprintf("Could not load %s", name), res.Err)
		w.drain()
		return
	}
	w.cache.Put(ref, res.Mesh)
	w.drain()
}

func (w *Workspace) resync() {
	if err := w.rec.Sync(); err != nil {
		w.log.Printf("workspace: %v; forcing full re-sync", err)
		w.rec.Resync()
	}
}

// PointerDown starts dragging instance id from the drag-plane point
// pointer.
func (w *Workspace) PointerDown(id registry.InstanceID, pointer mgl64.Vec3) bool {
	return w.drag.PointerDown(id, pointer)
}

// PointerMove continues the active drag.
func (w *Workspace) PointerMove(pointer mgl64.Vec3) bool {
	return w.drag.PointerMove(pointer)
}

// PointerUp ends the active drag and reports whether the target snapped.
func (w *Workspace) PointerUp() bool {
	return w.drag.PointerUp()
}

// CancelDrag aborts the active drag, restoring the target.
func (w *Workspace) CancelDrag() {
	w.drag.Cancel()
}

// OrbitBy rotates the camera unless a drag holds the pointer.
func (w *Workspace) OrbitBy(dYaw, dPitch float64) bool {
	return w.orbit.Rotate(dYaw, dPitch)
}

// ZoomBy scales the camera distance unless a drag holds the pointer.
func (w *Workspace) ZoomBy(factor float64) bool {
	return w.orbit.Zoom(factor)
}

// Remove deletes an instance, releasing its scene resources first. An
// active drag on the instance is cancelled.
func (w *Workspace) Remove(id registry.InstanceID) bool {
	if target, ok := w.drag.Target(); ok && target == id {
		w.drag.Cancel()
	}
	return w.reg.Remove(id)
}

// Clear removes every instance and drops pending catalog drops.
func (w *Workspace) Clear() int {
	w.drag.Cancel()
	w.drops = nil
	n := 0
	for _, inst := range w.reg.All() {
		if w.reg.Remove(inst.ID) {
			n++
		}
	}
	return n
}

// ResetLattice regenerates the snap points and the strand. Instances keep
// their positions but are no longer considered snapped.
func (w *Workspace) ResetLattice(count int, length float64) error {
	if count < 1 || length <= 0 {
		return fmt.Errorf("workspace: invalid lattice %d x %g", count, length)
	}
	w.drag.Cancel()
	w.lattice.Reset(count, length)
	w.cfg.SnapPointCount, w.cfg.StrandLength = count, length
	for _, inst := range w.reg.All() {
		if inst.Snapped {
			w.reg.UpdatePosition(inst.ID, inst.Position)
		}
	}
	w.rebuildStrand()
	return nil
}

func (w *Workspace) rebuildStrand() {
	if w.strand.Geometry != nil {
		w.strand.Geometry.Dispose()
		w.strand.Geometry = nil
	}
	if w.kernel == nil {
		return
	}
	mesh, err := strandMesh(w.kernel, w.cfg.StrandLength)
	if err != nil {
		w.log.Printf("workspace: strand: %v", err)
		w.notify("Could not build the strand", err)
		return
	}
	w.strand.Geometry = w.device.NewGeometry(mesh)
}

// strandMesh builds a cylinder of the given length along the X axis.
func strandMesh(k kernel.Kernel, length float64) (*kernel.Mesh, error) {
	cyl, err := k.Cylinder(length, StrandRadius)
	if err != nil {
		return nil, err
	}
	mesh, err := k.ToMesh(k.Rotate(cyl, 0, 90, 0))
	if err != nil {
		return nil, err
	}
	mesh.Name = "strand"
	return mesh, nil
}

// Snapshot copies what the scene currently shows into a capture snapshot.
func (w *Workspace) Snapshot() capture.Snapshot {
	s := capture.Snapshot{
		Camera: capture.Camera{
			Eye:    w.orbit.Eye(),
			Target: w.orbit.Target,
			Up:     mgl64.Vec3{0, 1, 0},
			Fovy:   w.orbit.Fovy,
		},
		Background: backgroundColor,
	}
	for _, n := range w.graph.Nodes() {
		if n.Kind != scene.NodeMesh || n.Geometry == nil || n.Geometry.Disposed() {
			continue
		}
		var c color.RGBA
		if n.Material != nil {
			c = n.Material.Color()
		}
		s.Drawables = append(s.Drawables, capture.Drawable{
			Mesh:     n.Geometry.Mesh(),
			Color:    c,
			Position: n.Position,
			Rotation: n.Rotation,
			Scale:    n.Scale,
		})
	}
	return s
}

// CaptureJob is a capture detached from the workspace. Run touches only
// the snapshot taken by PrepareCapture, so it may run while the owner
// goroutine keeps editing.
type CaptureJob struct {
	svc  *capture.Service
	snap capture.Snapshot
}

// Run renders and encodes the snapshot, bounded by the capture timeout.
func (j CaptureJob) Run(ctx context.Context) (capture.Artifact, error) {
	return j.svc.Capture(ctx, j.snap)
}

// PrepareCapture snapshots the scene for a capture that runs off the
// owner goroutine. Report failures of the job with CaptureFailed.
func (w *Workspace) PrepareCapture() (CaptureJob, error) {
	if w.closed {
		return CaptureJob{}, ErrClosed
	}
	return CaptureJob{svc: w.capture, snap: w.Snapshot()}, nil
}

// CaptureFailed logs a failed capture and posts a notice. A capture
// overtaken by a newer one is not reported.
func (w *Workspace) CaptureFailed(err error) {
	if err == nil || errors.Is(err, capture.ErrSuperseded) {
		return
	}
	w.log.Printf("workspace: capture: %v", err)
	w.notify("Could not capture the design", err)
}

// Capture renders the current scene to a PNG artifact. Failures and
// timeouts are also posted as notices.
func (w *Workspace) Capture(ctx context.Context) (capture.Artifact, error) {
	job, err := w.PrepareCapture()
	if err != nil {
		return capture.Artifact{}, err
	}
	art, err := job.Run(ctx)
	if err != nil {
		w.CaptureFailed(err)
		return capture.Artifact{}, err
	}
	return art, nil
}

// Summary describes the current design for checkout.
func (w *Workspace) Summary(artifactKey string) handoff.Summary {
	return handoff.Summarize(w.id, w.reg.All(), artifactKey, time.Now())
}

// Close cancels outstanding loads and releases every scene resource.
func (w *Workspace) Close() {
	if w.closed {
		return
	}
	w.closed = true
	w.cancel()
	w.drag.Cancel()
	w.rec.Close()
	w.graph.Dispose()
	w.loads = make(map[string]<-chan asset.Result)
	w.drops = nil
}

// meshSource adapts the workspace cache and loader to scene.MeshSource.
type meshSource struct{ w *Workspace }

func (m meshSource) Mesh(ref string) (*kernel.Mesh, bool) { return m.w.cache.Mesh(ref) }

func (m meshSource) Request(ref string) { m.w.request(ref) }
