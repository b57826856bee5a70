package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"image/color"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/chazu/bangle/pkg/artifact"
	"github.com/chazu/bangle/pkg/asset"
	"github.com/chazu/bangle/pkg/catalog"
	"github.com/chazu/bangle/pkg/config"
	"github.com/chazu/bangle/pkg/handoff"
	"github.com/chazu/bangle/pkg/kernel/sdfx"
	"github.com/chazu/bangle/pkg/recipe"
	"github.com/chazu/bangle/pkg/registry"
	"github.com/chazu/bangle/pkg/workspace"
	"github.com/go-gl/mathgl/mgl64"
)

// Checkout network calls are bounded so a stalled store or queue only
// fails the checkout.
const (
	uploadTimeout  = 30 * time.Second
	publishTimeout = 5 * time.Second
)

//go:embed examples/catalog.yaml
var defaultCatalog []byte

// App is the Wails backend. It exposes methods to the frontend via bindings.
// Bindings run on arbitrary goroutines; mu serializes access to the
// workspace, which is single-owner.
type App struct {
	ctx context.Context

	mu        sync.Mutex
	ws        *workspace.Workspace
	recipes   *recipe.Engine
	store     artifact.Store
	publisher handoff.Publisher
}

// PartData is a catalog entry as shown in the parts panel.
type PartData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	AssetRef string `json:"assetRef"`
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	AssetRef string    `json:"assetRef"`
}

// InstanceData is one placed part as the frontend draws it.
type InstanceData struct {
	ID        uint64     `json:"id"`
	PartID    string     `json:"partId"`
	Name      string     `json:"name"`
	AssetRef  string     `json:"assetRef"`
	Position  [3]float64 `json:"position"`
	Rotation  [3]float64 `json:"rotation"`
	Scale     [3]float64 `json:"scale"`
	Snapped   bool       `json:"snapped"`
	SnapIndex int        `json:"snapIndex"`
	Color     string     `json:"color"`
}

// DropResult reports the outcome of a catalog drop.
type DropResult struct {
	InstanceID uint64 `json:"instanceId"`
	Pending    bool   `json:"pending"`
	Error      string `json:"error,omitempty"`
}

// EvalErrorData is a JSON-serializable recipe error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// RecipeResult is returned from RunRecipe.
type RecipeResult struct {
	Commands int             `json:"commands"`
	Errors   []EvalErrorData `json:"errors"`
}

// CaptureResult carries a capture to the frontend for download.
type CaptureResult struct {
	Filename string `json:"filename"`
	PNG      []byte `json:"png"`
	Error    string `json:"error,omitempty"`
}

// CheckoutResult is returned from Checkout.
type CheckoutResult struct {
	Summary     handoff.Summary `json:"summary"`
	ArtifactKey string          `json:"artifactKey"`
	Published   bool            `json:"published"`
	Error       string          `json:"error,omitempty"`
}

// NewApp creates an App from cfg: a procedural sdfx asset loader, the
// configured catalog, artifact store and checkout publisher.
func NewApp(cfg config.Config) (*App, error) {
	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	ws, err := workspace.New(workspace.Options{
		Config:       cfg,
		Loader:       asset.NewProceduralLoader(sdfx.New(cfg.MeshCells)),
		Catalog:      cat,
		StrandKernel: sdfx.New(workspace.StrandMeshCells(cfg.StrandLength)),
	})
	if err != nil {
		return nil, err
	}

	var store artifact.Store = artifact.NewDirStore(cfg.ArtifactDir)
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		log.Printf("Using MinIO bucket %q for captures", cfg.MinioBucket)
		ms, err := artifact.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			ws.Close()
			return nil, err
		}
		store = ms
	}

	var pub handoff.Publisher
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for checkout handoff")
		rp, err := handoff.NewRedisPublisher(cfg.RedisURL, cfg.HandoffKey)
		if err != nil {
			ws.Close()
			return nil, err
		}
		pub = rp
	}

	return newApp(ws, store, pub), nil
}

func newApp(ws *workspace.Workspace, store artifact.Store, pub handoff.Publisher) *App {
	return &App{
		ws:        ws,
		recipes:   recipe.NewEngine(),
		store:     store,
		publisher: pub,
	}
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Parse(defaultCatalog)
	}
	return catalog.LoadFile(path)
}

// startup is called by Wails on app startup. The context is saved
// so we can call Wails runtime methods later if needed.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	if ms, ok := a.store.(*artifact.MinioStore); ok {
		if err := ms.EnsureBucket(ctx); err != nil {
			log.Printf("MinIO bucket check failed: %v", err)
		}
	}
}

// shutdown releases the workspace and the publisher connection.
func (a *App) shutdown(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ws.Close()
	if c, ok := a.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			log.Printf("Publisher close error: %v", err)
		}
	}
}

// Catalog lists the parts that can be dragged onto the strand.
func (a *App) Catalog() []PartData {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []PartData{}
	for _, p := range a.ws.Catalog().Parts() {
		out = append(out, PartData{ID: p.ID, Name: p.DisplayName(), Category: p.Category, AssetRef: p.AssetRef})
	}
	return out
}

// DropPart handles a catalog drop. payload is the JSON drag payload; x, y,
// z is the drop point on the drag plane.
func (a *App) DropPart(payload string, x, y, z float64) DropResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	part, err := catalog.ParsePayload([]byte(payload))
	if err != nil {
		log.Printf("DropPart: ignoring payload: %v", err)
		return DropResult{Error: err.Error()}
	}
	id, err := a.ws.DropPart(part, mgl64.Vec3{x, y, z})
	if err != nil {
		return DropResult{Error: err.Error()}
	}
	return DropResult{InstanceID: uint64(id), Pending: id == 0}
}

// Frame applies finished asset loads. The frontend calls it from its
// render loop and redraws when it returns a positive count.
func (a *App) Frame() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ws.Frame()
}

// PointerDown starts dragging an instance.
func (a *App) PointerDown(id uint64, x, y, z float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ws.PointerDown(registry.InstanceID(id), mgl64.Vec3{x, y, z})
}

// PointerMove continues the active drag.
func (a *App) PointerMove(x, y, z float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ws.PointerMove(mgl64.Vec3{x, y, z})
}

// PointerUp ends the active drag and reports whether the part snapped.
func (a *App) PointerUp() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ws.PointerUp()
}

// CancelDrag aborts the active drag.
func (a *App) CancelDrag() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ws.CancelDrag()
}

// Orbit rotates the camera; it is ignored while a drag is active.
func (a *App) Orbit(dYaw, dPitch float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ws.OrbitBy(dYaw, dPitch)
}

// Zoom scales the camera distance; it is ignored while a drag is active.
func (a *App) Zoom(factor float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ws.ZoomBy(factor)
}

// Remove deletes an instance.
func (a *App) Remove(id uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ws.Remove(registry.InstanceID(id))
}

// Clear removes every instance.
func (a *App) Clear() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ws.Clear()
}

// Instances returns the placed parts with their scene colors.
func (a *App) Instances() []InstanceData {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []InstanceData{}
	for _, inst := range a.ws.Registry().All() {
		d := InstanceData{
			ID:        uint64(inst.ID),
			PartID:    inst.Part.ID,
			Name:      inst.Part.DisplayName(),
			AssetRef:  inst.Part.AssetRef,
			Position:  inst.Position,
			Rotation:  inst.Rotation,
			Scale:     inst.Scale,
			Snapped:   inst.Snapped,
			SnapIndex: inst.SnapIndex,
		}
		if n, ok := a.ws.Graph().NodeFor(inst.ID); ok && n.Material != nil {
			d.Color = hexColor(n.Material.Color())
		}
		out = append(out, d)
	}
	return out
}

// Mesh returns the geometry for an asset reference once it has loaded.
func (a *App) Mesh(assetRef string) (MeshData, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, n := range a.ws.Graph().InstanceNodes() {
		inst, ok := a.ws.Registry().Get(n.Instance)
		if !ok || inst.Part.AssetRef != assetRef || n.Geometry == nil {
			continue
		}
		m := n.Geometry.Mesh()
		return MeshData{Vertices: m.Vertices, Normals: m.Normals, Indices: m.Indices, AssetRef: assetRef}, nil
	}
	return MeshData{}, fmt.Errorf("no mesh loaded for %q", assetRef)
}

// Notices returns the undismissed user-facing errors.
func (a *App) Notices() []workspace.Notice {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ws.Notices()
}

// Dismiss removes a notice.
func (a *App) Dismiss(id int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ws.Dismiss(id)
}

// RunRecipe evaluates a design recipe and replays it into the workspace.
func (a *App) RunRecipe(source string) RecipeResult {
	result := RecipeResult{Errors: []EvalErrorData{}}

	rec, evalErrs, err := a.recipes.Evaluate(source)
	if err != nil {
		log.Printf("RunRecipe fatal error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return result
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ws.Apply(rec); err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
	}
	result.Commands = len(rec.Commands)
	return result
}

// Capture renders the design to PNG for download. Only the snapshot is
// taken under the workspace lock; editing continues while it renders.
func (a *App) Capture() CaptureResult {
	ctx := a.context()
	a.mu.Lock()
	job, err := a.ws.PrepareCapture()
	a.mu.Unlock()
	if err != nil {
		return CaptureResult{Error: err.Error()}
	}

	art, err := job.Run(ctx)
	if err != nil {
		a.captureFailed(err)
		return CaptureResult{Error: err.Error()}
	}
	return CaptureResult{Filename: art.Filename, PNG: art.PNG}
}

// Checkout captures the design, stores the image and hands the design
// summary to the order queue. The design is read under the workspace
// lock; rendering, upload and publish run without it.
func (a *App) Checkout() CheckoutResult {
	ctx := a.context()
	a.mu.Lock()
	job, err := a.ws.PrepareCapture()
	summary := a.ws.Summary("")
	designID := a.ws.ID()
	store, pub := a.store, a.publisher
	a.mu.Unlock()

	result := CheckoutResult{Summary: summary}
	if err != nil {
		result.Error = err.Error()
		return result
	}

	art, err := job.Run(ctx)
	if err != nil {
		a.captureFailed(err)
		result.Error = err.Error()
		return result
	}

	key, err := artifact.ObjectKey(designID, art.Filename)
	if err == nil {
		uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
		key, err = store.Put(uploadCtx, key, art.PNG)
		cancel()
	}
	if err != nil {
		log.Printf("Checkout artifact error: %v", err)
		result.Error = err.Error()
		return result
	}
	result.ArtifactKey = key
	result.Summary.ArtifactKey = key

	if pub == nil {
		return result
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := pub.Publish(pubCtx, result.Summary); err != nil {
		log.Printf("Checkout publish error: %v", err)
		result.Error = err.Error()
		return result
	}
	result.Published = true
	return result
}

func (a *App) captureFailed(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ws.CaptureFailed(err)
}

// SummaryJSON returns the current design summary as JSON.
func (a *App) SummaryJSON() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, err := json.Marshal(a.ws.Summary(""))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (a *App) context() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return context.Background()
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
