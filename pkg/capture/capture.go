// Package capture turns a snapshot of the workspace scene into a PNG
// artifact. Rendering and encoding run off the caller's goroutine and are
// bounded by a timeout.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/chazu/bangle/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultTimeout is the hard limit for a single capture.
const DefaultTimeout = 5 * time.Second

// ErrCaptureTimeout is returned when rendering and encoding do not finish
// within the service timeout.
var ErrCaptureTimeout = errors.New("capture timed out")

// ErrSuperseded is returned to a capture whose result arrived after a
// newer capture started. The newer capture carries the current scene, so
// callers should not retry.
var ErrSuperseded = errors.New("capture superseded by newer request")

var errInvalidSize = errors.New("capture size must be positive")

// Drawable is one mesh in a snapshot, with its world transform.
// Rotation is Euler angles in degrees applied X, then Y, then Z.
type Drawable struct {
	Mesh     *kernel.Mesh
	Color    color.RGBA
	Position mgl64.Vec3
	Rotation mgl64.Vec3
	Scale    mgl64.Vec3
}

// Camera describes the view the snapshot is rendered from.
type Camera struct {
	Eye    mgl64.Vec3
	Target mgl64.Vec3
	Up     mgl64.Vec3
	Fovy   float64 // degrees
}

// Snapshot is an immutable copy of what the scene shows at one instant.
type Snapshot struct {
	Camera     Camera
	Background color.RGBA
	Drawables  []Drawable
}

// Renderer rasterizes a snapshot.
type Renderer interface {
	Render(ctx context.Context, s Snapshot) (image.Image, error)
}

// Artifact is the product of a capture.
type Artifact struct {
	Filename string
	PNG      []byte
	TakenAt  time.Time
	Width    int
	Height   int
}

// Filename returns the artifact name for a capture taken at t, e.g.
// bracelet-design-2024-03-01T10-20-30.000Z.png.
func Filename(t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return "bracelet-design-" + strings.ReplaceAll(stamp, ":", "-") + ".png"
}

type captureResult struct {
	png    []byte
	bounds image.Rectangle
	err    error
}

// Service runs captures. It is safe for concurrent use; when captures
// overlap only the newest result is delivered.
type Service struct {
	Renderer Renderer
	Timeout  time.Duration
	Now      func() time.Time

	mu         sync.Mutex
	generation uint64
}

// NewService returns a service with the given renderer and timeout. A
// non-positive timeout selects DefaultTimeout.
func NewService(r Renderer, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{Renderer: r, Timeout: timeout, Now: time.Now}
}

// Capture renders s and encodes it as PNG. The snapshot must already be
// detached from live scene state. If the work does not finish within the
// timeout, ErrCaptureTimeout is returned and the late result is dropped.
func (s *Service) Capture(ctx context.Context, snap Snapshot) (Artifact, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	taken := now()

	renderCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan captureResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- captureResult{err: fmt.Errorf("panic during capture: %v", r)}
			}
		}()
		img, err := s.Renderer.Render(renderCtx, snap)
		if err != nil {
			ch <- captureResult{err: fmt.Errorf("render: %w", err)}
			return
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			ch <- captureResult{err: fmt.Errorf("encode png: %w", err)}
			return
		}
		ch <- captureResult{png: buf.Bytes(), bounds: img.Bounds()}
	}()

	res, err := s.wait(ctx, ch, gen)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Filename: Filename(taken),
		PNG:      res.png,
		TakenAt:  taken,
		Width:    res.bounds.Dx(),
		Height:   res.bounds.Dy(),
	}, nil
}

// wait blocks for the capture result, the timeout or ctx, whichever comes
// first. The generation check drops a result overtaken by a newer capture.
func (s *Service) wait(ctx context.Context, ch <-chan captureResult, gen uint64) (captureResult, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		s.mu.Lock()
		current := s.generation
		s.mu.Unlock()
		if gen != current {
			return captureResult{}, ErrSuperseded
		}
		return res, res.err
	case <-timer.C:
		return captureResult{}, fmt.Errorf("%w after %s", ErrCaptureTimeout, timeout)
	case <-ctx.Done():
		return captureResult{}, ctx.Err()
	}
}
