// Package asset resolves part asset references to renderable meshes.
//
// A Loader is a blocking call; Start wraps it into a single-shot future so
// the workspace can keep handling input while a mesh is being built.
package asset

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/bangle/pkg/kernel"
)

// ErrAsset is wrapped by every resolution failure.
var ErrAsset = errors.New("asset error")

// Loader resolves an asset reference to a mesh.
type Loader interface {
	Resolve(ctx context.Context, ref string) (*kernel.Mesh, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, ref string) (*kernel.Mesh, error)

// Resolve calls f.
func (f LoaderFunc) Resolve(ctx context.Context, ref string) (*kernel.Mesh, error) {
	return f(ctx, ref)
}

// Result is the single resolution of a Start call.
type Result struct {
	Ref  string
	Mesh *kernel.Mesh
	Err  error
}

// Start resolves ref on a new goroutine. The returned channel receives
// exactly one Result and is never closed. A panic inside the loader is
// converted to an ErrAsset failure.
func Start(ctx context.Context, l Loader, ref string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- Result{Ref: ref, Err: fmt.Errorf("%w: panic resolving %q: %v", ErrAsset, ref, r)}
			}
		}()
		mesh, err := l.Resolve(ctx, ref)
		switch {
		case err != nil && !errors.Is(err, ErrAsset):
			err = fmt.Errorf("%w: %q: %w", ErrAsset, ref, err)
		case err == nil && (mesh == nil || mesh.IsEmpty()):
			err = fmt.Errorf("%w: %q resolved to an empty mesh", ErrAsset, ref)
		}
		ch <- Result{Ref: ref, Mesh: mesh, Err: err}
	}()
	return ch
}

// Cache holds resolved meshes by reference. It is owned by the workspace
// goroutine and is not safe for concurrent use.
type Cache struct {
	meshes map[string]*kernel.Mesh
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{meshes: make(map[string]*kernel.Mesh)}
}

// Mesh returns the cached mesh for ref.
func (c *Cache) Mesh(ref string) (*kernel.Mesh, bool) {
	m, ok := c.meshes[ref]
	return m, ok
}

// Put stores a resolved mesh.
func (c *Cache) Put(ref string, m *kernel.Mesh) {
	c.meshes[ref] = m
}

// Len returns the number of cached meshes.
func (c *Cache) Len() int {
	return len(c.meshes)
}
