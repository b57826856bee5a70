package asset

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/bangle/pkg/kernel"
)

// Prefix marks asset references the procedural loader understands.
const Prefix = "sdf:"

// ProceduralLoader builds part meshes from compact shape references using
// a geometry kernel:
//
//	sdf:sphere:<radius>
//	sdf:box:<x>:<y>:<z>
//	sdf:cylinder:<height>:<radius>
//	sdf:charm:<size>       a flat tile hanging from a ring
//	sdf:spacer:<radius>:<thickness>
//
// Sizes are in strand units.
type ProceduralLoader struct {
	k kernel.Kernel
}

// NewProceduralLoader returns a loader backed by k.
func NewProceduralLoader(k kernel.Kernel) *ProceduralLoader {
	return &ProceduralLoader{k: k}
}

// Resolve implements Loader.
func (l *ProceduralLoader) Resolve(ctx context.Context, ref string) (*kernel.Mesh, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrAsset, ref, err)
	}
	solid, err := l.solid(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrAsset, ref, err)
	}
	mesh, err := l.k.ToMesh(solid)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrAsset, ref, err)
	}
	mesh.Name = ref
	return mesh, nil
}

func (l *ProceduralLoader) solid(ref string) (kernel.Solid, error) {
	if !strings.HasPrefix(ref, Prefix) {
		return nil, fmt.Errorf("unsupported reference scheme")
	}
	fields := strings.Split(strings.TrimPrefix(ref, Prefix), ":")
	shape := fields[0]
	args, err := parseFloats(fields[1:])
	if err != nil {
		return nil, err
	}

	switch shape {
	case "sphere":
		if err := wantArgs(shape, args, 1); err != nil {
			return nil, err
		}
		return l.k.Sphere(args[0])
	case "box":
		if err := wantArgs(shape, args, 3); err != nil {
			return nil, err
		}
		return l.k.Box(args[0], args[1], args[2])
	case "cylinder":
		if err := wantArgs(shape, args, 2); err != nil {
			return nil, err
		}
		return l.k.Cylinder(args[0], args[1])
	case "spacer":
		if err := wantArgs(shape, args, 2); err != nil {
			return nil, err
		}
		// A disc threaded on the strand: axis along X.
		disc, err := l.k.Cylinder(args[1], args[0])
		if err != nil {
			return nil, err
		}
		return l.k.Rotate(disc, 0, 90, 0), nil
	case "charm":
		if err := wantArgs(shape, args, 1); err != nil {
			return nil, err
		}
		return l.charm(args[0])
	default:
		return nil, fmt.Errorf("unknown shape %q", shape)
	}
}

// charm is a thin square tile hanging below a small ring around the strand.
func (l *ProceduralLoader) charm(size float64) (kernel.Solid, error) {
	tile, err := l.k.Box(size, size, size/5)
	if err != nil {
		return nil, err
	}
	ring, err := l.k.Cylinder(size/4, size/4)
	if err != nil {
		return nil, err
	}
	ring = l.k.Rotate(ring, 0, 90, 0)
	return l.k.Union(ring, l.k.Translate(tile, 0, -size*0.6, 0)), nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("bad dimension %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}

func wantArgs(shape string, args []float64, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s takes %d dimensions, got %d", shape, n, len(args))
	}
	return nil
}
