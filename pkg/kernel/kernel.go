// Package kernel defines the abstract geometry kernel used to build the
// strand and part meshes. Implementations (sdfx) provide solid modeling
// behind this interface so the asset loader and workspace never depend on
// a particular backend.
package kernel

import "errors"

// ErrInvalidDimensions is returned when a primitive is requested with a
// non-positive size.
var ErrInvalidDimensions = errors.New("kernel: dimensions must be positive")

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
// All primitives are centered on the origin.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) (Solid, error)
	Cylinder(height, radius float64) (Solid, error) // axis along Z
	Sphere(radius float64) (Solid, error)

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
