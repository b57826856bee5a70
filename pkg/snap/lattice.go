// Package snap computes the attachment lattice along the strand and
// resolves where a dropped or dragged part comes to rest on it.
package snap

import "github.com/go-gl/mathgl/mgl64"

// Pinned coordinates of every snapped position. The strand runs along X;
// a snapped part sits on the strand's axis.
const (
	PinnedY = 0.0
	PinnedZ = 0.0
)

// Point is one attachment coordinate on the strand. Points carry no
// occupancy state; occupancy is derived from the placed instances when a
// query runs.
type Point struct {
	Index    int
	Position mgl64.Vec3
}

// Generate returns count points evenly spaced over strandLength, centered
// on the origin: x_i = (i - (count-1)/2) * strandLength/(count-1).
// count == 1 yields a single point at the origin; count <= 0 or a
// non-positive length yields no points.
func Generate(count int, strandLength float64) []Point {
	if count <= 0 || strandLength <= 0 {
		return nil
	}
	if count == 1 {
		return []Point{{Index: 0, Position: mgl64.Vec3{0, PinnedY, PinnedZ}}}
	}
	spacing := strandLength / float64(count-1)
	mid := float64(count-1) / 2
	points := make([]Point, count)
	for i := range points {
		points[i] = Point{
			Index:    i,
			Position: mgl64.Vec3{(float64(i) - mid) * spacing, PinnedY, PinnedZ},
		}
	}
	return points
}

// Lattice is the generated point set together with the parameters that
// produced it.
type Lattice struct {
	count  int
	length float64
	points []Point
}

// NewLattice generates a lattice.
func NewLattice(count int, strandLength float64) *Lattice {
	l := &Lattice{}
	l.Reset(count, strandLength)
	return l
}

// Reset discards the current points and generates a fresh set.
func (l *Lattice) Reset(count int, strandLength float64) {
	l.count = count
	l.length = strandLength
	l.points = Generate(count, strandLength)
}

// Points returns the points in index order. Callers must not modify the
// returned slice.
func (l *Lattice) Points() []Point {
	return l.points
}

// Len returns the number of points.
func (l *Lattice) Len() int {
	return len(l.points)
}

// At returns the point with index i.
func (l *Lattice) At(i int) (Point, bool) {
	if i < 0 || i >= len(l.points) {
		return Point{}, false
	}
	return l.points[i], true
}

// Spacing returns the distance between neighbouring points, or 0 when the
// lattice has fewer than two points.
func (l *Lattice) Spacing() float64 {
	if len(l.points) < 2 {
		return 0
	}
	return l.length / float64(l.count-1)
}

// StrandLength returns the usable length the lattice was generated over.
func (l *Lattice) StrandLength() float64 {
	return l.length
}
