package snap

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Occupant is a placed part as seen by the placement engine.
type Occupant struct {
	ID       uint64
	Position mgl64.Vec3
}

// Project pins a position onto the attachment axis.
func Project(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{p.X(), PinnedY, PinnedZ}
}

// FindSnap returns the free point nearest to candidate.
//
// A point is a candidate when it lies within radius of candidate
// (Euclidean distance on the full vector). It is occupied when any
// occupant other than self, projected onto the attachment axis, lies
// closer than minSeparation. Among free candidates the nearest wins; ties
// go to the lower index. ok is false when nothing qualifies, which is an
// ordinary outcome.
func FindSnap(candidate mgl64.Vec3, points []Point, occupants []Occupant, self uint64, radius, minSeparation float64) (Point, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range points {
		d := p.Position.Sub(candidate).Len()
		if d > radius {
			continue
		}
		if occupied(p, occupants, self, minSeparation) {
			continue
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Point{}, false
	}
	return points[best], true
}

func occupied(p Point, occupants []Occupant, self uint64, minSeparation float64) bool {
	for _, o := range occupants {
		if o.ID == self {
			continue
		}
		if Project(o.Position).Sub(p.Position).Len() < minSeparation {
			return true
		}
	}
	return false
}

// Engine binds a lattice to the snapping parameters of a workspace.
type Engine struct {
	Lattice       *Lattice
	Radius        float64
	MinSeparation float64
}

// Find runs FindSnap over the engine's lattice.
func (e *Engine) Find(candidate mgl64.Vec3, occupants []Occupant, self uint64) (Point, bool) {
	return FindSnap(candidate, e.Lattice.Points(), occupants, self, e.Radius, e.MinSeparation)
}
