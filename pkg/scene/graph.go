// Package scene holds the renderable scene graph and keeps it in step with
// the instance registry.
//
// Only the Reconciler adds or removes instance nodes. Fixed scenery (the
// strand, lights, grid and camera) is added once at setup with AddFixed
// and is never touched by reconciliation.
package scene

import (
	"github.com/chazu/bangle/pkg/registry"
	"github.com/go-gl/mathgl/mgl64"
)

// NodeID identifies a node in the graph.
type NodeID uint64

// Tag separates reconciled instance nodes from fixed scenery.
type Tag int

const (
	TagFixed Tag = iota
	TagInstance
)

// NodeKind says what a node renders as.
type NodeKind int

const (
	NodeMesh NodeKind = iota
	NodeLight
	NodeGrid
	NodeCamera
)

func (k NodeKind) String() string {
	switch k {
	case NodeMesh:
		return "mesh"
	case NodeLight:
		return "light"
	case NodeGrid:
		return "grid"
	case NodeCamera:
		return "camera"
	default:
		return "unknown"
	}
}

// Node is one element of the scene. Callers outside this package treat
// nodes as read-only.
type Node struct {
	ID       NodeID
	Name     string
	Tag      Tag
	Kind     NodeKind
	Instance registry.InstanceID // set when Tag == TagInstance

	Geometry Geometry // nil for lights, grid and camera
	Material Material

	Position mgl64.Vec3
	Rotation mgl64.Vec3 // Euler degrees
	Scale    mgl64.Vec3
}

// release disposes the node's drawable resources.
func (n *Node) release() {
	if n.Geometry != nil {
		n.Geometry.Dispose()
	}
	if n.Material != nil {
		n.Material.Dispose()
	}
}

// Graph is the set of nodes drawn each frame.
type Graph struct {
	last  NodeID
	nodes map[NodeID]*Node
	order []NodeID
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// AddFixed adds a scenery node that reconciliation never removes.
func (g *Graph) AddFixed(name string, kind NodeKind, geom Geometry, mat Material) *Node {
	return g.insert(&Node{
		Name:     name,
		Tag:      TagFixed,
		Kind:     kind,
		Geometry: geom,
		Material: mat,
		Scale:    mgl64.Vec3{1, 1, 1},
	})
}

func (g *Graph) insert(n *Node) *Node {
	g.last++
	n.ID = g.last
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return n
}

func (g *Graph) remove(id NodeID) {
	if _, ok := g.nodes[id]; !ok {
		return
	}
	delete(g.nodes, id)
	for i, o := range g.order {
		if o == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// InstanceNodes returns the nodes tagged with an instance id.
func (g *Graph) InstanceNodes() []*Node {
	var out []*Node
	for _, id := range g.order {
		if n := g.nodes[id]; n.Tag == TagInstance {
			out = append(out, n)
		}
	}
	return out
}

// Fixed returns the scenery nodes.
func (g *Graph) Fixed() []*Node {
	var out []*Node
	for _, id := range g.order {
		if n := g.nodes[id]; n.Tag == TagFixed {
			out = append(out, n)
		}
	}
	return out
}

// NodeFor returns the first node tagged with the instance id.
func (g *Graph) NodeFor(id registry.InstanceID) (*Node, bool) {
	for _, nid := range g.order {
		n := g.nodes[nid]
		if n.Tag == TagInstance && n.Instance == id {
			return n, true
		}
	}
	return nil, false
}

// InstanceIDs returns the set of instance ids that have a node.
func (g *Graph) InstanceIDs() map[registry.InstanceID]bool {
	out := make(map[registry.InstanceID]bool)
	for _, n := range g.nodes {
		if n.Tag == TagInstance {
			out[n.Instance] = true
		}
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Dispose releases every node, fixed scenery included. It is the teardown
// path; the graph is empty afterwards.
func (g *Graph) Dispose() {
	for _, id := range g.order {
		g.nodes[id].release()
	}
	g.nodes = make(map[NodeID]*Node)
	g.order = nil
}
