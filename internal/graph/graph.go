// Package graph maintains the visible projection of the codebase tree: the
// flat node/edge set the renderer sees. The visible set is always exactly the
// root plus every descendant reachable through expanded ancestors; expand and
// collapse keep that invariant without ever touching hidden tree data.
package graph

import (
	"fmt"
	"math/rand"

	"github.com/repovis/repovis/internal/tree"
)

// Node is the ephemeral visual counterpart of a visible tree node. It weakly
// references its tree node by id and carries only simulation state.
type Node struct {
	ID   string
	Name string
	Kind tree.Kind
	Size int64

	X, Y   float64
	VX, VY float64

	Pinned     bool
	PinX, PinY float64

	Expanded bool
	Depth    int // distance from the root in the projected graph
	Radius   float64
}

// Edge links a visible parent to a visible child.
type Edge struct {
	Source string
	Target string
}

// Projection is the visible subset of the tree. It owns the graph node and
// edge records; the layout engine mutates only their positions.
type Projection struct {
	store *tree.Store
	nodes map[string]*Node
	order []string // insertion order, kept stable for deterministic iteration
	edges []Edge
	rng   *rand.Rand
}

// spawnJitter bounds the random offset applied to newly revealed children so
// they never start exactly on top of their parent, which would degenerate the
// repulsion force.
const spawnJitter = 24.0

// NewProjection creates a projection showing only the tree root, placed at
// the origin.
func NewProjection(store *tree.Store, seed int64) *Projection {
	p := &Projection{
		store: store,
		nodes: make(map[string]*Node),
		rng:   rand.New(rand.NewSource(seed)),
	}
	root := store.Root()
	p.add(&Node{
		ID:     root.ID,
		Name:   root.Name,
		Kind:   root.Kind,
		Size:   root.Size,
		Depth:  0,
		Radius: radiusFor(root.Kind, 0),
	})
	return p
}

func (p *Projection) add(n *Node) {
	p.nodes[n.ID] = n
	p.order = append(p.order, n.ID)
}

// Node returns the graph node for id, if visible.
func (p *Projection) Node(id string) (*Node, bool) {
	n, ok := p.nodes[id]
	return n, ok
}

// Visible reports whether the node is currently in the graph.
func (p *Projection) Visible(id string) bool {
	_, ok := p.nodes[id]
	return ok
}

// Nodes returns the live graph nodes in insertion order. The layout engine
// iterates this slice every tick; callers must not retain it across
// topology changes.
func (p *Projection) Nodes() []*Node {
	out := make([]*Node, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.nodes[id])
	}
	return out
}

// Edges returns the current edge list.
func (p *Projection) Edges() []Edge {
	return p.edges
}

// Expand reveals the children of the tree node addressed by id. Children
// that are not yet in the graph spawn near the parent with a bounded random
// offset at depth parent+1; an edge is created per child. The node is marked
// expanded even when it has no children.
func (p *Projection) Expand(id string) error {
	parent, ok := p.nodes[id]
	if !ok {
		return fmt.Errorf("graph: expand: node %s not visible", id)
	}
	tn, err := p.store.Node(id)
	if err != nil {
		return fmt.Errorf("graph: expand: %w", err)
	}

	for _, cid := range tn.Children {
		if _, exists := p.nodes[cid]; !exists {
			ct, err := p.store.Node(cid)
			if err != nil {
				return fmt.Errorf("graph: expand child: %w", err)
			}
			p.add(&Node{
				ID:     cid,
				Name:   ct.Name,
				Kind:   ct.Kind,
				Size:   ct.Size,
				X:      parent.X + p.jitter(),
				Y:      parent.Y + p.jitter(),
				Depth:  parent.Depth + 1,
				Radius: radiusFor(ct.Kind, ct.Size),
			})
		}
		if !p.hasEdge(id, cid) {
			p.edges = append(p.edges, Edge{Source: id, Target: cid})
		}
	}

	parent.Expanded = true
	return nil
}

// Collapse hides every currently-visible descendant of id. The descendant
// set is derived by walking the live edge list, not the tree, so subtrees
// that were never revealed are left untouched. Collapsing a node with no
// visible children only clears its expanded flag.
func (p *Projection) Collapse(id string) error {
	n, ok := p.nodes[id]
	if !ok {
		return fmt.Errorf("graph: collapse: node %s not visible", id)
	}

	doomed := p.descendants(id)
	if len(doomed) > 0 {
		remaining := p.edges[:0]
		for _, e := range p.edges {
			if doomed[e.Source] || doomed[e.Target] {
				continue
			}
			remaining = append(remaining, e)
		}
		p.edges = remaining

		order := p.order[:0]
		for _, nid := range p.order {
			if doomed[nid] {
				delete(p.nodes, nid)
				continue
			}
			order = append(order, nid)
		}
		p.order = order
	}

	n.Expanded = false
	return nil
}

// descendants walks the edge list breadth-first from id and returns every
// reachable node id, excluding id itself.
func (p *Projection) descendants(id string) map[string]bool {
	out := make(map[string]bool)
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range p.edges {
			if e.Source == cur && !out[e.Target] {
				out[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}
	return out
}

func (p *Projection) hasEdge(src, dst string) bool {
	for _, e := range p.edges {
		if e.Source == src && e.Target == dst {
			return true
		}
	}
	return false
}

func (p *Projection) jitter() float64 {
	return (p.rng.Float64()*2 - 1) * spawnJitter
}

// Snapshot returns value copies of the current nodes and edges, safe to hand
// to a renderer on another goroutine.
func (p *Projection) Snapshot() ([]Node, []Edge) {
	nodes := make([]Node, 0, len(p.order))
	for _, id := range p.order {
		nodes = append(nodes, *p.nodes[id])
	}
	edges := make([]Edge, len(p.edges))
	copy(edges, p.edges)
	return nodes, edges
}

// radiusFor sizes a node's visual radius by kind. File radii grow slightly
// with byte size; the scaling is cosmetic and does not feed any force.
func radiusFor(kind tree.Kind, size int64) float64 {
	switch kind {
	case tree.KindFolder:
		return 16
	case tree.KindFile:
		r := 12.0
		if size > 4096 {
			r = 14
		}
		if size > 65536 {
			r = 16
		}
		return r
	default:
		return 8
	}
}
