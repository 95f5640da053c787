// Package layout runs the force relaxation that assigns positions to graph
// nodes. It is an aesthetic layout, not a physics engine: every force applies
// a soft fractional correction per tick, and the whole system cools along an
// alpha energy value until it falls asleep. Topology changes reheat it.
package layout

import (
	"math"

	"github.com/repovis/repovis/internal/graph"
	"github.com/repovis/repovis/internal/tree"
)

// Config tunes the simulation. Zero values are replaced by DefaultConfig.
type Config struct {
	LinkStrength float64 // fraction of the ideal-distance correction applied per tick
	Repulsion    float64 // base pairwise repulsion scale
	Gravity      float64 // pull toward the origin
	Damping      float64 // velocity retained per tick

	CollisionPadding float64 // label clearance added to node radii
	CollisionPasses  int

	AlphaDecay  float64 // fraction of alpha lost per tick
	AlphaMin    float64 // below this the simulation sleeps
	ReheatAlpha float64 // alpha injected on topology changes
}

// DefaultConfig returns the tuning used by the visualizer.
func DefaultConfig() Config {
	return Config{
		LinkStrength:     0.08,
		Repulsion:        2200,
		Gravity:          0.015,
		Damping:          0.85,
		CollisionPadding: 10,
		CollisionPasses:  2,
		AlphaDecay:       0.025,
		AlphaMin:         0.003,
		ReheatAlpha:      1.0,
	}
}

// linkDistance is the target separation for an edge, chosen by the kind of
// the child end: symbols hug their file, files sit at medium range, folders
// spread the coarse structure out first.
func linkDistance(target tree.Kind) float64 {
	switch target {
	case tree.KindFolder:
		return 170
	case tree.KindFile:
		return 95
	default:
		return 42
	}
}

// chargeFor scales repulsion by kind so that folders push the large-scale
// structure apart before leaf symbols negotiate their spacing.
func chargeFor(kind tree.Kind) float64 {
	switch kind {
	case tree.KindFolder:
		return 3.0
	case tree.KindFile:
		return 1.4
	default:
		return 0.5
	}
}

// Simulation relaxes the projection's node positions. It mutates only the
// position and velocity fields of graph nodes, never the topology.
type Simulation struct {
	cfg   Config
	proj  *graph.Projection
	alpha float64
}

// New creates a simulation over the given projection, starting hot.
func New(proj *graph.Projection, cfg Config) *Simulation {
	if cfg.Damping == 0 {
		cfg = DefaultConfig()
	}
	return &Simulation{cfg: cfg, proj: proj, alpha: cfg.ReheatAlpha}
}

// Reheat injects energy so the solver resumes relaxing, e.g. after an expand
// or a drag. Already-settled regions drift only slightly because corrections
// stay proportional to local error.
func (s *Simulation) Reheat() {
	s.alpha = s.cfg.ReheatAlpha
}

// Active reports whether the simulation still carries enough energy to move
// nodes. A sleeping simulation's Tick is a no-op.
func (s *Simulation) Active() bool {
	return s.alpha > s.cfg.AlphaMin
}

// Alpha returns the current energy value.
func (s *Simulation) Alpha() float64 {
	return s.alpha
}

// Tick advances the relaxation by one step. dt is accepted for interface
// symmetry with the camera but the solver is iteration-based: forces are
// scaled by alpha, not wall time.
func (s *Simulation) Tick(dt float64) {
	if !s.Active() {
		return
	}

	nodes := s.proj.Nodes()
	edges := s.proj.Edges()

	s.applyLinks(nodes, edges)
	s.applyRepulsion(nodes)
	s.applyGravity(nodes)
	s.integrate(nodes)
	for i := 0; i < s.cfg.CollisionPasses; i++ {
		s.applyCollision(nodes)
	}

	s.alpha *= 1 - s.cfg.AlphaDecay
}

func (s *Simulation) applyLinks(nodes []*graph.Node, edges []graph.Edge) {
	for _, e := range edges {
		src, ok := s.proj.Node(e.Source)
		if !ok {
			continue
		}
		dst, ok := s.proj.Node(e.Target)
		if !ok {
			continue
		}
		dx := dst.X - src.X
		dy := dst.Y - src.Y
		d := math.Hypot(dx, dy)
		if d < 1e-6 {
			continue
		}
		ideal := linkDistance(dst.Kind)
		f := (d - ideal) / d * s.cfg.LinkStrength * s.alpha
		fx, fy := dx*f, dy*f
		src.VX += fx / 2
		src.VY += fy / 2
		dst.VX -= fx / 2
		dst.VY -= fy / 2
	}
}

func (s *Simulation) applyRepulsion(nodes []*graph.Node) {
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			a, b := nodes[i], nodes[j]
			dx := b.X - a.X
			dy := b.Y - a.Y
			d2 := dx*dx + dy*dy
			if d2 < 1 {
				d2 = 1
			}
			charge := math.Sqrt(chargeFor(a.Kind) * chargeFor(b.Kind))
			f := s.cfg.Repulsion * charge / d2 * s.alpha
			d := math.Sqrt(d2)
			fx, fy := dx/d*f, dy/d*f
			a.VX -= fx
			a.VY -= fy
			b.VX += fx
			b.VY += fy
		}
	}
}

func (s *Simulation) applyGravity(nodes []*graph.Node) {
	for _, n := range nodes {
		n.VX -= n.X * s.cfg.Gravity * s.alpha
		n.VY -= n.Y * s.cfg.Gravity * s.alpha
	}
}

// applyCollision separates overlapping pairs by direct positional
// correction. Run in multiple passes per tick for stability.
func (s *Simulation) applyCollision(nodes []*graph.Node) {
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			a, b := nodes[i], nodes[j]
			minSep := a.Radius + b.Radius + s.cfg.CollisionPadding
			dx := b.X - a.X
			dy := b.Y - a.Y
			d := math.Hypot(dx, dy)
			if d >= minSep {
				continue
			}
			if d < 1e-6 {
				// Exactly coincident; nudge along x.
				dx, dy, d = 1, 0, 1
			}
			overlap := (minSep - d) / 2
			ux, uy := dx/d, dy/d
			if !a.Pinned {
				a.X -= ux * overlap
				a.Y -= uy * overlap
			}
			if !b.Pinned {
				b.X += ux * overlap
				b.Y += uy * overlap
			}
		}
	}
}

func (s *Simulation) integrate(nodes []*graph.Node) {
	for _, n := range nodes {
		if n.Pinned {
			// Dragged nodes are held at the pin position and carry no
			// velocity into the frame where the drag ends.
			n.X = n.PinX
			n.Y = n.PinY
			n.VX = 0
			n.VY = 0
			continue
		}
		n.VX *= s.cfg.Damping
		n.VY *= s.cfg.Damping
		n.X += n.VX
		n.Y += n.VY
	}
}

// Energy returns the total kinetic energy of the unpinned nodes, mostly
// useful for tests asserting that a settled layout stays settled.
func (s *Simulation) Energy() float64 {
	var e float64
	for _, n := range s.proj.Nodes() {
		if n.Pinned {
			continue
		}
		e += n.VX*n.VX + n.VY*n.VY
	}
	return e
}
