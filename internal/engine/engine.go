// Package engine ties the tree model, enrichment, graph projection, force
// layout and camera into one interactive unit. All graph state is guarded by
// a single mutex; the only async boundary is enrichment, which completes its
// tree mutation strictly before the projection reveals any children.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/repovis/repovis/internal/camera"
	"github.com/repovis/repovis/internal/enrich"
	"github.com/repovis/repovis/internal/graph"
	"github.com/repovis/repovis/internal/layout"
	"github.com/repovis/repovis/internal/tree"
)

// SelectionFunc is notified on every click, successful or not, so a details
// panel can react.
type SelectionFunc func(node *tree.Node)

// Snapshot is the read-only view handed to renderers each tick.
type Snapshot struct {
	Nodes  []graph.Node     `json:"nodes"`
	Edges  []graph.Edge     `json:"edges"`
	Camera camera.Transform `json:"camera"`
	Hover  string           `json:"hover,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithSelectionSink sets the click notification callback.
func WithSelectionSink(fn SelectionFunc) Option {
	return func(e *Engine) { e.onSelect = fn }
}

// WithLayoutConfig overrides the default force tuning.
func WithLayoutConfig(cfg layout.Config) Option {
	return func(e *Engine) { e.layoutCfg = cfg }
}

// WithViewport sets the viewport size the camera centers within.
func WithViewport(w, h float64) Option {
	return func(e *Engine) { e.viewW, e.viewH = w, h }
}

// WithSeed fixes the jitter seed, used by tests for determinism.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.seed = seed }
}

// Engine is the interactive graph engine.
type Engine struct {
	mu sync.Mutex

	store    *tree.Store
	enricher *enrich.Enricher
	proj     *graph.Projection
	sim      *layout.Simulation
	cam      *camera.Camera

	onSelect  SelectionFunc
	layoutCfg layout.Config
	viewW     float64
	viewH     float64
	seed      int64

	hoverID string
	dragID  string
}

// New creates an engine showing only the tree root.
func New(store *tree.Store, enricher *enrich.Enricher, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		enricher:  enricher,
		layoutCfg: layout.DefaultConfig(),
		viewW:     1280,
		viewH:     800,
		seed:      time.Now().UnixNano(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.proj = graph.NewProjection(store, e.seed)
	e.sim = layout.New(e.proj, e.layoutCfg)
	e.cam = camera.New(e.viewW, e.viewH)
	return e
}

// Tick advances the simulation and any camera animation by dt seconds.
func (e *Engine) Tick(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sim.Tick(dt)
	e.cam.Tick(dt)
}

// Snapshot returns a value copy of the current visual state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	nodes, edges := e.proj.Snapshot()
	return Snapshot{
		Nodes:  nodes,
		Edges:  edges,
		Camera: e.cam.Transform(),
		Hover:  e.hoverID,
	}
}

// Expand discloses the children of the node addressed by id. For an
// un-analyzed file it runs enrichment first, so the tree gains its symbol
// children before the projection reveals anything; concurrent expands of the
// same file share one in-flight analysis.
func (e *Engine) Expand(ctx context.Context, id string) error {
	node, err := e.store.Node(id)
	if err != nil {
		return err
	}

	if node.Kind == tree.KindFile && !node.Analyzed && !node.Unexpandable {
		// Async boundary: no engine lock held across the analysis call.
		if err := e.enricher.Enrich(ctx, id); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.proj.Expand(id); err != nil {
		return err
	}
	e.focusLocked(id)
	e.sim.Reheat()
	return nil
}

// Collapse hides the node's visible descendants and refocuses on it.
func (e *Engine) Collapse(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.proj.Collapse(id); err != nil {
		return err
	}
	e.focusLocked(id)
	e.sim.Reheat()
	return nil
}

// Click applies the disclosure semantics for the clicked node's kind:
// folders toggle, un-analyzed files enrich-then-expand, analyzed files with
// children toggle, and symbol nodes only focus the camera. The selection
// sink always fires.
func (e *Engine) Click(ctx context.Context, id string) error {
	node, err := e.store.Node(id)
	if err != nil {
		return err
	}
	if e.onSelect != nil {
		e.onSelect(node)
	}

	switch {
	case node.Kind == tree.KindFolder:
		return e.toggle(ctx, id)
	case node.Kind == tree.KindFile && !node.Analyzed && !node.Unexpandable:
		return e.Expand(ctx, id)
	case node.Kind == tree.KindFile && len(node.Children) > 0:
		return e.toggle(ctx, id)
	default:
		e.Focus(id)
		return nil
	}
}

func (e *Engine) toggle(ctx context.Context, id string) error {
	e.mu.Lock()
	gn, visible := e.proj.Node(id)
	expanded := visible && gn.Expanded
	e.mu.Unlock()

	if !visible {
		return fmt.Errorf("engine: node %s not visible", id)
	}
	if expanded {
		return e.Collapse(id)
	}
	return e.Expand(ctx, id)
}

// Focus animates the camera onto the node's current position.
func (e *Engine) Focus(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.focusLocked(id)
}

func (e *Engine) focusLocked(id string) {
	if gn, ok := e.proj.Node(id); ok {
		e.cam.Focus(gn.X, gn.Y)
	}
}

// StartDrag pins the node at its current position and reheats the solver.
func (e *Engine) StartDrag(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	gn, ok := e.proj.Node(id)
	if !ok {
		return
	}
	e.dragID = id
	gn.Pinned = true
	gn.PinX = gn.X
	gn.PinY = gn.Y
	e.sim.Reheat()
}

// Drag moves the pinned node to a new world position.
func (e *Engine) Drag(id string, x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dragID != id {
		return
	}
	if gn, ok := e.proj.Node(id); ok && gn.Pinned {
		gn.PinX = x
		gn.PinY = y
	}
}

// EndDrag releases the pin; the node rejoins normal dynamics.
func (e *Engine) EndDrag(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dragID != id {
		return
	}
	e.dragID = ""
	if gn, ok := e.proj.Node(id); ok {
		gn.Pinned = false
	}
	e.sim.Reheat()
}

// Hover records transient emphasis; it mutates no graph state.
func (e *Engine) Hover(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hoverID = id
}

// Pan shifts the camera by a screen-space delta, cancelling any focus
// animation.
func (e *Engine) Pan(dx, dy float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cam.Pan(dx, dy)
}

// Zoom scales the camera about a screen point, clamped to the zoom range.
func (e *Engine) Zoom(factor, cx, cy float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cam.Zoom(factor, cx, cy)
}

// Run drives the tick loop at the given rate until ctx is cancelled. onFrame
// receives a snapshot after every tick; pass nil to run headless.
func (e *Engine) Run(ctx context.Context, tickRate int, onFrame func(Snapshot)) {
	if tickRate <= 0 {
		tickRate = 30
	}
	interval := time.Second / time.Duration(tickRate)
	dt := interval.Seconds()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("engine: tick loop at %d/s", tickRate)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(dt)
			if onFrame != nil {
				onFrame(e.Snapshot())
			}
		}
	}
}
