package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/repovis/repovis/internal/enrich"
	"github.com/repovis/repovis/internal/tree"
)

type stubAnalyzer struct {
	mu      sync.Mutex
	calls   int
	result  *enrich.Analysis
	err     error
	release chan struct{} // when non-nil, Analyze blocks until closed
}

func (s *stubAnalyzer) Analyze(ctx context.Context, name, content string) (*enrich.Analysis, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.release != nil {
		<-s.release
	}
	return s.result, s.err
}

func (s *stubAnalyzer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubFetcher struct{ content string }

func (s *stubFetcher) Fetch(ctx context.Context, node *tree.Node) (string, error) {
	return s.content, nil
}

// newTestEngine builds repo/src/main.ts with the given analyzer behind the
// enricher and a fixed jitter seed.
func newTestEngine(t *testing.T, analyzer enrich.Analyzer, opts ...Option) (*Engine, *tree.Store) {
	t.Helper()
	store := tree.NewStore(&tree.Node{ID: "repo", Name: "repo", Kind: tree.KindFolder, Children: []string{}})
	src := &tree.Node{Name: "src", Kind: tree.KindFolder, Children: []string{}}
	if err := store.AttachChildren("repo", []*tree.Node{src}); err != nil {
		t.Fatal(err)
	}
	if err := store.AttachChildren("repo/src", []*tree.Node{{Name: "main.ts", Kind: tree.KindFile}}); err != nil {
		t.Fatal(err)
	}

	enricher := enrich.New(store, analyzer, &stubFetcher{content: "export function run() {}"}, nil)
	opts = append([]Option{WithSeed(1)}, opts...)
	return New(store, enricher, opts...), store
}

func oneSymbol() *enrich.Analysis {
	return &enrich.Analysis{
		Summary: "entry point",
		Items:   []enrich.Item{{Name: "run", Kind: "function", Description: "starts the app"}},
	}
}

func visible(s Snapshot) map[string]bool {
	out := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		out[n.ID] = true
	}
	return out
}

func TestEngine_InitialSnapshot(t *testing.T) {
	e, _ := newTestEngine(t, &stubAnalyzer{result: oneSymbol()})
	s := e.Snapshot()
	if len(s.Nodes) != 1 || s.Nodes[0].ID != "repo" {
		t.Errorf("initial snapshot nodes = %v, want just repo", s.Nodes)
	}
	if s.Camera.Scale != 1 {
		t.Errorf("initial camera scale = %f, want 1", s.Camera.Scale)
	}
}

func TestClick_FolderToggles(t *testing.T) {
	e, _ := newTestEngine(t, &stubAnalyzer{result: oneSymbol()})
	ctx := context.Background()

	if err := e.Click(ctx, "repo"); err != nil {
		t.Fatalf("Click(repo) error: %v", err)
	}
	if v := visible(e.Snapshot()); !v["repo/src"] {
		t.Error("clicking a collapsed folder did not expand it")
	}

	if err := e.Click(ctx, "repo"); err != nil {
		t.Fatalf("second Click(repo) error: %v", err)
	}
	if v := visible(e.Snapshot()); v["repo/src"] {
		t.Error("clicking an expanded folder did not collapse it")
	}
}

func TestClick_FileEnrichesBeforeReveal(t *testing.T) {
	analyzer := &stubAnalyzer{result: oneSymbol(), release: make(chan struct{})}
	e, store := newTestEngine(t, analyzer)
	ctx := context.Background()

	if err := e.Click(ctx, "repo"); err != nil {
		t.Fatal(err)
	}
	if err := e.Click(ctx, "repo/src"); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Click(ctx, "repo/src/main.ts") }()

	// While the analysis is in flight the engine must stay responsive and
	// must not show any symbol yet.
	time.Sleep(20 * time.Millisecond)
	e.Tick(1.0 / 60)
	if v := visible(e.Snapshot()); v["repo/src/main.ts#run"] {
		t.Fatal("symbol revealed before analysis completed")
	}

	close(analyzer.release)
	if err := <-done; err != nil {
		t.Fatalf("Click(file) error: %v", err)
	}

	node, _ := store.Node("repo/src/main.ts")
	if !node.Analyzed {
		t.Error("file not analyzed after click")
	}
	if v := visible(e.Snapshot()); !v["repo/src/main.ts#run"] {
		t.Error("symbol not revealed after analysis completed")
	}
}

func TestClick_AnalyzedFileToggles(t *testing.T) {
	analyzer := &stubAnalyzer{result: oneSymbol()}
	e, _ := newTestEngine(t, analyzer)
	ctx := context.Background()

	for _, id := range []string{"repo", "repo/src", "repo/src/main.ts"} {
		if err := e.Click(ctx, id); err != nil {
			t.Fatalf("Click(%s) error: %v", id, err)
		}
	}
	if v := visible(e.Snapshot()); !v["repo/src/main.ts#run"] {
		t.Fatal("first file click did not reveal the symbol")
	}

	if err := e.Click(ctx, "repo/src/main.ts"); err != nil {
		t.Fatalf("collapse click error: %v", err)
	}
	if v := visible(e.Snapshot()); v["repo/src/main.ts#run"] {
		t.Error("clicking an expanded analyzed file did not collapse it")
	}
	if got := analyzer.callCount(); got != 1 {
		t.Errorf("analyzer called %d times, want 1", got)
	}

	// Re-expand comes from the tree, not a fresh analysis.
	if err := e.Click(ctx, "repo/src/main.ts"); err != nil {
		t.Fatalf("re-expand click error: %v", err)
	}
	if v := visible(e.Snapshot()); !v["repo/src/main.ts#run"] {
		t.Error("re-expanding an analyzed file did not reveal its symbols")
	}
	if got := analyzer.callCount(); got != 1 {
		t.Errorf("re-expand triggered %d analyzer calls, want still 1", got)
	}
}

func TestClick_SymbolOnlyFocuses(t *testing.T) {
	e, _ := newTestEngine(t, &stubAnalyzer{result: oneSymbol()})
	ctx := context.Background()
	for _, id := range []string{"repo", "repo/src", "repo/src/main.ts"} {
		if err := e.Click(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	before := visible(e.Snapshot())

	if err := e.Click(ctx, "repo/src/main.ts#run"); err != nil {
		t.Fatalf("Click(symbol) error: %v", err)
	}
	if after := visible(e.Snapshot()); len(after) != len(before) {
		t.Errorf("clicking a symbol changed the visible set: %v -> %v", before, after)
	}
}

func TestClick_EnrichmentFailureLeavesGraphUntouched(t *testing.T) {
	analyzer := &stubAnalyzer{err: fmt.Errorf("provider down")}
	e, store := newTestEngine(t, analyzer)
	ctx := context.Background()

	if err := e.Click(ctx, "repo"); err != nil {
		t.Fatal(err)
	}
	if err := e.Click(ctx, "repo/src"); err != nil {
		t.Fatal(err)
	}

	err := e.Click(ctx, "repo/src/main.ts")
	if !errors.Is(err, enrich.ErrEnrichment) {
		t.Fatalf("Click(file) error = %v, want ErrEnrichment", err)
	}

	node, _ := store.Node("repo/src/main.ts")
	if node.Analyzed {
		t.Error("failed enrichment marked the file analyzed")
	}
	// The file stays visible but unexpanded; a retry succeeds.
	analyzer.mu.Lock()
	analyzer.err = nil
	analyzer.result = oneSymbol()
	analyzer.mu.Unlock()
	if err := e.Click(ctx, "repo/src/main.ts"); err != nil {
		t.Fatalf("retry click error: %v", err)
	}
	if v := visible(e.Snapshot()); !v["repo/src/main.ts#run"] {
		t.Error("retry did not reveal the symbol")
	}
}

func TestClick_NotFound(t *testing.T) {
	e, _ := newTestEngine(t, &stubAnalyzer{result: oneSymbol()})
	if err := e.Click(context.Background(), "repo/ghost"); !errors.Is(err, tree.ErrNotFound) {
		t.Errorf("Click(missing) error = %v, want tree.ErrNotFound", err)
	}
}

func TestSelectionSink_AlwaysFires(t *testing.T) {
	var mu sync.Mutex
	var selected []string
	sink := func(n *tree.Node) {
		mu.Lock()
		selected = append(selected, n.ID)
		mu.Unlock()
	}

	analyzer := &stubAnalyzer{err: fmt.Errorf("provider down")}
	e, _ := newTestEngine(t, analyzer, WithSelectionSink(sink))
	ctx := context.Background()

	e.Click(ctx, "repo")
	e.Click(ctx, "repo/src")
	e.Click(ctx, "repo/src/main.ts") // enrichment fails; sink still fires

	mu.Lock()
	defer mu.Unlock()
	want := []string{"repo", "repo/src", "repo/src/main.ts"}
	if len(selected) != len(want) {
		t.Fatalf("selection sink fired for %v, want %v", selected, want)
	}
	for i := range want {
		if selected[i] != want[i] {
			t.Errorf("selection %d = %s, want %s", i, selected[i], want[i])
		}
	}
}

func TestDrag_PinsAndReleases(t *testing.T) {
	e, _ := newTestEngine(t, &stubAnalyzer{result: oneSymbol()})
	ctx := context.Background()
	if err := e.Click(ctx, "repo"); err != nil {
		t.Fatal(err)
	}

	e.StartDrag("repo/src")
	e.Drag("repo/src", 300, -200)
	for i := 0; i < 30; i++ {
		e.Tick(1.0 / 60)
	}

	var dragged, root float64x2
	for _, n := range e.Snapshot().Nodes {
		switch n.ID {
		case "repo/src":
			dragged = float64x2{n.X, n.Y}
		case "repo":
			root = float64x2{n.X, n.Y}
		}
	}
	if dragged.x != 300 || dragged.y != -200 {
		t.Errorf("dragged node at (%f, %f), want pinned at (300, -200)", dragged.x, dragged.y)
	}
	if root.x == 0 && root.y == 0 {
		t.Error("unpinned neighbor did not respond to the drag")
	}

	e.EndDrag("repo/src")
	for i := 0; i < 30; i++ {
		e.Tick(1.0 / 60)
	}
	for _, n := range e.Snapshot().Nodes {
		if n.ID == "repo/src" {
			if n.Pinned {
				t.Error("node still pinned after EndDrag")
			}
			if n.X == 300 && n.Y == -200 {
				t.Error("released node never rejoined the dynamics")
			}
		}
	}
}

type float64x2 struct{ x, y float64 }

func TestDrag_IgnoresMismatchedID(t *testing.T) {
	e, _ := newTestEngine(t, &stubAnalyzer{result: oneSymbol()})
	ctx := context.Background()
	if err := e.Click(ctx, "repo"); err != nil {
		t.Fatal(err)
	}

	e.StartDrag("repo/src")
	e.Drag("repo", 999, 999) // not the dragged node

	for _, n := range e.Snapshot().Nodes {
		if n.ID == "repo" && n.Pinned {
			t.Error("Drag with a mismatched id pinned another node")
		}
	}

	e.EndDrag("repo") // must not release the real drag
	for _, n := range e.Snapshot().Nodes {
		if n.ID == "repo/src" && !n.Pinned {
			t.Error("EndDrag with a mismatched id released the drag")
		}
	}
}

func TestHover_RecordedInSnapshot(t *testing.T) {
	e, _ := newTestEngine(t, &stubAnalyzer{result: oneSymbol()})

	e.Hover("repo")
	if got := e.Snapshot().Hover; got != "repo" {
		t.Errorf("snapshot hover = %q, want repo", got)
	}
	e.Hover("")
	if got := e.Snapshot().Hover; got != "" {
		t.Errorf("snapshot hover = %q, want cleared", got)
	}
}

func TestPanZoom_ReflectedInSnapshot(t *testing.T) {
	e, _ := newTestEngine(t, &stubAnalyzer{result: oneSymbol()})

	e.Pan(25, -10)
	cam := e.Snapshot().Camera
	if cam.X != 25 || cam.Y != -10 {
		t.Errorf("camera after pan = %+v", cam)
	}

	e.Zoom(2, 0, 0)
	if got := e.Snapshot().Camera.Scale; got != 2 {
		t.Errorf("camera scale after zoom = %f, want 2", got)
	}
}

func TestRun_EmitsFramesUntilCancelled(t *testing.T) {
	e, _ := newTestEngine(t, &stubAnalyzer{result: oneSymbol()})
	ctx, cancel := context.WithCancel(context.Background())

	frames := make(chan Snapshot, 16)
	done := make(chan struct{})
	go func() {
		e.Run(ctx, 120, func(s Snapshot) {
			select {
			case frames <- s:
			default:
			}
		})
		close(done)
	}()

	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame emitted")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}
