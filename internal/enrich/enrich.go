// Package enrich turns analysis results into synthetic symbol children on
// file nodes. Enrichment is idempotent, coalesced per node, and fails soft:
// a failed analysis leaves the file un-analyzed so the next click retries.
package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/singleflight"

	"github.com/repovis/repovis/internal/tree"
)

// ErrEnrichment wraps analysis transport or parse failures. The file stays
// un-analyzed so the caller may retry.
var ErrEnrichment = errors.New("enrich: analysis failed")

// ErrContentUnavailable marks a file whose source could not be obtained,
// e.g. too large or unreadable.
var ErrContentUnavailable = errors.New("enrich: content unavailable")

// Analysis is the result of analyzing one file.
type Analysis struct {
	Summary string `json:"summary"`
	Items   []Item `json:"items"`
}

// Item is a single extracted symbol.
type Item struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"` // function, class or component
	Description string `json:"description"`
}

// Analyzer extracts symbols from a named source file.
type Analyzer interface {
	Analyze(ctx context.Context, name, content string) (*Analysis, error)
}

// ContentFetcher loads the source text of a file node whose content was not
// ingested eagerly.
type ContentFetcher interface {
	Fetch(ctx context.Context, node *tree.Node) (string, error)
}

// Enricher bridges the analyzer into the tree model.
type Enricher struct {
	store    *tree.Store
	analyzer Analyzer
	fetcher  ContentFetcher
	cache    *Cache // optional
	group    singleflight.Group
}

// New creates an enricher. cache may be nil to disable result caching.
func New(store *tree.Store, analyzer Analyzer, fetcher ContentFetcher, cache *Cache) *Enricher {
	return &Enricher{store: store, analyzer: analyzer, fetcher: fetcher, cache: cache}
}

// Enrich analyzes the file addressed by id and attaches its symbols as
// children. Calling it on an already-analyzed file is a no-op. Concurrent
// calls for the same node share a single in-flight analysis, so a
// double-click never issues two provider calls.
func (e *Enricher) Enrich(ctx context.Context, id string) error {
	node, err := e.store.Node(id)
	if err != nil {
		return err
	}
	if node.Kind != tree.KindFile || node.Analyzed {
		return nil
	}

	_, err, _ = e.group.Do(id, func() (interface{}, error) {
		return nil, e.enrich(ctx, id)
	})
	return err
}

func (e *Enricher) enrich(ctx context.Context, id string) error {
	node, err := e.store.Node(id)
	if err != nil {
		return err
	}
	if node.Analyzed {
		// A coalesced caller already finished the work.
		return nil
	}

	content := node.Content
	if !node.ContentLoaded {
		content, err = e.fetcher.Fetch(ctx, node)
		if err != nil {
			if len(node.Children) == 0 {
				e.store.MarkUnexpandable(id)
			}
			return fmt.Errorf("%w: %s: %v", ErrContentUnavailable, id, err)
		}
		e.store.SetContent(id, content)
	}

	analysis, err := e.analyze(ctx, node.Name, content)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEnrichment, id, err)
	}

	children := make([]*tree.Node, 0, len(analysis.Items))
	for _, item := range analysis.Items {
		kind := symbolKind(item.Kind)
		children = append(children, &tree.Node{
			Name:    item.Name,
			Kind:    kind,
			Summary: item.Description,
		})
	}
	if err := e.store.AttachChildren(id, children); err != nil {
		return err
	}
	if err := e.store.SetAnalyzed(id, analysis.Summary); err != nil {
		return err
	}

	log.Printf("enrich: %s: %d symbols", id, len(children))
	return nil
}

// analyze consults the cache by content hash before calling the analyzer.
func (e *Enricher) analyze(ctx context.Context, name, content string) (*Analysis, error) {
	hash := contentHash(content)
	if e.cache != nil {
		if cached, err := e.cache.Get(ctx, hash); err == nil && cached != nil {
			return cached, nil
		}
	}

	analysis, err := e.analyzer.Analyze(ctx, name, content)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, fmt.Errorf("analyzer returned no result")
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, hash, name, analysis); err != nil {
			log.Printf("enrich: cache write for %s: %v", name, err)
		}
	}
	return analysis, nil
}

// symbolKind maps an analyzer item kind onto a tree kind, defaulting to
// function for anything unrecognized.
func symbolKind(kind string) tree.Kind {
	switch kind {
	case "class", "Class":
		return tree.KindClass
	case "component", "Component":
		return tree.KindComponent
	default:
		return tree.KindFunction
	}
}

func contentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}
