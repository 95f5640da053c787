// Package tree holds the lazily-materialized model of the codebase being
// visualized. Nodes live in an arena addressed by stable path-like ids;
// parent/child relations are id references, never owning pointers, so the
// visible graph can hide and re-reveal subtrees without copying.
package tree

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when an operation references a node id that does
// not exist in the store.
var ErrNotFound = errors.New("tree: node not found")

// Kind classifies a tree node.
type Kind string

const (
	KindFolder    Kind = "folder"
	KindFile      Kind = "file"
	KindFunction  Kind = "function"
	KindClass     Kind = "class"
	KindComponent Kind = "component"
)

// IsSymbol reports whether the kind is a synthetic symbol extracted from a
// file rather than a filesystem entry.
func (k Kind) IsSymbol() bool {
	return k == KindFunction || k == KindClass || k == KindComponent
}

// Node is a single entry in the codebase tree. Nodes are created during
// ingestion or enrichment and are never deleted for the lifetime of a
// session; collapsing the visual graph hides them, nothing more.
type Node struct {
	ID       string
	Name     string
	Kind     Kind
	Parent   string   // id of the parent, empty for the root
	Children []string // ordered child ids

	// File-only fields.
	Content       string
	ContentLoaded bool
	Analyzed      bool
	Summary       string
	Unexpandable  bool

	Size int64 // bytes for files, rollup sum for folders
}

// ChildID derives the stable id for a child of parent. Symbol children use a
// '#' separator so they can never collide with real filesystem paths.
func ChildID(parentID, name string, kind Kind) string {
	if kind.IsSymbol() {
		return parentID + "#" + name
	}
	return parentID + "/" + name
}

// Store is the arena of tree nodes. All mutation goes through the store so
// that the enricher and the ingestion path can share it safely.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	root  string
}

// NewStore creates a store seeded with the given root node.
func NewStore(root *Node) *Store {
	s := &Store{nodes: map[string]*Node{root.ID: root}}
	s.root = root.ID
	return s
}

// Root returns the root node.
func (s *Store) Root() *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[s.root]
}

// Node looks up a node by id.
func (s *Store) Node(id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n, nil
}

// Len returns the number of nodes in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// AttachChildren appends the given children to the node addressed by
// parentID. Ids are derived from the parent id and each child's (name, kind);
// a child whose (name, kind) pair already exists under the parent is silently
// skipped, which makes repeated enrichment of the same file a no-op.
func (s *Store) AttachChildren(parentID string, children []*Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.nodes[parentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, parentID)
	}

	existing := make(map[string]bool, len(parent.Children))
	for _, cid := range parent.Children {
		if c, ok := s.nodes[cid]; ok {
			existing[dupKey(c.Name, c.Kind)] = true
		}
	}

	for _, child := range children {
		if existing[dupKey(child.Name, child.Kind)] {
			continue
		}
		existing[dupKey(child.Name, child.Kind)] = true

		child.ID = ChildID(parentID, child.Name, child.Kind)
		child.Parent = parentID
		s.nodes[child.ID] = child
		parent.Children = append(parent.Children, child.ID)
	}
	return nil
}

func dupKey(name string, kind Kind) string {
	return string(kind) + "\x00" + name
}

// SetContent records lazily fetched file content.
func (s *Store) SetContent(id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	n.Content = content
	n.ContentLoaded = true
	return nil
}

// SetAnalyzed marks a file as enriched and stores its summary.
func (s *Store) SetAnalyzed(id, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	n.Analyzed = true
	n.Summary = summary
	return nil
}

// MarkUnexpandable flags a file whose content cannot be obtained so the
// dispatcher stops re-triggering enrichment for it.
func (s *Store) MarkUnexpandable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	n.Unexpandable = true
	return nil
}
