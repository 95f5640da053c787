package walker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/repovis/repovis/internal/tree"
)

// Fetcher loads file content lazily from disk. Node ids are rooted at the
// repository's base name, so the on-disk path is the root dir joined with
// the id's remainder.
type Fetcher struct {
	rootDir string
	rootID  string
	maxSize int64
}

// NewFetcher creates a fetcher for the tree built from rootDir.
func NewFetcher(rootDir, rootID string, maxSize int64) *Fetcher {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Fetcher{rootDir: rootDir, rootID: rootID, maxSize: maxSize}
}

// Fetch reads the node's source text, refusing files over the size limit.
func (f *Fetcher) Fetch(ctx context.Context, node *tree.Node) (string, error) {
	rel := strings.TrimPrefix(node.ID, f.rootID+"/")
	if rel == node.ID && node.ID != f.rootID {
		return "", fmt.Errorf("walker: id %s outside tree root %s", node.ID, f.rootID)
	}
	path := filepath.Join(f.rootDir, filepath.FromSlash(rel))

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("walker: stat %s: %w", rel, err)
	}
	if info.Size() > f.maxSize {
		return "", fmt.Errorf("walker: %s exceeds %d byte limit", rel, f.maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("walker: read %s: %w", rel, err)
	}
	return string(data), nil
}
