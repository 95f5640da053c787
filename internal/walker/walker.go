// Package walker ingests a source tree from the local filesystem into the
// tree model. Folders become folder nodes eagerly; file content is left to
// the lazy fetcher so opening a large repository stays cheap.
package walker

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/repovis/repovis/internal/tree"
)

// DefaultMaxFileSize is the largest file the fetcher will load (1 MB).
const DefaultMaxFileSize int64 = 1 << 20

// DefaultExcludes are directory names skipped during traversal.
var DefaultExcludes = []string{
	".git",
	"node_modules",
	"vendor",
	"__pycache__",
	"dist",
	"build",
	".next",
	"target",
	".venv",
	".idea",
	".vscode",
	".repovis",
	".DS_Store",
}

// Config controls ingestion.
type Config struct {
	RootDir     string
	Include     []string // glob patterns; empty means everything
	Exclude     []string // glob patterns
	MaxFileSize int64    // 0 = DefaultMaxFileSize
}

// BuildTree walks the directory rooted at cfg.RootDir and returns a tree
// store seeded with folder and file nodes. File content is not read; only
// metadata is recorded.
func BuildTree(cfg Config) (*tree.Store, error) {
	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("walker: resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("walker: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("walker: root %s is not a directory", root)
	}

	gi := loadGitignore(root)

	rootName := filepath.Base(root)
	store := tree.NewStore(&tree.Node{
		ID:       rootName,
		Name:     rootName,
		Kind:     tree.KindFolder,
		Children: []string{},
	})

	// Directory path -> node id, so files attach under the right folder.
	dirIDs := map[string]string{root: rootName}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // skip unreadable entries
		}
		if path == root {
			return nil
		}

		name := d.Name()
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		relSlash := filepath.ToSlash(rel)

		if d.IsDir() {
			if shouldExcludeDir(name) || (gi != nil && gi.MatchesPath(relSlash+"/")) {
				return filepath.SkipDir
			}
			parentID := dirIDs[filepath.Dir(path)]
			node := &tree.Node{Name: name, Kind: tree.KindFolder, Children: []string{}}
			if err := store.AttachChildren(parentID, []*tree.Node{node}); err != nil {
				return err
			}
			dirIDs[path] = node.ID
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if gi != nil && gi.MatchesPath(relSlash) {
			return nil
		}
		if !MatchesInclude(relSlash, cfg.Include) || MatchesExclude(relSlash, cfg.Exclude) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if isBinary(path) {
			return nil
		}

		parentID := dirIDs[filepath.Dir(path)]
		node := &tree.Node{Name: name, Kind: tree.KindFile, Size: fi.Size()}
		return store.AttachChildren(parentID, []*tree.Node{node})
	})
	if err != nil {
		return nil, fmt.Errorf("walker: traversal: %w", err)
	}

	rollupSizes(store, rootName)
	return store, nil
}

// rollupSizes sets each folder's size to the sum of its subtree.
func rollupSizes(store *tree.Store, id string) int64 {
	n, err := store.Node(id)
	if err != nil {
		return 0
	}
	if n.Kind != tree.KindFolder {
		return n.Size
	}
	var total int64
	for _, cid := range n.Children {
		total += rollupSizes(store, cid)
	}
	n.Size = total
	return total
}

// loadGitignore compiles the root .gitignore if present.
func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

// shouldExcludeDir checks a directory name against the default exclusions.
func shouldExcludeDir(name string) bool {
	for _, excl := range DefaultExcludes {
		if strings.EqualFold(name, excl) {
			return true
		}
	}
	return false
}

// isBinary reads the first 512 bytes and checks for NUL bytes.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return true
	}
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return true
		}
	}
	return false
}

// FileIDs returns the ids of every file node in the store, sorted. The scan
// command uses this to warm the analysis cache.
func FileIDs(store *tree.Store) []string {
	var out []string
	var visit func(id string)
	visit = func(id string) {
		n, err := store.Node(id)
		if err != nil {
			return
		}
		if n.Kind == tree.KindFile {
			out = append(out, id)
			return
		}
		for _, cid := range n.Children {
			visit(cid)
		}
	}
	visit(store.Root().ID)
	sort.Strings(out)
	return out
}
