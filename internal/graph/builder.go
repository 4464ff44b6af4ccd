// Package graph derives the file-level dependency edge set from raw
// import and call facts. The edge set is a snapshot: it is recomputed
// in full on every refresh and has no incremental maintenance, so a
// deleted or renamed file can never leave a stale edge behind.
package graph

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pydex/internal/logging"
	"pydex/internal/storage"
)

// Default edge weights. Call edges are heuristic (name-only matching
// can collide across unrelated files) and carry lower confidence.
const (
	ImportWeight = 1.0
	CallWeight   = 0.7
)

// Builder resolves raw facts into typed, weighted edges
type Builder struct {
	projectRoot string
	logger      *logging.Logger
}

// NewBuilder creates a builder rooted at projectRoot
func NewBuilder(projectRoot string, logger *logging.Logger) *Builder {
	return &Builder{
		projectRoot: projectRoot,
		logger:      logger,
	}
}

// RebuildEdges computes the complete deduplicated edge set from the
// current facts. Every destination must be in the indexed set: a file
// that resolves on disk but was excluded from scanning produces no
// edge. Output is sorted by (src, dst, type) for determinism.
func (b *Builder) RebuildEdges(imports []storage.RawImport, calls []storage.RawCall, owners map[string]map[string]bool, indexed map[string]bool) []storage.Edge {
	type triple struct {
		src, dst, edgeType string
	}
	seen := make(map[triple]float64)

	for _, imp := range imports {
		dst, ok := b.resolveImport(imp.ModuleName)
		if !ok || dst == imp.FilePath || !indexed[dst] {
			continue
		}
		seen[triple{imp.FilePath, dst, storage.EdgeTypeImport}] = ImportWeight
	}

	// Name-only matching: every file defining a same-named symbol is
	// a candidate destination. Collisions are possible, hence the
	// lower call weight.
	for _, call := range calls {
		for dst := range owners[call.CalleeName] {
			if dst == call.FilePath {
				continue
			}
			seen[triple{call.FilePath, dst, storage.EdgeTypeCall}] = CallWeight
		}
	}

	edges := make([]storage.Edge, 0, len(seen))
	for key, weight := range seen {
		edges = append(edges, storage.Edge{
			SrcFile:  key.src,
			DstFile:  key.dst,
			EdgeType: key.edgeType,
			Weight:   weight,
		})
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].SrcFile != edges[j].SrcFile {
			return edges[i].SrcFile < edges[j].SrcFile
		}
		if edges[i].DstFile != edges[j].DstFile {
			return edges[i].DstFile < edges[j].DstFile
		}
		return edges[i].EdgeType < edges[j].EdgeType
	})

	return edges
}

// resolveImport maps a dotted module name to a project-local file,
// trying <parts>.py and <parts>/__init__.py. External imports resolve
// to nothing and produce no edge.
func (b *Builder) resolveImport(moduleName string) (string, bool) {
	if moduleName == "" {
		return "", false
	}
	parts := strings.Split(moduleName, ".")

	base := filepath.Join(b.projectRoot, filepath.Join(parts...))
	candidates := []string{
		base + ".py",
		filepath.Join(base, "__init__.py"),
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		rel, err := filepath.Rel(b.projectRoot, candidate)
		if err != nil {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}
