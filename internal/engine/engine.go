// Package engine orchestrates incremental refresh and impact queries:
// scan, skip-or-reparse, persist facts, rebuild the derived edge set,
// and answer impact questions over the committed snapshot.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"pydex/internal/config"
	"pydex/internal/graph"
	"pydex/internal/impact"
	"pydex/internal/logging"
	"pydex/internal/parser"
	"pydex/internal/scanner"
	"pydex/internal/storage"
)

// RefreshStats summarizes one refresh run
type RefreshStats struct {
	RunID        string `json:"runId"`
	FilesScanned int    `json:"filesScanned"`
	FilesIndexed int    `json:"filesIndexed"`
	FilesSkipped int    `json:"filesSkipped"`
	FilesDeleted int    `json:"filesDeleted"`
	ParseErrors  int    `json:"parseErrors"`
	SymbolsTotal int    `json:"symbolsTotal"`
	EdgesTotal   int    `json:"edgesTotal"`
	ElapsedMs    int64  `json:"elapsedMs"`
}

// IndexStats reports the persistent state of the index
type IndexStats struct {
	ProjectRoot  string         `json:"projectRoot"`
	DatabasePath string         `json:"databasePath"`
	Counts       storage.Counts `json:"counts"`
}

// Options configures an Engine beyond its configuration file
type Options struct {
	Config    *config.Config
	Logger    *logging.Logger
	Predictor impact.ConsequencePredictor
}

// Engine ties scanning, parsing, storage, graph derivation and impact
// analysis together over one project root.
type Engine struct {
	projectRoot string
	cfg         *config.Config
	logger      *logging.Logger
	db          *storage.DB
	store       *storage.Store
	scanner     *scanner.Scanner
	parser      *parser.Parser
	builder     *graph.Builder
	analyzer    *impact.Analyzer
}

// New opens (creating if necessary) the index under
// <projectRoot>/.pydex and wires up all components.
func New(projectRoot string, opts Options) (*Engine, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg, err = config.LoadConfig(abs)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(logging.Config{
			Format: logging.Format(cfg.Logging.Format),
			Level:  logging.ParseLevel(cfg.Logging.Level),
		})
	}

	db, err := storage.Open(abs, logger)
	if err != nil {
		return nil, err
	}

	predictor := opts.Predictor
	if predictor == nil && cfg.Oracle.Enabled {
		predictor = &impact.NoopPredictor{}
	}

	return &Engine{
		projectRoot: abs,
		cfg:         cfg,
		logger:      logger,
		db:          db,
		store:       storage.NewStore(db, logger),
		scanner: scanner.New(abs, scanner.Options{
			Excludes:     cfg.Index.Excludes,
			UseGitignore: cfg.Index.UseGitignore,
		}, logger),
		parser:   parser.New(),
		builder:  graph.NewBuilder(abs, logger),
		analyzer: impact.NewAnalyzer(abs, predictor, logger),
	}, nil
}

// Close releases the underlying database
func (e *Engine) Close() error {
	return e.db.Close()
}

// RefreshIndex brings the index up to date with the tree on disk.
// Unchanged files are skipped, vanished files are purged, and the edge
// set is rebuilt wholesale so it always reflects the committed facts.
func (e *Engine) RefreshIndex(ctx context.Context) (*RefreshStats, error) {
	start := time.Now()
	stats := &RefreshStats{RunID: uuid.NewString()}

	e.logger.Info("refresh started", map[string]interface{}{
		"runId": stats.RunID,
		"root":  e.projectRoot,
	})

	paths, err := e.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	stats.FilesScanned = len(paths)

	prev, err := e.store.GetFileMetadata()
	if err != nil {
		return nil, err
	}

	onDisk := make(map[string]bool, len(paths))
	for _, p := range paths {
		onDisk[p] = true
	}
	for path := range prev {
		if !onDisk[path] {
			if err := e.store.DeleteFile(path); err != nil {
				return nil, err
			}
			stats.FilesDeleted++
		}
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		indexed, parseErr, err := e.refreshFile(ctx, path, prev)
		if err != nil {
			return nil, err
		}
		if !indexed {
			stats.FilesSkipped++
			continue
		}
		stats.FilesIndexed++
		if parseErr {
			stats.ParseErrors++
		}
	}

	if err := e.rebuildEdges(); err != nil {
		return nil, err
	}

	counts, err := e.store.Counts()
	if err != nil {
		return nil, err
	}
	stats.SymbolsTotal = counts.Symbols
	stats.EdgesTotal = counts.Edges
	stats.ElapsedMs = time.Since(start).Milliseconds()

	e.logger.Info("refresh finished", map[string]interface{}{
		"runId":   stats.RunID,
		"indexed": stats.FilesIndexed,
		"skipped": stats.FilesSkipped,
		"deleted": stats.FilesDeleted,
		"errors":  stats.ParseErrors,
		"ms":      stats.ElapsedMs,
	})

	return stats, nil
}

// refreshFile decides skip-vs-reparse for one file and persists its
// facts when reparsed. Returns whether the file was (re)indexed and
// whether the parse degraded.
func (e *Engine) refreshFile(ctx context.Context, path string, prev map[string]storage.FileMeta) (bool, bool, error) {
	absPath := filepath.Join(e.projectRoot, filepath.FromSlash(path))

	info, err := os.Stat(absPath)
	if err != nil {
		// Raced deletion between scan and read: leave it for next run.
		e.logger.Warn("file vanished during refresh", map[string]interface{}{
			"file": path,
		})
		return false, false, nil
	}
	mtime := info.ModTime().UnixNano()

	content, err := os.ReadFile(absPath)
	if err != nil {
		return false, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	hash := scanner.HashBytes(content)

	var prevMeta *storage.FileMeta
	if m, ok := prev[path]; ok {
		prevMeta = &m
	}
	if !scanner.ShouldReparse(prevMeta, hash, mtime) {
		return false, false, nil
	}

	result := e.parser.Parse(ctx, path, content)

	symbols := make([]storage.Symbol, 0, len(result.Symbols))
	for _, s := range result.Symbols {
		symbols = append(symbols, storage.Symbol{
			FilePath:      path,
			Name:          s.Name,
			QualifiedName: s.QualifiedName,
			Kind:          s.Kind,
			StartLine:     s.StartLine,
			EndLine:       s.EndLine,
			Signature:     s.Signature,
		})
	}
	imports := make([]storage.RawImport, 0, len(result.Imports))
	for _, m := range result.Imports {
		imports = append(imports, storage.RawImport{FilePath: path, ModuleName: m})
	}
	calls := make([]storage.RawCall, 0, len(result.Calls))
	for _, c := range result.Calls {
		calls = append(calls, storage.RawCall{FilePath: path, Caller: c.Caller, CalleeName: c.CalleeName})
	}

	if err := e.store.ReplaceFileFacts(path, symbols, imports, calls); err != nil {
		return false, false, err
	}
	if err := e.store.UpsertFile(storage.FileMeta{
		Path:        path,
		ContentHash: hash,
		Mtime:       mtime,
		IndexedAt:   time.Now(),
		ParseError:  result.ParseError,
	}); err != nil {
		return false, false, err
	}

	if result.ParseError != "" {
		e.logger.Warn("parse degraded", map[string]interface{}{
			"file":  path,
			"error": result.ParseError,
		})
	}
	return true, result.ParseError != "", nil
}

func (e *Engine) rebuildEdges() error {
	imports, err := e.store.ListImports()
	if err != nil {
		return err
	}
	calls, err := e.store.ListCalls()
	if err != nil {
		return err
	}
	owners, err := e.store.SymbolOwnersByName()
	if err != nil {
		return err
	}
	meta, err := e.store.GetFileMetadata()
	if err != nil {
		return err
	}

	indexed := make(map[string]bool, len(meta))
	for path := range meta {
		indexed[path] = true
	}

	edges := e.builder.RebuildEdges(imports, calls, owners, indexed)
	return e.store.ReplaceEdges(edges)
}

// ImpactForFiles answers "what is affected if these files change" over
// the committed snapshot. A maxDepth of 0 uses the configured default.
func (e *Engine) ImpactForFiles(changedFiles []string, maxDepth int) (*impact.Report, error) {
	if maxDepth <= 0 {
		maxDepth = e.cfg.Impact.MaxDepth
	}

	edges, err := e.store.ListEdges()
	if err != nil {
		return nil, err
	}
	meta, err := e.store.GetFileMetadata()
	if err != nil {
		return nil, err
	}

	indexed := make(map[string]bool, len(meta))
	for path := range meta {
		indexed[path] = true
	}

	return e.analyzer.Analyze(changedFiles, edges, indexed, maxDepth), nil
}

// IndexStats reports persistent index counters
func (e *Engine) IndexStats() (*IndexStats, error) {
	counts, err := e.store.Counts()
	if err != nil {
		return nil, err
	}
	return &IndexStats{
		ProjectRoot:  e.projectRoot,
		DatabasePath: e.db.Path(),
		Counts:       counts,
	}, nil
}

// Store exposes the fact store for read-only consumers such as export
func (e *Engine) Store() *storage.Store {
	return e.store
}
