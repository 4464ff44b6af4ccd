package storage

import (
	"database/sql"
	"fmt"
	"time"

	"pydex/internal/logging"
)

// Edge types for the derived dependency graph
const (
	EdgeTypeImport = "import"
	EdgeTypeCall   = "call"
)

// FileMeta is one indexed_files row. ParseError is empty when the last
// parse attempt succeeded.
type FileMeta struct {
	Path        string
	ContentHash string
	Mtime       int64 // unix nanoseconds, compared exactly
	IndexedAt   time.Time
	ParseError  string
}

// Symbol is one class/function/async-function definition owned by a file
type Symbol struct {
	FilePath      string
	Name          string
	QualifiedName string
	Kind          string
	StartLine     int
	EndLine       int
	Signature     string
}

// RawImport is one module token imported at module scope
type RawImport struct {
	FilePath   string
	ModuleName string
}

// RawCall is one call site; Caller is "<module>" for top-level calls
type RawCall struct {
	FilePath   string
	Caller     string
	CalleeName string
}

// Edge is one derived dependency edge, unique per (src, dst, type)
type Edge struct {
	SrcFile  string
	DstFile  string
	EdgeType string
	Weight   float64
}

// Counts aggregates persistent index counters
type Counts struct {
	Files       int `json:"files"`
	Symbols     int `json:"symbols"`
	Imports     int `json:"imports"`
	Calls       int `json:"calls"`
	Edges       int `json:"edges"`
	ParseErrors int `json:"parseErrors"`
}

// Store provides fact persistence on top of DB. Every mutating
// operation is a single transaction.
type Store struct {
	db     *DB
	logger *logging.Logger
}

// NewStore creates a fact store over an open database
func NewStore(db *DB, logger *logging.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// GetFileMetadata returns a snapshot of all indexed file metadata keyed
// by project-relative path, used for skip decisions.
func (s *Store) GetFileMetadata() (map[string]FileMeta, error) {
	rows, err := s.db.Query(`
		SELECT file_path, content_hash, mtime, indexed_at, parse_error
		FROM indexed_files
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexed files: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	meta := make(map[string]FileMeta)
	for rows.Next() {
		var m FileMeta
		var indexedAt int64
		var parseErr sql.NullString

		if err := rows.Scan(&m.Path, &m.ContentHash, &m.Mtime, &indexedAt, &parseErr); err != nil {
			return nil, fmt.Errorf("failed to scan file metadata: %w", err)
		}

		m.IndexedAt = time.Unix(indexedAt, 0)
		if parseErr.Valid {
			m.ParseError = parseErr.String
		}
		meta[m.Path] = m
	}

	return meta, rows.Err()
}

// UpsertFile inserts or updates one indexed file's metadata, keyed by path
func (s *Store) UpsertFile(meta FileMeta) error {
	var parseErr interface{}
	if meta.ParseError != "" {
		parseErr = meta.ParseError
	}

	_, err := s.db.Exec(`
		INSERT INTO indexed_files (file_path, content_hash, mtime, indexed_at, parse_error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			mtime = excluded.mtime,
			indexed_at = excluded.indexed_at,
			parse_error = excluded.parse_error
	`, meta.Path, meta.ContentHash, meta.Mtime, meta.IndexedAt.Unix(), parseErr)
	if err != nil {
		return fmt.Errorf("failed to upsert indexed file: %w", err)
	}
	return nil
}

// ReplaceFileFacts atomically replaces all symbols, imports, and calls
// owned by one file. All-or-nothing: a partial write is never observable.
func (s *Store) ReplaceFileFacts(path string, symbols []Symbol, imports []RawImport, calls []RawCall) error {
	return s.db.WithTx(func(tx *sql.Tx) error {
		for _, table := range []string{"symbols", "imports", "calls"} {
			if _, err := tx.Exec(`DELETE FROM `+table+` WHERE file_path = ?`, path); err != nil {
				return fmt.Errorf("failed to delete old %s: %w", table, err)
			}
		}

		if len(symbols) > 0 {
			stmt, err := tx.Prepare(`
				INSERT INTO symbols (file_path, name, qualified_name, kind, start_line, end_line, signature)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`)
			if err != nil {
				return fmt.Errorf("failed to prepare symbol insert: %w", err)
			}
			defer stmt.Close() //nolint:errcheck // Best effort cleanup

			for _, sym := range symbols {
				if _, err := stmt.Exec(path, sym.Name, sym.QualifiedName, sym.Kind, sym.StartLine, sym.EndLine, sym.Signature); err != nil {
					return fmt.Errorf("failed to insert symbol: %w", err)
				}
			}
		}

		if len(imports) > 0 {
			stmt, err := tx.Prepare(`INSERT INTO imports (file_path, module_name) VALUES (?, ?)`)
			if err != nil {
				return fmt.Errorf("failed to prepare import insert: %w", err)
			}
			defer stmt.Close() //nolint:errcheck // Best effort cleanup

			for _, imp := range imports {
				if _, err := stmt.Exec(path, imp.ModuleName); err != nil {
					return fmt.Errorf("failed to insert import: %w", err)
				}
			}
		}

		if len(calls) > 0 {
			stmt, err := tx.Prepare(`
				INSERT INTO calls (file_path, caller_qualified_name, callee_name) VALUES (?, ?, ?)
			`)
			if err != nil {
				return fmt.Errorf("failed to prepare call insert: %w", err)
			}
			defer stmt.Close() //nolint:errcheck // Best effort cleanup

			for _, call := range calls {
				if _, err := stmt.Exec(path, call.Caller, call.CalleeName); err != nil {
					return fmt.Errorf("failed to insert call: %w", err)
				}
			}
		}

		return nil
	})
}

// DeleteFile removes the indexed file row, its facts, and any edge
// where the file is source or destination.
func (s *Store) DeleteFile(path string) error {
	return s.db.WithTx(func(tx *sql.Tx) error {
		for _, table := range []string{"indexed_files", "symbols", "imports", "calls"} {
			if _, err := tx.Exec(`DELETE FROM `+table+` WHERE file_path = ?`, path); err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table, err)
			}
		}
		if _, err := tx.Exec(`DELETE FROM edges WHERE src_file = ? OR dst_file = ?`, path, path); err != nil {
			return fmt.Errorf("failed to delete edges: %w", err)
		}
		return nil
	})
}

// ReplaceEdges discards the entire edge table and inserts the given
// set. Full replace, no merge: no stale edge survives a refresh.
func (s *Store) ReplaceEdges(edges []Edge) error {
	return s.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM edges`); err != nil {
			return fmt.Errorf("failed to clear edges: %w", err)
		}

		if len(edges) == 0 {
			return nil
		}

		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO edges (src_file, dst_file, edge_type, weight)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare edge insert: %w", err)
		}
		defer stmt.Close() //nolint:errcheck // Best effort cleanup

		for _, edge := range edges {
			if _, err := stmt.Exec(edge.SrcFile, edge.DstFile, edge.EdgeType, edge.Weight); err != nil {
				return fmt.Errorf("failed to insert edge: %w", err)
			}
		}
		return nil
	})
}

// ListImports returns all raw import rows
func (s *Store) ListImports() ([]RawImport, error) {
	rows, err := s.db.Query(`SELECT file_path, module_name FROM imports`)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	var imports []RawImport
	for rows.Next() {
		var imp RawImport
		if err := rows.Scan(&imp.FilePath, &imp.ModuleName); err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// ListCalls returns all raw call rows
func (s *Store) ListCalls() ([]RawCall, error) {
	rows, err := s.db.Query(`SELECT file_path, caller_qualified_name, callee_name FROM calls`)
	if err != nil {
		return nil, fmt.Errorf("failed to query calls: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	var calls []RawCall
	for rows.Next() {
		var call RawCall
		if err := rows.Scan(&call.FilePath, &call.Caller, &call.CalleeName); err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

// ListSymbols returns all symbol rows
func (s *Store) ListSymbols() ([]Symbol, error) {
	rows, err := s.db.Query(`
		SELECT file_path, name, qualified_name, kind, start_line, end_line, signature
		FROM symbols
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	var symbols []Symbol
	for rows.Next() {
		var sym Symbol
		if err := rows.Scan(&sym.FilePath, &sym.Name, &sym.QualifiedName, &sym.Kind, &sym.StartLine, &sym.EndLine, &sym.Signature); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// SymbolOwnersByName maps each symbol name to the set of files defining it
func (s *Store) SymbolOwnersByName() (map[string]map[string]bool, error) {
	rows, err := s.db.Query(`SELECT name, file_path FROM symbols`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbol owners: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	owners := make(map[string]map[string]bool)
	for rows.Next() {
		var name, path string
		if err := rows.Scan(&name, &path); err != nil {
			return nil, fmt.Errorf("failed to scan symbol owner: %w", err)
		}
		if owners[name] == nil {
			owners[name] = make(map[string]bool)
		}
		owners[name][path] = true
	}
	return owners, rows.Err()
}

// ListEdges returns all derived graph edges
func (s *Store) ListEdges() ([]Edge, error) {
	rows, err := s.db.Query(`SELECT src_file, dst_file, edge_type, weight FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	var edges []Edge
	for rows.Next() {
		var edge Edge
		if err := rows.Scan(&edge.SrcFile, &edge.DstFile, &edge.EdgeType, &edge.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// Counts returns the persistent index counters
func (s *Store) Counts() (Counts, error) {
	var counts Counts

	queries := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM indexed_files`, &counts.Files},
		{`SELECT COUNT(*) FROM symbols`, &counts.Symbols},
		{`SELECT COUNT(*) FROM imports`, &counts.Imports},
		{`SELECT COUNT(*) FROM calls`, &counts.Calls},
		{`SELECT COUNT(*) FROM edges`, &counts.Edges},
		{`SELECT COUNT(*) FROM indexed_files WHERE parse_error IS NOT NULL`, &counts.ParseErrors},
	}

	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("failed to count rows: %w", err)
		}
	}

	return counts, nil
}
