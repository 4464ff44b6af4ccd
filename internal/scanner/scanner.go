// Package scanner enumerates indexable Python files and decides which
// ones need reparsing on a refresh.
package scanner

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"pydex/internal/logging"
	"pydex/internal/storage"
)

// Directories never scanned, matched by name anywhere in the relative path
var skipDirs = map[string]bool{
	".pydex":        true,
	".git":          true,
	".hg":           true,
	".venv":         true,
	"venv":          true,
	"__pycache__":   true,
	".mypy_cache":   true,
	".pytest_cache": true,
	"node_modules":  true,
	"dist":          true,
	"build":         true,
}

// Scanner walks a project tree for Python source files
type Scanner struct {
	projectRoot string
	excludes    []string
	matcher     *ignore.GitIgnore
	logger      *logging.Logger
}

// Options configures a Scanner
type Options struct {
	// Excludes are extra path prefixes or glob patterns to skip
	Excludes []string

	// UseGitignore loads <root>/.gitignore rules when the file exists
	UseGitignore bool
}

// New creates a scanner rooted at projectRoot
func New(projectRoot string, opts Options, logger *logging.Logger) *Scanner {
	s := &Scanner{
		projectRoot: projectRoot,
		excludes:    opts.Excludes,
		logger:      logger,
	}

	if opts.UseGitignore {
		gitignorePath := filepath.Join(projectRoot, ".gitignore")
		if matcher, err := ignore.CompileIgnoreFile(gitignorePath); err == nil {
			s.matcher = matcher
		} else if !os.IsNotExist(err) {
			logger.Warn("failed to read .gitignore, ignoring it", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return s
}

// Scan returns the sorted list of candidate files as project-relative
// POSIX paths. Sorting keeps downstream processing order stable.
func (s *Scanner) Scan() ([]string, error) {
	var files []string

	err := filepath.WalkDir(s.projectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // Skip inaccessible entries, continue walking
		}

		rel, relErr := filepath.Rel(s.projectRoot, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipDirs[d.Name()] || s.isExcluded(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(rel, ".py") {
			return nil
		}
		if s.isExcluded(rel) {
			return nil
		}

		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk project: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// isExcluded checks config excludes and .gitignore rules
func (s *Scanner) isExcluded(rel string) bool {
	for _, pattern := range s.excludes {
		normalized := filepath.ToSlash(pattern)

		if matched, _ := filepath.Match(normalized, rel); matched {
			return true
		}

		// Directory exclude: "generated" matches "generated/foo.py"
		dirPattern := strings.TrimSuffix(normalized, "/") + "/"
		if strings.HasPrefix(rel, dirPattern) {
			return true
		}
		if strings.TrimSuffix(rel, "/") == strings.TrimSuffix(normalized, "/") {
			return true
		}
	}

	if s.matcher != nil && s.matcher.MatchesPath(rel) {
		return true
	}
	return false
}

// HashBytes returns the sha256 hex digest of file content
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%x", sum)
}

// ShouldReparse decides whether a file must be parsed again. A file
// with a recorded parse error is always retried, regardless of
// hash/mtime equality, so a transient failure is never cached forever.
func ShouldReparse(prev *storage.FileMeta, contentHash string, mtime int64) bool {
	if prev == nil {
		return true
	}
	if prev.ContentHash != contentHash {
		return true
	}
	if prev.Mtime != mtime {
		return true
	}
	return prev.ParseError != ""
}
