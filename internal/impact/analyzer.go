// Package impact answers "what else is affected if these files change?"
// by multi-source BFS over the reverse dependency graph, with
// distance-based confidence decay and optional oracle augmentation.
package impact

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"pydex/internal/logging"
	"pydex/internal/storage"
)

// Impact kinds
const (
	KindChanged    = "changed"
	KindDirect     = "direct"
	KindTransitive = "transitive"
)

// Entry sources
const (
	SourceChanged         = "changed"
	SourceGraph           = "graph"
	SourceWorldModel      = "world_model"
	SourceGraphWorldModel = "graph+world_model"
)

// DefaultMaxDepth caps BFS traversal when the caller passes no depth
const DefaultMaxDepth = 8

// Entry is one impacted file in a report. Query-time only, never persisted.
type Entry struct {
	FilePath   string  `json:"filePath"`
	Distance   int     `json:"distance"`
	Kind       string  `json:"impactKind"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// OracleSummary explains what the optional predictor contributed, or
// why it contributed nothing.
type OracleSummary struct {
	Enabled        bool     `json:"enabled"`
	Error          string   `json:"error,omitempty"`
	PredictedFiles []string `json:"predictedFiles,omitempty"`
}

// Report is the result of one impact query
type Report struct {
	ChangedFiles    []string      `json:"changedFiles"`
	Impacted        []Entry       `json:"impacted"`
	DirectCount     int           `json:"directCount"`
	TransitiveCount int           `json:"transitiveCount"`
	MaxDepth        int           `json:"maxDepth"`
	Oracle          OracleSummary `json:"oracle"`
}

// Analyzer computes impact reports over a committed edge set
type Analyzer struct {
	projectRoot string
	predictor   ConsequencePredictor
	logger      *logging.Logger
}

// NewAnalyzer creates an analyzer. A nil predictor runs graph-only.
func NewAnalyzer(projectRoot string, predictor ConsequencePredictor, logger *logging.Logger) *Analyzer {
	return &Analyzer{
		projectRoot: projectRoot,
		predictor:   predictor,
		logger:      logger,
	}
}

// Analyze computes the impact of the given changed files. Unresolvable
// inputs are dropped, not errors; callers can inspect ChangedFiles to
// see what was actually used.
func (a *Analyzer) Analyze(changedFiles []string, edges []storage.Edge, indexed map[string]bool, maxDepth int) *Report {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	changed := a.normalize(changedFiles, indexed)

	// Reverse adjacency: for src -> dst, dst's reverse neighbor is src
	// ("who is affected if dst changes" = files that import/call it).
	reverse := make(map[string][]string)
	for _, edge := range edges {
		reverse[edge.DstFile] = append(reverse[edge.DstFile], edge.SrcFile)
	}

	// Multi-source BFS, first-seen distance wins.
	distance := make(map[string]int)
	queue := make([]string, 0, len(changed))
	for _, path := range changed {
		distance[path] = 0
		queue = append(queue, path)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curDist := distance[cur]
		if curDist >= maxDepth {
			continue
		}
		for _, dep := range reverse[cur] {
			if _, seen := distance[dep]; !seen {
				distance[dep] = curDist + 1
				queue = append(queue, dep)
			}
		}
	}

	graphReached := make(map[string]bool, len(distance))
	for path := range distance {
		graphReached[path] = true
	}

	// Predicted files already reached by the graph keep their graph
	// distance; only files the graph never reached enter, at distance 1.
	predicted, strengths, summary := a.consultOracle(changed, indexed)
	for path := range predicted {
		if _, ok := distance[path]; !ok {
			distance[path] = 1
		}
	}

	report := &Report{
		ChangedFiles: changed,
		MaxDepth:     maxDepth,
		Oracle:       summary,
	}

	paths := make([]string, 0, len(distance))
	for path := range distance {
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool {
		if distance[paths[i]] != distance[paths[j]] {
			return distance[paths[i]] < distance[paths[j]]
		}
		return paths[i] < paths[j]
	})

	for _, path := range paths {
		dist := distance[path]
		kind, confidence := classify(dist)

		source := SourceGraph
		switch {
		case dist == 0:
			source = SourceChanged
		case graphReached[path] && predicted[path]:
			source = SourceGraphWorldModel
			confidence = math.Max(confidence, round3(strengths[path]))
		case predicted[path]:
			source = SourceWorldModel
			confidence = round3(strengthOr(strengths, path, 0.4))
		}

		report.Impacted = append(report.Impacted, Entry{
			FilePath:   path,
			Distance:   dist,
			Kind:       kind,
			Confidence: confidence,
			Source:     source,
		})

		switch kind {
		case KindDirect:
			report.DirectCount++
		case KindTransitive:
			report.TransitiveCount++
		}
	}

	return report
}

// normalize maps inputs to known indexed paths: POSIX-normalized
// relative paths directly, absolute paths relative to the project
// root. Anything unresolvable is dropped; output is deduplicated and
// sorted.
func (a *Analyzer) normalize(inputs []string, indexed map[string]bool) []string {
	seen := make(map[string]bool)
	for _, item := range inputs {
		norm := strings.TrimSpace(strings.ReplaceAll(item, "\\", "/"))
		if norm == "" {
			continue
		}
		if indexed[norm] {
			seen[norm] = true
			continue
		}
		if filepath.IsAbs(norm) {
			rel, err := filepath.Rel(a.projectRoot, norm)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if indexed[rel] {
				seen[rel] = true
			}
		}
	}

	changed := make([]string, 0, len(seen))
	for path := range seen {
		changed = append(changed, path)
	}
	sort.Strings(changed)
	return changed
}

// consultOracle queries the predictor for each changed file.
// Best-effort: a missing or failing predictor degrades to graph-only
// results with the reason flagged in the summary.
func (a *Analyzer) consultOracle(changed []string, indexed map[string]bool) (map[string]bool, map[string]float64, OracleSummary) {
	predicted := make(map[string]bool)
	strengths := make(map[string]float64)

	if a.predictor == nil {
		return predicted, strengths, OracleSummary{Enabled: false}
	}

	summary := OracleSummary{Enabled: true}
	for _, path := range changed {
		predictions, err := a.predictor.PredictConsequence(SubjectKeyPrefix + path)
		if err != nil {
			summary.Error = fmt.Sprintf("prediction failed: %v", err)
			a.logger.Warn("oracle unavailable, falling back to graph-only impact", map[string]interface{}{
				"error": err.Error(),
			})
			return make(map[string]bool), make(map[string]float64), summary
		}

		for _, p := range predictions {
			if !strings.HasPrefix(p.EffectKey, SubjectKeyPrefix) {
				continue
			}
			effect := strings.TrimPrefix(p.EffectKey, SubjectKeyPrefix)
			if !indexed[effect] {
				continue
			}
			// Strengths come from an external collaborator; clamp to
			// [0,1] so confidence never leaves its invariant range.
			strength := clamp01(p.Strength)
			predicted[effect] = true
			if strength > strengths[effect] {
				strengths[effect] = strength
			}
		}
	}

	summary.PredictedFiles = make([]string, 0, len(predicted))
	for path := range predicted {
		summary.PredictedFiles = append(summary.PredictedFiles, path)
	}
	sort.Strings(summary.PredictedFiles)
	return predicted, strengths, summary
}

// classify maps BFS distance to impact kind and confidence. The decay
// floors at 0.25, so ties are possible at large depths.
func classify(distance int) (string, float64) {
	switch {
	case distance == 0:
		return KindChanged, 1.0
	case distance == 1:
		return KindDirect, 0.85
	default:
		return KindTransitive, math.Max(0.25, round3(0.75/float64(distance)))
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func strengthOr(strengths map[string]float64, path string, fallback float64) float64 {
	if s, ok := strengths[path]; ok && s > 0 {
		return s
	}
	return fallback
}
