// Package search implements C7, the Search Engine: embed -> store query ->
// optional keyword fusion -> lifecycle weighting -> filter -> dedup -> rank.
package search

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"coderag.evalgo.org/embedding"
	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/lifecycle"
	"coderag.evalgo.org/model"
	"coderag.evalgo.org/store"
)

// Mode selects the search pipeline.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
)

// Quality buckets, per spec.md §4.C7.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
	QualityNoResults Quality = "no_results"
)

// Confidence is the response-level overall confidence bucket, per spec.md
// §4.C7's quality-analysis schema.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceVeryLow Confidence = "very_low"
	ConfidenceNone    Confidence = "none"
)

// MatchStrength is spec.md §4.C7's separate per-result score label
// ("Confidence label per result score"), distinct from the response-level
// Confidence above.
type MatchStrength string

const (
	MatchExcellent MatchStrength = "excellent"
	MatchGood      MatchStrength = "good"
	MatchWeak      MatchStrength = "weak"
)

// Filters narrows results; zero values mean "no constraint".
type Filters struct {
	FilePattern   string // substring match on metadata.file_path
	Language      string
	Category      model.Category
	MinImportance float64
	ProjectName   string
}

// Query is one search_code / find_similar_code call.
type Query struct {
	Text                 string
	Mode                 Mode
	Limit                int
	Filters              Filters
	IncludeQualityMetrics bool
}

// Result is one ranked match.
type Result struct {
	Unit          model.MemoryUnit
	Score         float64
	MatchStrength MatchStrength
}

// Facets summarizes the result set for refinement hints.
type Facets struct {
	Languages   map[string]int
	UnitTypes   map[string]int
	Files       map[string]int
	Directories map[string]int
}

// Response is search_code's full return value.
type Response struct {
	Results         []Result
	TotalFound      int
	Quality         Quality
	Confidence      Confidence
	MatchedKeywords []string
	Suggestions     []string
	Summary         string
	Facets          Facets
	RefinementHints []string
	DidYouMean      []string
}

const headroomFactor = 3 // query the store for limit*headroomFactor to survive post-filter drops

// Engine is C7's search engine, wired to a MemoryStore, an optional
// KeywordIndex (hybrid mode), C2's pipeline for query embedding, and C9's
// lifecycle weighting.
type Engine struct {
	pipeline       *embedding.Pipeline
	memStore       store.MemoryStore
	keyword        store.KeywordIndex // nil disables hybrid fusion
	lifecycleMgr   *lifecycle.Manager
	semanticWeight float64 // hybrid fusion weight, must be >= 0.5 per spec.md
}

// Config configures a new Engine.
type Config struct {
	Pipeline       *embedding.Pipeline
	MemoryStore    store.MemoryStore
	KeywordIndex   store.KeywordIndex
	LifecycleMgr   *lifecycle.Manager
	SemanticWeight float64 // default 0.65
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Pipeline == nil || cfg.MemoryStore == nil || cfg.LifecycleMgr == nil {
		return nil, errs.Validation("search", "New", "pipeline, memory store, and lifecycle manager are required")
	}
	if cfg.SemanticWeight == 0 {
		cfg.SemanticWeight = 0.65
	}
	return &Engine{
		pipeline:       cfg.Pipeline,
		memStore:       cfg.MemoryStore,
		keyword:        cfg.KeywordIndex,
		lifecycleMgr:   cfg.LifecycleMgr,
		semanticWeight: cfg.SemanticWeight,
	}, nil
}

// SearchCode runs the full C7 pipeline for q.
func (e *Engine) SearchCode(ctx context.Context, q Query) (Response, error) {
	if strings.TrimSpace(q.Text) == "" {
		return Response{Quality: QualityPoor, TotalFound: 0}, nil
	}
	return e.search(ctx, q)
}

// FindSimilarCode is search_code with snippet as the query, except an empty
// snippet is a validation error. Results carry no duplicate flag;
// IsLikelyDuplicate tests a single score against the 0.95 threshold.
func (e *Engine) FindSimilarCode(ctx context.Context, snippet string, limit int, filters Filters) (Response, error) {
	if strings.TrimSpace(snippet) == "" {
		return Response{}, errs.Validation("search", "FindSimilarCode", "snippet must not be empty")
	}
	return e.search(ctx, Query{Text: snippet, Mode: ModeSemantic, Limit: limit, Filters: filters})
}

// IsLikelyDuplicate reports whether score crosses spec.md §4.C7's
// near-duplicate threshold for similar-code search.
func IsLikelyDuplicate(score float64) bool {
	return score >= 0.95
}

func (e *Engine) search(ctx context.Context, q Query) (Response, error) {
	mode := q.Mode
	if mode == "" {
		mode = ModeSemantic
	}
	if mode == ModeHybrid && e.keyword == nil {
		mode = ModeSemantic
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	vec, err := e.pipeline.Embed(ctx, q.Text)
	if err != nil {
		return Response{}, err
	}

	k := limit * headroomFactor
	storeFilter := store.Filter{
		ProjectName: q.Filters.ProjectName,
		Language:    q.Filters.Language,
		Category:    q.Filters.Category,
	}

	semanticResults, err := e.memStore.Query(ctx, vec, k, storeFilter)
	if err != nil {
		return Response{}, errs.Retrieval("search", "search", "query memory store", err)
	}

	var candidates []Result
	if mode == ModeHybrid {
		keywordResults, err := e.keyword.Search(ctx, q.Text, k, storeFilter)
		if err != nil {
			return Response{}, errs.Retrieval("search", "search", "query keyword index", err)
		}
		candidates = fuse(semanticResults, keywordResults, e.semanticWeight)
	} else {
		candidates = fromScored(semanticResults)
	}

	for i := range candidates {
		weight := lifecycle.LifecycleWeight(candidates[i].Unit.LifecycleState)
		candidates[i].Score *= weight
	}

	candidates = postFilter(candidates, q.Filters)
	candidates = dedup(candidates)

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	totalFound := len(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	for i := range candidates {
		candidates[i].MatchStrength = matchStrengthFor(candidates[i].Score)
	}

	quality := qualityFor(candidates)
	resp := Response{
		Results:    candidates,
		TotalFound: totalFound,
		Quality:    quality,
		Confidence: confidenceFor(quality, totalFound),
	}
	if q.IncludeQualityMetrics {
		resp.Facets = buildFacets(candidates)
		resp.Summary = summarize(resp.Quality, totalFound)
		resp.MatchedKeywords = matchedKeywords(q.Text, candidates)
		resp.RefinementHints, resp.Suggestions = refinementHints(quality, q.Filters)
	}
	return resp, nil
}

// matchedKeywords returns the query's whitespace-separated tokens that
// appear (case-insensitively) in at least one returned result's content.
func matchedKeywords(query string, results []Result) []string {
	tokens := strings.Fields(query)
	var matched []string
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		for _, r := range results {
			if strings.Contains(strings.ToLower(r.Unit.Content), lower) {
				matched = append(matched, tok)
				break
			}
		}
	}
	return matched
}

// refinementHints offers generic, filter-aware suggestions when result
// quality is weak. There is no spelling-correction model in this service,
// so did_you_mean is intentionally always empty.
func refinementHints(q Quality, f Filters) (hints, suggestions []string) {
	if q == QualityExcellent || q == QualityGood {
		return nil, nil
	}
	hints = append(hints, "try broadening the query or removing filters")
	if f.Language != "" {
		suggestions = append(suggestions, "remove the language filter")
	}
	if f.FilePattern != "" {
		suggestions = append(suggestions, "remove the file pattern filter")
	}
	if q == QualityNoResults {
		suggestions = append(suggestions, "check that the project has been indexed")
	}
	return hints, suggestions
}

// fromScored wraps raw store results with no fusion applied.
func fromScored(results []store.Scored) []Result {
	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{Unit: r.Unit, Score: r.Score}
	}
	return out
}

// fuse merges semantic and keyword results by id, normalizing each source's
// scores to [0,1] via min-max before a weighted sum. Ties are broken by
// semantic score, then lexical score, then id, by the caller's stable sort
// plus this function's deterministic map iteration order (sorted by id
// before returning).
func fuse(semantic, keyword []store.Scored, semanticWeight float64) []Result {
	semNorm := minMaxNormalize(semantic)
	kwNorm := minMaxNormalize(keyword)

	type fused struct {
		unit     model.MemoryUnit
		semScore float64
		kwScore  float64
	}
	byID := make(map[string]*fused)

	for i, r := range semantic {
		byID[r.Unit.ID] = &fused{unit: r.Unit, semScore: semNorm[i]}
	}
	for i, r := range keyword {
		if f, ok := byID[r.Unit.ID]; ok {
			f.kwScore = kwNorm[i]
		} else {
			byID[r.Unit.ID] = &fused{unit: r.Unit, kwScore: kwNorm[i]}
		}
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Result, 0, len(byID))
	for _, id := range ids {
		f := byID[id]
		score := semanticWeight*f.semScore + (1-semanticWeight)*f.kwScore
		out = append(out, Result{Unit: f.unit, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		fi, fj := byID[out[i].Unit.ID], byID[out[j].Unit.ID]
		if fi.semScore != fj.semScore {
			return fi.semScore > fj.semScore
		}
		if fi.kwScore != fj.kwScore {
			return fi.kwScore > fj.kwScore
		}
		return out[i].Unit.ID < out[j].Unit.ID
	})
	return out
}

func minMaxNormalize(results []store.Scored) []float64 {
	norm := make([]float64, len(results))
	if len(results) == 0 {
		return norm
	}
	min, max := results[0].Score, results[0].Score
	for _, r := range results {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	for i, r := range results {
		if max <= min {
			norm[i] = 1.0
			continue
		}
		norm[i] = (r.Score - min) / (max - min)
	}
	return norm
}

func postFilter(candidates []Result, f Filters) []Result {
	if f.FilePattern == "" && f.MinImportance == 0 {
		return candidates
	}
	out := candidates[:0]
	for _, c := range candidates {
		if f.FilePattern != "" && !strings.Contains(c.Unit.Metadata[model.MetaFilePath], f.FilePattern) {
			continue
		}
		if f.MinImportance > 0 && c.Score < f.MinImportance {
			continue
		}
		out = append(out, c)
	}
	return out
}

// dedup keeps, for each (file_path, start_line) pair, only the
// highest-scored copy.
func dedup(candidates []Result) []Result {
	best := make(map[string]Result)
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		key := c.Unit.Metadata[model.MetaFilePath] + "::" + c.Unit.Metadata[model.MetaStartLine]
		if existing, ok := best[key]; !ok {
			best[key] = c
			order = append(order, key)
		} else if c.Score > existing.Score {
			best[key] = c
		}
	}
	out := make([]Result, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

// matchStrengthFor implements spec.md §4.C7's per-result confidence label:
// "≥0.8 excellent, ≥0.6 good, else weak".
func matchStrengthFor(score float64) MatchStrength {
	switch {
	case score >= 0.8:
		return MatchExcellent
	case score >= 0.6:
		return MatchGood
	default:
		return MatchWeak
	}
}

// confidenceFor derives the response-level overall confidence from quality
// and result count. Open question in spec.md §4.C7 (the schema names this
// field but never defines its derivation); resolved here by mirroring the
// quality buckets one-for-one plus a volume check, recorded in DESIGN.md.
func confidenceFor(q Quality, total int) Confidence {
	switch q {
	case QualityNoResults:
		return ConfidenceNone
	case QualityExcellent:
		return ConfidenceHigh
	case QualityGood:
		return ConfidenceMedium
	case QualityFair:
		if total >= 3 {
			return ConfidenceLow
		}
		return ConfidenceVeryLow
	default:
		return ConfidenceVeryLow
	}
}

func qualityFor(results []Result) Quality {
	if len(results) == 0 {
		return QualityNoResults
	}
	top := results[0].Score
	switch {
	case top >= 0.8:
		return QualityExcellent
	case top >= 0.6:
		return QualityGood
	case top >= 0.4:
		return QualityFair
	default:
		return QualityPoor
	}
}

func buildFacets(results []Result) Facets {
	f := Facets{
		Languages:   map[string]int{},
		UnitTypes:   map[string]int{},
		Files:       map[string]int{},
		Directories: map[string]int{},
	}
	for _, r := range results {
		if lang := r.Unit.Metadata[model.MetaLanguage]; lang != "" {
			f.Languages[lang]++
		}
		if ut := r.Unit.Metadata[model.MetaUnitType]; ut != "" {
			f.UnitTypes[ut]++
		}
		if fp := r.Unit.Metadata[model.MetaFilePath]; fp != "" {
			f.Files[fp]++
			if i := strings.LastIndex(fp, "/"); i >= 0 {
				f.Directories[fp[:i]]++
			}
		}
	}
	return f
}

func summarize(q Quality, total int) string {
	return string(q) + " match quality, " + strconv.Itoa(total) + " result(s) found"
}
