// Package crossproject implements C8, the Cross-Project Gateway: fans a
// query out across opted-in projects with bounded concurrency.
package crossproject

import (
	"context"
	"sort"
	"strings"
	"sync"

	"coderag.evalgo.org/consent"
	"coderag.evalgo.org/internal/logging"
	"coderag.evalgo.org/search"
)

// Stats counts gateway opt-in/opt-out activity.
type Stats struct {
	mu       sync.Mutex
	OptIns   int
	OptOuts  int
}

func (s *Stats) recordOptIn()  { s.mu.Lock(); s.OptIns++; s.mu.Unlock() }
func (s *Stats) recordOptOut() { s.mu.Lock(); s.OptOuts++; s.mu.Unlock() }

// ProjectSearcher resolves a project name to the search.Engine that serves
// it. The gateway has no opinion on how per-project engines are managed.
type ProjectSearcher func(project string) (*search.Engine, error)

// Gateway fans queries out across opted-in projects.
type Gateway struct {
	consent     consent.Manager // nil disables cross-project search entirely
	resolve     ProjectSearcher
	concurrency int
	stats       Stats
	log         *logging.ContextLogger
}

// Config configures a new Gateway.
type Config struct {
	Consent     consent.Manager // nil means cross-project search is disabled
	Resolve     ProjectSearcher
	Concurrency int // default 4
}

// New creates a Gateway.
func New(cfg Config) *Gateway {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Gateway{
		consent:     cfg.Consent,
		resolve:     cfg.Resolve,
		concurrency: cfg.Concurrency,
		log:         logging.ServiceLogger("crossproject"),
	}
}

// Result is a gateway-wide ranked match, annotated with the project it
// came from.
type Result struct {
	Project string
	search.Result
}

// Response is search_all_projects' return value.
type Response struct {
	Status  string // "ok" or "disabled"
	Results []Result
}

// SearchAllProjects fans query out to every opted-in project's search
// engine in parallel, bounded by concurrency. The query is not embedded
// up front: each project's engine embeds it in its own SearchCode call,
// so a query reaches the embedding pipeline once per project. Per-project
// failures are logged and skipped; the call only fails if every project
// fails.
func (g *Gateway) SearchAllProjects(ctx context.Context, query string, limit int, filters search.Filters) (Response, error) {
	if g.consent == nil {
		return Response{Status: "disabled"}, nil
	}

	projects := g.consent.ListOptedIn()
	if len(projects) == 0 {
		return Response{Status: "ok"}, nil
	}

	sem := make(chan struct{}, g.concurrency)
	var wg sync.WaitGroup
	outcomes := make([]outcome, len(projects))

	for i, project := range projects {
		i, project := i, project
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			engine, err := g.resolve(project)
			if err != nil {
				outcomes[i] = outcome{err: err}
				g.log.WithError(err).WithField("project", project).Warn("cross-project search: resolve failed")
				return
			}
			resp, err := engine.SearchCode(ctx, search.Query{Text: query, Limit: limit, Mode: search.ModeSemantic})
			if err != nil {
				outcomes[i] = outcome{err: err}
				g.log.WithError(err).WithField("project", project).Warn("cross-project search: query failed")
				return
			}
			outcomes[i] = outcome{results: resp.Results}
		}()
	}
	wg.Wait()

	var all []Result
	failures := 0
	for i, project := range projects {
		if outcomes[i].err != nil {
			failures++
			continue
		}
		for _, r := range outcomes[i].results {
			all = append(all, Result{Project: project, Result: r})
		}
	}
	if failures == len(projects) && len(projects) > 0 {
		return Response{}, firstErr(outcomes)
	}

	all = postFilter(all, filters)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	return Response{Status: "ok", Results: all}, nil
}

type outcome struct {
	results []search.Result
	err     error
}

func postFilter(results []Result, f search.Filters) []Result {
	if f.FilePattern == "" && f.Language == "" {
		return results
	}
	out := results[:0]
	for _, r := range results {
		if f.FilePattern != "" && !strings.Contains(r.Unit.Metadata["file_path"], f.FilePattern) {
			continue
		}
		if f.Language != "" && r.Unit.Metadata["language"] != f.Language {
			continue
		}
		out = append(out, r)
	}
	return out
}

func firstErr(outcomes []outcome) error {
	for _, o := range outcomes {
		if o.err != nil {
			return o.err
		}
	}
	return nil
}

// OptInCrossProject opts project into cross-project search.
func (g *Gateway) OptInCrossProject(project string) error {
	if g.consent == nil {
		return nil
	}
	if err := g.consent.OptIn(project); err != nil {
		return err
	}
	g.stats.recordOptIn()
	return nil
}

// OptOutCrossProject opts project out of cross-project search.
func (g *Gateway) OptOutCrossProject(project string) error {
	if g.consent == nil {
		return nil
	}
	if err := g.consent.OptOut(project); err != nil {
		return err
	}
	g.stats.recordOptOut()
	return nil
}

// ListOptedInProjects delegates to the consent manager.
func (g *Gateway) ListOptedInProjects() []string {
	if g.consent == nil {
		return nil
	}
	return g.consent.ListOptedIn()
}

// GatewayStats returns a snapshot of gateway opt-in/opt-out counters.
func (g *Gateway) GatewayStats() (optIns, optOuts int) {
	g.stats.mu.Lock()
	defer g.stats.mu.Unlock()
	return g.stats.OptIns, g.stats.OptOuts
}
