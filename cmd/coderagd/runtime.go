package main

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/gorm"

	"coderag.evalgo.org/alerts"
	"coderag.evalgo.org/archival"
	"coderag.evalgo.org/autoindex"
	"coderag.evalgo.org/bulkarchival"
	"coderag.evalgo.org/capacity"
	"coderag.evalgo.org/consent"
	"coderag.evalgo.org/crossproject"
	"coderag.evalgo.org/embedding"
	"coderag.evalgo.org/health"
	"coderag.evalgo.org/indexer"
	"coderag.evalgo.org/internal/config"
	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/internal/logging"
	"coderag.evalgo.org/lifecycle"
	"coderag.evalgo.org/maintenance"
	"coderag.evalgo.org/metrics"
	"coderag.evalgo.org/metricsdb"
	"coderag.evalgo.org/scheduler"
	"coderag.evalgo.org/search"
	"coderag.evalgo.org/store"
	"coderag.evalgo.org/tracker"
	"coderag.evalgo.org/watcher"
)

// runtimeOptions are the daemon's CLI-derived settings; everything else
// comes from config.Load()'s CODERAG_* environment layer.
type runtimeOptions struct {
	root               string
	project            string
	embeddingEndpoint  string
	embeddingModelName string
	embeddingDim       int
}

// runtime owns every long-lived component wired up for one daemon run: the
// active project's indexer/search/watcher stack, plus the cross-cutting
// health/metrics/alerts/capacity/scheduling components shared by every
// project under the same storage root.
type runtime struct {
	cfg config.Config
	log *logging.ContextLogger

	db       *gorm.DB
	memStore *store.ChromemStore
	keyword  *store.BleveIndex

	tracker   *tracker.Tracker
	pipeline  *embedding.Pipeline
	indexer   *indexer.Indexer
	autoindex *autoindex.Service
	watcher   *watcher.Watcher
	search    *search.Engine
	lifecycle *lifecycle.Manager

	consent   *consent.FileManager
	crossproj *crossproject.Gateway
	archival  *archival.Manager

	scorer      *health.Scorer
	maintenance *maintenance.Runner
	healthSched *scheduler.Scheduler

	bulk      *bulkarchival.Batch
	bulkSched *bulkarchival.Scheduler

	gauges    *metrics.Gauges
	collector *metrics.Collector
	alertEng  *alerts.Engine
	planner   *capacity.Planner

	engineMu sync.Mutex
	engines  map[string]*search.Engine // lazily opened sibling project engines, for cross-project search
}

// newRuntime wires every component for one project: config, then storage,
// then services, then scheduled jobs and metrics, then the watcher.
func newRuntime(opts runtimeOptions) (*runtime, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, errs.Validation("coderagd", "newRuntime", err.Error())
	}
	if opts.embeddingEndpoint == "" {
		return nil, errs.Validation("coderagd", "newRuntime", "--embedding-endpoint is required")
	}

	log := logging.ServiceLogger("coderagd").WithField("project", opts.project)

	db, err := metricsdb.Open(cfg.MetricsDBPath())
	if err != nil {
		return nil, err
	}

	projectDir := cfg.ProjectIndexDir(opts.project)
	memStore, err := store.NewChromemStore(filepath.Join(projectDir, "vectors"), true)
	if err != nil {
		return nil, err
	}
	keyword, err := store.NewBleveIndex(filepath.Join(projectDir, "keyword"))
	if err != nil {
		return nil, err
	}

	cache := embedding.NewCache(db)
	model := embedding.NewHTTPModel(embedding.HTTPModelConfig{
		Endpoint: opts.embeddingEndpoint, ModelName: opts.embeddingModelName, Dim: opts.embeddingDim,
	})
	pipeline := embedding.New(model, cache, embedding.Config{
		BatchThreshold: cfg.EmbeddingBatchThreshold, Workers: cfg.EmbeddingWorkers,
	})

	lifecycleMgr := lifecycle.New(cfg.HighAccessThreshold)
	trk := tracker.New(db)

	ix, err := indexer.New(indexer.Config{
		ProjectName: opts.project, Pipeline: pipeline, MemoryStore: memStore,
		KeywordIndex: keyword, Concurrency: cfg.IndexerConcurrency,
	})
	if err != nil {
		return nil, err
	}

	autoSvc, err := autoindex.New(autoindex.Config{
		ProjectName: opts.project, Root: opts.root, Indexer: ix, Tracker: trk,
		Excludes: cfg.WatcherExcludes, Enabled: cfg.AutoIndexEnabled, SizeThreshold: cfg.AutoIndexSizeThreshold,
	})
	if err != nil {
		return nil, err
	}

	searchEngine, err := search.New(search.Config{
		Pipeline: pipeline, MemoryStore: memStore, KeywordIndex: keyword,
		LifecycleMgr: lifecycleMgr, SemanticWeight: cfg.SemanticWeight,
	})
	if err != nil {
		return nil, err
	}

	consentMgr, err := consent.NewFileManager(filepath.Join(cfg.StorageRoot, "cross_project_consent.json"))
	if err != nil {
		return nil, err
	}
	archivalMgr, err := archival.New(filepath.Join(cfg.StorageRoot, "project_states.json"))
	if err != nil {
		return nil, err
	}

	r := &runtime{
		cfg: cfg, log: log,
		db: db, memStore: memStore, keyword: keyword,
		tracker: trk, pipeline: pipeline, indexer: ix, autoindex: autoSvc,
		search: searchEngine, lifecycle: lifecycleMgr,
		consent: consentMgr, archival: archivalMgr,
		engines: map[string]*search.Engine{opts.project: searchEngine},
	}
	r.crossproj = crossproject.New(crossproject.Config{
		Consent: consentMgr, Resolve: r.resolveProjectEngine, Concurrency: 4,
	})

	scorer := health.New(memStore)
	r.scorer = scorer
	r.maintenance = maintenance.New(maintenance.Config{
		Project: opts.project, MemStore: memStore, Lifecycle: lifecycleMgr, Scorer: scorer,
	})
	scheduleCfg, err := scheduler.LoadConfig(filepath.Join(cfg.StorageRoot, "schedule.json"))
	if err != nil {
		return nil, err
	}
	if scheduleCfg.MonthlyCleanup.ThresholdDays == 0 {
		scheduleCfg.MonthlyCleanup.ThresholdDays = cfg.CleanupMinAgeDays
	}
	r.healthSched = scheduler.New(r.maintenance, scheduleCfg)

	r.bulk = bulkarchival.New(archivalMgr)
	r.bulkSched = bulkarchival.NewScheduler(r.bulk, bulkarchival.SchedulerConfig{
		Enabled: true, Frequency: bulkarchival.FrequencyDaily,
		DaysThreshold: cfg.InactivityThresholdDays, DryRun: false, MaxProjects: cfg.MaxProjectsPerOperation,
	})

	r.gauges = metrics.NewGauges("coderag")
	r.collector = metrics.New(metrics.Config{
		DB: db, Scorer: scorer, DBPath: cfg.MetricsDBPath(), Project: opts.project,
		Gauges: r.gauges, Archival: archivalMgr,
	})
	r.alertEng = alerts.New(alerts.Config{DB: db, Project: opts.project, Gauges: r.gauges})
	r.planner = capacity.New(capacity.Config{History: r.collector, Gauges: r.gauges, Project: opts.project})

	w, err := watcher.New(watcher.Config{
		Root: opts.root, Excludes: cfg.WatcherExcludes, Debounce: cfg.WatcherDebounce,
		OnChange: r.onFileChanged,
	})
	if err != nil {
		return nil, err
	}
	r.watcher = w

	return r, nil
}

// resolveProjectEngine lazily opens a read-only search.Engine over a
// sibling project's on-disk store, the shape crossproject.Gateway's
// ProjectSearcher expects. Engines are cached for the runtime's lifetime.
func (r *runtime) resolveProjectEngine(project string) (*search.Engine, error) {
	r.engineMu.Lock()
	defer r.engineMu.Unlock()

	if e, ok := r.engines[project]; ok {
		return e, nil
	}

	dir := r.cfg.ProjectIndexDir(project)
	mem, err := store.NewChromemStore(filepath.Join(dir, "vectors"), true)
	if err != nil {
		return nil, err
	}
	engine, err := search.New(search.Config{
		Pipeline: r.pipeline, MemoryStore: mem, LifecycleMgr: r.lifecycle,
		SemanticWeight: r.cfg.SemanticWeight,
	})
	if err != nil {
		return nil, err
	}
	r.engines[project] = engine
	return engine, nil
}

// onFileChanged is the watcher's debounced callback: re-index a changed
// file, or prune a deleted one.
func (r *runtime) onFileChanged(ev watcher.ChangeEvent) {
	ctx := context.Background()
	if ev.Deleted {
		if _, err := r.indexer.DeleteFileIndex(ctx, ev.Path); err != nil {
			r.log.WithError(err).WithField("path", ev.Path).Warn("failed to prune deleted file from index")
		}
		return
	}
	if _, err := r.indexer.IndexFile(ctx, ev.Path); err != nil {
		r.log.WithError(err).WithField("path", ev.Path).Warn("failed to re-index changed file")
	}
}

// start performs startup-time auto-indexing (if configured), begins
// watching the filesystem, and starts the scheduled maintenance jobs.
func (r *runtime) start(ctx context.Context) error {
	if r.cfg.AutoIndexOnStartup {
		should, err := r.autoindex.ShouldAutoIndex()
		if err != nil {
			r.log.WithError(err).Warn("auto-index decision failed; skipping startup index")
		} else if should {
			if _, err := r.autoindex.StartAutoIndexing(ctx, false); err != nil {
				r.log.WithError(err).Warn("startup auto-indexing failed")
			}
		}
	}

	if err := r.watcher.Start(); err != nil {
		return err
	}
	if err := r.healthSched.Start(); err != nil {
		return err
	}
	if err := r.bulkSched.Start(); err != nil {
		return err
	}
	return nil
}

// metricsInterval is how often the daemon snapshots HealthMetrics, feeds
// them through the alert engine, and refreshes the capacity forecast.
const metricsInterval = 15 * time.Minute

// runMetricsLoop periodically composes a HealthMetrics snapshot, stores it,
// evaluates alert thresholds against it, and refreshes the capacity
// forecast's Prometheus gauges. Returns when ctx is cancelled.
func (r *runtime) runMetricsLoop(ctx context.Context) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.collectOnce(now)
		}
	}
}

func (r *runtime) collectOnce(now time.Time) {
	snapshot, err := r.collector.CollectMetrics(context.Background(), now)
	if err != nil {
		r.log.WithError(err).Warn("metrics collection failed")
		return
	}
	if err := r.collector.StoreMetrics(snapshot); err != nil {
		r.log.WithError(err).Warn("storing metrics snapshot failed")
	}
	if _, err := r.alertEng.Evaluate(snapshot, now); err != nil {
		r.log.WithError(err).Warn("alert evaluation failed")
	}
	if _, err := r.planner.Forecast(90, now); err != nil {
		r.log.WithError(err).Warn("capacity forecast failed")
	}
}

// stop shuts down every running component in roughly reverse start order.
func (r *runtime) stop() {
	r.watcher.Stop()
	r.bulkSched.Stop()
	r.healthSched.Stop()

	if err := r.autoindex.Close(); err != nil {
		r.log.WithError(err).Warn("autoindex close failed")
	}
	if err := r.keyword.Close(); err != nil {
		r.log.WithError(err).Warn("keyword index close failed")
	}
	if err := r.memStore.Close(); err != nil {
		r.log.WithError(err).Warn("memory store close failed")
	}
	if sqlDB, err := r.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			r.log.WithError(err).Warn("metrics database close failed")
		}
	}
}
