// Package common wires the application dependencies shared by the CLI
// commands.
package common

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jonesrussell/seo-audit/internal/api"
	"github.com/jonesrussell/seo-audit/internal/audit"
	"github.com/jonesrussell/seo-audit/internal/config"
	"github.com/jonesrussell/seo-audit/internal/database"
	"github.com/jonesrussell/seo-audit/internal/logger"
	"github.com/jonesrussell/seo-audit/internal/metrics"
	"github.com/jonesrussell/seo-audit/internal/redis"
	"github.com/jonesrussell/seo-audit/internal/scheduler"
	"github.com/jonesrussell/seo-audit/internal/seoapi"
	"github.com/jonesrussell/seo-audit/internal/snapshot"
	"github.com/jonesrussell/seo-audit/internal/worker"
)

// Deps holds the assembled application components.
type Deps struct {
	Config *config.Config
	Log    logger.Interface

	DB    *sqlx.DB
	Redis *goredis.Client

	Snapshots *database.SnapshotRepository
	Items     *database.ItemRepository
	Posts     *database.PostRepository

	Metrics      *metrics.Metrics
	SnapshotSvc  *snapshot.Service
	Orchestrator *audit.Orchestrator
	Poller       *scheduler.Poller
	Handler      *api.AuditHandler
}

// Build loads configuration and assembles the full dependency graph.
func Build() (*Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, err
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	deps := assemble(cfg, log, db, redisClient)
	return deps, nil
}

// assemble builds the component graph from the opened connections. Split out
// so tests can inject their own backends.
func assemble(cfg *config.Config, log logger.Interface, db *sqlx.DB, redisClient *goredis.Client) *Deps {
	snapshots := database.NewSnapshotRepository(db)
	items := database.NewItemRepository(db)
	posts := database.NewPostRepository(db)

	m := metrics.NewMetrics(nil)

	locker := redis.NewLocker(redisClient)
	pause := redis.NewPauseState(redisClient)
	median := redis.NewMedianCache(redisClient, redis.DefaultMedianTTL)

	snapshotSvc := snapshot.NewService(snapshots, items, posts, locker, median, snapshot.Scope{
		PagesEnabled:       cfg.Audit.Scope.PagesEnabled,
		SelectedPageIDs:    cfg.Audit.Scope.SelectedPageIDs,
		PostsEnabled:       cfg.Audit.Scope.PostsEnabled,
		SelectedCategories: cfg.Audit.Scope.SelectedCategories,
	}, log)

	limiter := seoapi.NewRateLimiter()
	var noindexOpts []seoapi.NoindexOption
	if cfg.SEOAPI.NoindexUserAgent != "" {
		noindexOpts = append(noindexOpts, seoapi.WithNoindexUserAgent(cfg.SEOAPI.NoindexUserAgent))
	}

	workers := []worker.Interface{
		worker.NewBacklinksWorker(items,
			seoapi.NewBacklinksClient(cfg.SEOAPI.Backlinks.BaseURL, cfg.SEOAPI.Backlinks.Token),
			limiter, log),
		worker.NewTrafficWorker(items,
			seoapi.NewAnalyticsClient(cfg.SEOAPI.Analytics.BaseURL, cfg.SEOAPI.Analytics.Token),
			limiter, log),
		worker.NewPositionWorker(items,
			seoapi.NewPositionClient(cfg.SEOAPI.Position.BaseURL, cfg.SEOAPI.Position.Token),
			limiter, log),
		worker.NewNoindexWorker(items,
			seoapi.NewNoindexClient(noindexOpts...),
			limiter, log),
		worker.NewKeywordWorker(items,
			seoapi.NewKeywordClient(cfg.SEOAPI.Keywords.BaseURL),
			limiter, log),
	}

	advisor := audit.NewAdvisor(items)
	classifier := audit.NewClassifier(items, advisor, m, audit.ClassifierConfig{
		WaitingWeeks:     cfg.Audit.WaitingWeeks,
		AnalyticsEnabled: cfg.Audit.AnalyticsEnabled,
	}, log)

	orchestrator := audit.NewOrchestrator(
		snapshots, items, snapshotSvc, workers, classifier, locker, pause, m, log,
	)
	poller := scheduler.NewPoller(orchestrator, log, scheduler.WithCronSpec(cfg.Audit.CronSpec))
	handler := api.NewAuditHandler(orchestrator, snapshots, items, log)

	return &Deps{
		Config:       cfg,
		Log:          log,
		DB:           db,
		Redis:        redisClient,
		Snapshots:    snapshots,
		Items:        items,
		Posts:        posts,
		Metrics:      m,
		SnapshotSvc:  snapshotSvc,
		Orchestrator: orchestrator,
		Poller:       poller,
		Handler:      handler,
	}
}

// Close releases the connections.
func (d *Deps) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Log.Warn("failed to close redis client", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Log.Warn("failed to close database", "error", err)
		}
	}
}
