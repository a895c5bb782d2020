package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"NewsIngest/internal/config"
	"NewsIngest/internal/dedup"
	"NewsIngest/internal/domain"
	"NewsIngest/internal/freshness"
	"NewsIngest/internal/infrastructure/crawler"
	"NewsIngest/internal/infrastructure/httpapi"
	"NewsIngest/internal/infrastructure/storage"
	"NewsIngest/internal/keywords"
	"NewsIngest/internal/logging"
	"NewsIngest/internal/ports"
	"NewsIngest/internal/source"
	"NewsIngest/internal/usecase"
)

// Application wires configuration to the ingestion core and its HTTP
// surface, with explicit lifecycle.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *sql.DB
	manager *usecase.Manager
	server  *httpapi.Server
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	extractor := keywords.New()

	deduplicator := dedup.New(dedup.Config{
		SimilarityThreshold: cfg.Dedup.SimilarityThreshold,
		TitleWeight:         cfg.Dedup.TitleWeight,
		ContentWeight:       cfg.Dedup.ContentWeight,
	}, extractor, baseLogger.With("component", "dedup"))

	fresh := freshness.New(domain.FilterPolicy{
		MaxAgeDays: cfg.Filter.MaxAgeDays,
		Enabled:    cfg.Filter.Enabled,
	}, baseLogger.With("component", "freshness"))

	var (
		db    *sql.DB
		store ports.ArticleStore
	)
	if cfg.Database.DSN != "" {
		opened, err := storage.Open(cfg.Database.DSN)
		if err != nil {
			baseLogger.Error("database unavailable, persistence disabled", "error", err)
		} else {
			db = opened
			store = storage.NewPostgresStore(db, baseLogger.With("component", "storage"))
		}
	}

	registry := buildRegistry(cfg, baseLogger)
	baseLogger.Info("sources registered", "sources", registry.Names())

	manager := usecase.NewManager(usecase.ManagerDeps{
		Adapters:     registry.All(),
		Fallback:     crawler.NewMock(cfg.Mock.Count),
		Dedup:        deduplicator,
		Freshness:    fresh,
		Store:        store,
		Logger:       baseLogger.With("component", "manager"),
		RecentWindow: cfg.Dedup.RecentWindow,
	})

	server := httpapi.NewServer(manager, cfg.Server.Address, baseLogger.With("component", "http"))

	return &Application{
		cfg:     cfg,
		logger:  baseLogger,
		db:      db,
		manager: manager,
		server:  server,
	}
}

// buildRegistry assembles adapters in a fixed order: the combined feed
// source first, then each configured site. Sites with a fallback feed
// become a multi-strategy source trying the scrape first.
func buildRegistry(cfg config.Config, logger *slog.Logger) *source.Registry {
	registry := source.NewRegistry()

	if len(cfg.Feeds) > 0 {
		registry.Register(crawler.NewFeed("RSS新聞源", cfg.Feeds, cfg.Topics,
			logger.With("component", "source.feed")))
	}

	for _, site := range cfg.Sites {
		var adapter source.Adapter = crawler.NewSite(site, nil,
			logger.With("component", "source.site", "site", site.Name))

		if site.FeedURL != "" {
			feed := crawler.NewFeed(site.Name+"-feed",
				[]config.FeedConfig{{Name: site.Name, URL: site.FeedURL}},
				cfg.Topics,
				logger.With("component", "source.feed", "site", site.Name))
			adapter = crawler.NewFallback(site.Name,
				[]source.Adapter{adapter, feed},
				logger.With("component", "source.fallback", "site", site.Name))
		}
		registry.Register(adapter)
	}

	return registry
}

// Manager exposes the core for embedding callers.
func (a *Application) Manager() *usecase.Manager {
	return a.manager
}

// Run starts the optional scheduler and serves HTTP until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	if a.cfg.Scheduler.AutoStart {
		if err := a.manager.StartScheduler(a.cfg.Scheduler.Interval()); err != nil {
			a.logger.Error("scheduler autostart failed", "error", err)
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http shutdown", "error", err)
		}
		<-serverErr
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Close()
			return err
		}
	}

	a.Close()
	return nil
}

// Close releases background work and the database handle.
func (a *Application) Close() {
	a.manager.Close()
	if a.db != nil {
		_ = a.db.Close()
	}
}
