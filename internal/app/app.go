// Package app wires configuration into the running components shared by the
// server and the command-line client.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-feed-service/internal/config"
	"github.com/helixir/paper-feed-service/internal/database"
	"github.com/helixir/paper-feed-service/internal/events"
	"github.com/helixir/paper-feed-service/internal/observability"
	"github.com/helixir/paper-feed-service/internal/pdf"
	"github.com/helixir/paper-feed-service/internal/papersources"
	"github.com/helixir/paper-feed-service/internal/papersources/alphaxiv"
	"github.com/helixir/paper-feed-service/internal/papersources/mock"
	"github.com/helixir/paper-feed-service/internal/papersources/scraper"
	"github.com/helixir/paper-feed-service/internal/repository"
)

// Services holds the components built from a Config.
type Services struct {
	Registry   *papersources.Registry
	Source     papersources.Source
	Repository *repository.PaperRepository
	PDF        *pdf.Downloader

	// DB is nil unless bookmarks are stored in PostgreSQL.
	DB *database.DB
	// Publisher is a NoopPublisher when Kafka is disabled.
	Publisher events.Publisher

	logger zerolog.Logger
}

// Build creates every component described by cfg and loads the persisted
// repository state. metrics may be nil. Close must be called on success.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*Services, error) {
	s := &Services{
		Publisher: events.NoopPublisher{},
		logger:    logger,
	}

	registry, err := NewRegistry(cfg.PaperSources, logger, metrics)
	if err != nil {
		return nil, err
	}
	s.Registry = registry

	kind, err := papersources.ParseKind(cfg.PaperSources.Active)
	if err != nil {
		return nil, err
	}
	source, err := registry.Select(kind)
	if err != nil {
		return nil, err
	}
	s.Source = source

	s.PDF = NewPDFDownloader(cfg.PaperSources, logger, metrics)

	store, err := s.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Kafka.Enabled {
		s.Publisher = events.NewKafkaPublisher(KafkaConfig(cfg.Kafka), logger)
	}

	s.Repository = repository.NewPaperRepository(source, store, logger,
		repository.WithMetrics(metrics),
		repository.WithPublisher(s.Publisher),
		repository.WithFanoutConcurrency(cfg.Bookmarks.FanoutConcurrency),
		repository.WithInstanceID(cfg.Kafka.InstanceID),
	)

	if err := s.Repository.Load(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("load repository: %w", err)
	}

	logger.Info().
		Str("source", source.Name()).
		Str("store", cfg.Bookmarks.Store).
		Bool("events", cfg.Kafka.Enabled).
		Msg("paper feed services ready")

	return s, nil
}

// NewListener creates the bookmark event listener for this instance. It
// returns nil when Kafka is disabled.
func (s *Services) NewListener(cfg *config.Config, metrics *observability.Metrics) *events.Listener {
	if !cfg.Kafka.Enabled {
		return nil
	}
	kcfg := KafkaConfig(cfg.Kafka)
	kcfg.GroupID = cfg.Kafka.ConsumerGroup()
	return events.NewListener(kcfg, s.Repository, cfg.Kafka.InstanceID, s.logger, metrics)
}

// Close releases the publisher and the database pool.
func (s *Services) Close() error {
	var errs []error
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if s.DB != nil {
		s.DB.Close()
	}
	return errors.Join(errs...)
}

func (s *Services) openStore(ctx context.Context, cfg *config.Config) (repository.BookmarkStore, error) {
	if cfg.Bookmarks.Store != config.StorePostgres {
		return repository.NewMemoryStore(), nil
	}

	db, err := database.New(ctx, &cfg.Database, s.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	s.DB = db

	if cfg.Database.MigrationAutoRun {
		if err := database.MigrateUp(ctx, db, cfg.Database.MigrationPath, s.logger); err != nil {
			db.Close()
			s.DB = nil
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return repository.NewPgStore(db), nil
}

// NewPDFDownloader creates the full-text downloader.
func NewPDFDownloader(cfg config.PaperSourcesConfig, logger zerolog.Logger, metrics *observability.Metrics) *pdf.Downloader {
	return pdf.NewDownloader(pdf.Config{
		SiteURL:   cfg.PDF.SiteURL,
		Timeout:   cfg.PDF.Timeout,
		MaxSize:   cfg.PDF.MaxSize,
		UserAgent: cfg.UserAgent,
		Recorder:  Recorder(metrics),
	}, logger)
}

// NewRegistry registers every source strategy configured in cfg.
func NewRegistry(cfg config.PaperSourcesConfig, logger zerolog.Logger, metrics *observability.Metrics) (*papersources.Registry, error) {
	recorder := Recorder(metrics)

	selectors, err := scraper.LoadSelectors(cfg.Scraper.SelectorsFile)
	if err != nil {
		return nil, fmt.Errorf("load scraper selectors: %w", err)
	}

	registry := papersources.NewRegistry()
	registry.Register(papersources.KindMock, mock.NewClient(mock.Config{
		Delay: cfg.Mock.Delay,
	}, logger, recorder))
	registry.Register(papersources.KindAPI, alphaxiv.NewClient(alphaxiv.Config{
		BaseURL:      cfg.AlphaXiv.BaseURL,
		AssetBaseURL: cfg.AlphaXiv.AssetBaseURL,
		SiteURL:      cfg.AlphaXiv.SiteURL,
		PageSize:     cfg.AlphaXiv.PageSize,
		Timeout:      cfg.AlphaXiv.Timeout,
		RateLimit:    cfg.AlphaXiv.RateLimit,
		BurstSize:    cfg.AlphaXiv.BurstSize,
		UserAgent:    cfg.UserAgent,
	}, nil, logger, recorder))
	registry.Register(papersources.KindScraper, scraper.NewClient(scraper.Config{
		SiteURL:      cfg.Scraper.SiteURL,
		AssetBaseURL: cfg.Scraper.AssetBaseURL,
		Timeout:      cfg.Scraper.Timeout,
		RateLimit:    cfg.Scraper.RateLimit,
		BurstSize:    cfg.Scraper.BurstSize,
		UserAgent:    cfg.UserAgent,
		Selectors:    &selectors,
	}, nil, logger, recorder))

	return registry, nil
}

// Recorder adapts metrics to papersources.Recorder. A nil *Metrics yields a
// nil interface so strategies fall back to papersources.NopRecorder.
func Recorder(metrics *observability.Metrics) papersources.Recorder {
	if metrics == nil {
		return nil
	}
	return metrics
}

// KafkaConfig converts the Kafka section into an events.Config.
func KafkaConfig(cfg config.KafkaConfig) events.Config {
	return events.Config{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		GroupID:      cfg.GroupID,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}
}
