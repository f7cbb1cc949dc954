package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go-leaf-inspector/internal/classifier"
	"go-leaf-inspector/internal/config"
	"go-leaf-inspector/internal/logger"
	"go-leaf-inspector/internal/observer"
	"go-leaf-inspector/internal/repository"
	"go-leaf-inspector/internal/repository/postgresql"
	"go-leaf-inspector/internal/service"
	"go-leaf-inspector/internal/storage"
	"go-leaf-inspector/internal/transport"
	"go-leaf-inspector/pkg/services"
	"go-leaf-inspector/pkg/validation"

	"github.com/sirupsen/logrus"
)

// Container holds all application dependencies
type Container struct {
	config            *config.Config
	registry          *classifier.Registry
	repository        repository.PredictionRepository
	publisher         *observer.EventPublisher
	metrics           *observer.MetricsObserver
	predictionService service.PredictionService
	handler           http.Handler
}

// NewContainer creates a new dependency injection container. Models that
// fail to load are kept in the registry as unavailable; only a missing or
// malformed manifest and an unreachable database are fatal.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	registry, err := classifier.LoadRegistryFile(cfg.ModelManifestPath,
		classifier.NewLoaderFactory(cfg.ONNXRuntimeLibrary), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load models: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"manifest":  cfg.ModelManifestPath,
		"models":    len(registry.Names()),
		"available": registry.Available(),
	}).Info("Model registry loaded")

	fetcher, err := NewFetcher(cfg)
	if err != nil {
		registry.Close()
		return nil, err
	}

	repo, err := NewRepository(ctx, cfg)
	if err != nil {
		registry.Close()
		return nil, err
	}

	metrics := observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher(2)
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	predictionService := service.NewPredictionService(service.Dependencies{
		Registry:  registry,
		Fetcher:   fetcher,
		Validator: validation.NewSourceValidatorWithOptions(cfg.SourceSchemes(), nil),
		Repo:      repo,
		Publisher: publisher,
		Timeout:   cfg.PredictionTimeout,
	})

	handler := transport.NewHandler(transport.Dependencies{
		Service: predictionService,
		Reports: services.NewReportService(repo),
		Metrics: metrics,
		Repo:    repo,
	}, cfg)

	return &Container{
		config:            cfg,
		registry:          registry,
		repository:        repo,
		publisher:         publisher,
		metrics:           metrics,
		predictionService: predictionService,
		handler:           handler,
	}, nil
}

// NewFetcher builds the image source router for the API. Only the schemes
// the configuration allows are served, and local paths only under ImageRoot.
func NewFetcher(cfg *config.Config) (*storage.Router, error) {
	router := storage.NewRemoteRouter()
	if cfg.ImageRoot != "" {
		router.ServeLocal(cfg.ImageRoot)
	}
	if err := AddRemoteSources(router, cfg); err != nil {
		return nil, err
	}
	return router, nil
}

// AddRemoteSources registers the allowed remote schemes on router: HTTP(S)
// always, Azure blobs when credentials are configured.
func AddRemoteSources(router *storage.Router, cfg *config.Config) error {
	allowed := cfg.AllowedSourceSchemes
	if allowed == nil {
		allowed = []string{"http", "https", storage.BlobScheme}
	}

	httpFetcher := storage.NewHTTPImageFetcher(storage.HTTPOptions{
		Timeout:      cfg.PredictionTimeout,
		MaxImageSize: cfg.MaxRequestBodySize,
	})
	for _, scheme := range allowed {
		switch scheme {
		case "http", "https":
			router.Register(scheme, httpFetcher)
		case storage.BlobScheme:
			if !cfg.AzureEnabled() {
				continue
			}
			blobs, err := storage.NewAzureStorage(cfg.AzureStorageAccount, cfg.AzureStorageKey)
			if err != nil {
				return fmt.Errorf("failed to create azure storage: %w", err)
			}
			router.Register(storage.BlobScheme, blobs)
		}
	}
	return nil
}

// NewRepository opens PostgreSQL when DatabaseURL is set and falls back to
// the in-memory store otherwise.
func NewRepository(ctx context.Context, cfg *config.Config) (repository.PredictionRepository, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, predictions are kept in memory")
		return repository.NewMemoryPredictionRepository(), nil
	}

	db, err := postgresql.NewDB(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := postgresql.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.WithField("driver", cfg.DatabaseDriver).Info("Connected to PostgreSQL")
	return postgresql.NewPgPredictionRepository(db), nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

func (c *Container) PredictionService() service.PredictionService {
	return c.predictionService
}

func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Close drains pending events and releases models and the database.
func (c *Container) Close() error {
	c.publisher.Close()
	return errors.Join(c.registry.Close(), c.repository.Close())
}
