package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"lexpipe/internal/chunking"
	"lexpipe/internal/config"
	"lexpipe/internal/pipeline"
	"lexpipe/internal/query"
	"lexpipe/internal/services"
	"lexpipe/internal/stages"
	"lexpipe/internal/store"
	"lexpipe/internal/store/blob"
	"lexpipe/internal/store/primary"
	"lexpipe/internal/store/vector"
	"lexpipe/internal/task"
)

// App holds every initialized dependency. Commands pull it out of the
// cobra context; there is exactly one per process.
type App struct {
	Config *config.Config

	Meta  store.MetadataStore
	Index store.VectorIndex
	Blob  store.BlobStore
	Bus   store.MessageBus

	Registry *task.Registry
	Runtime  *task.Runtime

	Pipeline *pipeline.Coordinator
	Query    *query.Coordinator
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	app := &App{Config: cfg}

	if err := app.initMetadataStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initVectorIndex(ctx); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initBlobStore(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initBus(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initTasks(ctx); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	app.initCoordinators()

	log.Info("application initialization complete")
	return app, nil
}

func (a *App) initMetadataStore(ctx context.Context) error {
	meta, err := primary.NewStore(ctx, a.Config.Database.Primary.DSN)
	if err != nil {
		return fmt.Errorf("init metadata store: %w", err)
	}
	a.Meta = meta
	return nil
}

func (a *App) initVectorIndex(ctx context.Context) error {
	index, err := vector.NewStore(ctx, a.Config.Database.Vector.DSN, a.Config.Embedding.Dimension)
	if err != nil {
		return fmt.Errorf("init vector index: %w", err)
	}
	a.Index = index
	return nil
}

func (a *App) initBlobStore() error {
	b, err := blob.NewStore(a.Config.Blob.Directory)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}
	a.Blob = b
	return nil
}

func (a *App) initBus() error {
	a.Bus = store.NewAsynqBus(a.Config.Redis.Address, a.Config.Redis.Password, a.Config.Redis.DB)
	return nil
}

func (a *App) initTasks(ctx context.Context) error {
	cfg := a.Config

	openaiProvider, err := services.NewOpenAIProvider(cfg.Embedding.OpenaiApiKey, cfg.Embedding.Model, cfg.Generation.Model)
	if err != nil {
		return fmt.Errorf("init openai provider: %w", err)
	}
	if openaiProvider.Dimension() != cfg.Embedding.Dimension {
		return fmt.Errorf("embedding model %s produces %d-dimensional vectors but embedding.dimension is %d",
			cfg.Embedding.Model, openaiProvider.Dimension(), cfg.Embedding.Dimension)
	}

	var generator services.GenerationProvider = openaiProvider
	if cfg.Generation.Provider == "gemini" {
		gemini, err := services.NewGeminiProvider(ctx, cfg.Generation.GoogleApiKey, cfg.Generation.Model)
		if err != nil {
			return fmt.Errorf("init gemini provider: %w", err)
		}
		generator = gemini
	}
	log.WithFields(log.Fields{
		"embedding":  cfg.Embedding.Model,
		"generation": generator.Name(),
	}).Info("model providers initialized")

	a.Registry = task.NewRegistry()
	a.Runtime = task.NewRuntime()
	return stages.RegisterAll(a.Registry, stages.Deps{
		Blob:      a.Blob,
		Index:     a.Index,
		Extractor: services.NewDocumentExtractor(),
		Chunker:   chunking.NewChunker(cfg.Chunking.MaxTokens, cfg.Chunking.Overlap),
		Embedder:  openaiProvider,
		Generator: generator,
	})
}

func (a *App) initCoordinators() {
	a.Pipeline = pipeline.NewCoordinator(a.Registry, a.Runtime, a.Meta, a.Bus, a.Config.StagePolicies())
	a.Query = query.NewCoordinator(a.Registry, a.Runtime, a.Config.Query.Policy.Policy())
}

// cleanupPartialInit closes whatever NewApp had opened before failing, in
// reverse initialization order.
func (a *App) cleanupPartialInit() {
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			log.WithError(err).Warn("closing message bus during cleanup")
		}
	}
	if a.Index != nil {
		if err := a.Index.Close(); err != nil {
			log.WithError(err).Warn("closing vector index during cleanup")
		}
	}
	if a.Meta != nil {
		if err := a.Meta.Close(); err != nil {
			log.WithError(err).Warn("closing metadata store during cleanup")
		}
	}
}

// Close releases all connections. Safe to call once, typically deferred by
// the command that built the app.
func (a *App) Close() {
	a.cleanupPartialInit()
}
