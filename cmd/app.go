package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/ragd/db"
	"github.com/koopa0/ragd/internal/answer"
	"github.com/koopa0/ragd/internal/config"
	"github.com/koopa0/ragd/internal/ingest"
	"github.com/koopa0/ragd/internal/log"
	"github.com/koopa0/ragd/internal/provider"
	"github.com/koopa0/ragd/internal/retrieve"
	"github.com/koopa0/ragd/internal/store"
)

// app holds the wired application components shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger log.Logger
	pool   *pgxpool.Pool

	store        *store.Store
	pipeline     *ingest.Pipeline
	orchestrator *answer.Orchestrator
}

// setup loads configuration, runs migrations, connects the pool and wires
// the pipeline and orchestrator. Close releases the pool.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: slog.LevelInfo})

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := store.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	st := store.New(pool, logger)

	embedder, generator, err := buildProviders(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	pipeline := ingest.NewPipeline(ingest.NewGateway(st), embedder, logger,
		ingest.WithConcurrency(cfg.EmbedConcurrency),
		ingest.WithChunking(cfg.ChunkMaxLength, cfg.ChunkOverlap))

	engine := retrieve.New(st, logger)

	answerOpts := []answer.Option{
		answer.WithTopK(cfg.TopK),
		answer.WithContextBudget(cfg.ContextBudget),
		answer.WithGenerationTimeout(cfg.GenerationTimeout),
		answer.WithMaxTokens(cfg.MaxTokens),
	}
	if cfg.QueryAudit {
		answerOpts = append(answerOpts, answer.WithRecorder(st))
	}
	orchestrator := answer.New(embedder, engine, generator, logger, answerOpts...)

	return &app{
		cfg:          cfg,
		logger:       logger,
		pool:         pool,
		store:        st,
		pipeline:     pipeline,
		orchestrator: orchestrator,
	}, nil
}

// buildProviders constructs the configured embedder and generator. The
// embedder is wrapped with a rate cap and a retry budget; each retry
// attempt passes through the rate limiter again.
func buildProviders(ctx context.Context, cfg *config.Config) (provider.Embedder, provider.Generator, error) {
	var (
		embedder  provider.Embedder
		generator provider.Generator
		err       error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		embedder, err = provider.NewOpenAIEmbedder(cfg.EmbedderModel, store.VectorDimension)
		if err != nil {
			return nil, nil, fmt.Errorf("creating OpenAI embedder: %w", err)
		}
		generator, err = provider.NewOpenAIGenerator(cfg.GeneratorModel)
		if err != nil {
			return nil, nil, fmt.Errorf("creating OpenAI generator: %w", err)
		}
	case config.ProviderGemini:
		embedder, err = provider.NewGeminiEmbedder(ctx, cfg.EmbedderModel, store.VectorDimension)
		if err != nil {
			return nil, nil, fmt.Errorf("creating Gemini embedder: %w", err)
		}
		generator, err = provider.NewGeminiGenerator(ctx, cfg.GeneratorModel)
		if err != nil {
			return nil, nil, fmt.Errorf("creating Gemini generator: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidProvider, cfg.Provider)
	}

	embedder = provider.NewRateLimitedEmbedder(embedder, cfg.EmbedRatePerSec)
	embedder = provider.NewRetryingEmbedder(embedder, cfg.RetryBudget)
	return embedder, generator, nil
}

// Close releases the application's resources.
func (a *app) Close() {
	a.pipeline.Wait()
	a.pool.Close()
}
