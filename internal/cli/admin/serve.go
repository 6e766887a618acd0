package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/agentkb/internal/api/handlers"
	"github.com/cloo-solutions/agentkb/internal/cache"
	"github.com/cloo-solutions/agentkb/internal/config"
	"github.com/cloo-solutions/agentkb/internal/ingest"
	"github.com/cloo-solutions/agentkb/internal/jobs"
	"github.com/cloo-solutions/agentkb/internal/logger"
	"github.com/cloo-solutions/agentkb/internal/metrics"
	"github.com/cloo-solutions/agentkb/internal/openai"
	"github.com/cloo-solutions/agentkb/internal/repository"
	"github.com/cloo-solutions/agentkb/internal/server"
	"github.com/cloo-solutions/agentkb/internal/service"
	"github.com/cloo-solutions/agentkb/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the agentkb API server and the embedding regeneration worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the regeneration worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogOutput); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync()
	logger.Debug("config loaded",
		zap.String("environment", cfg.Environment),
		zap.Bool("s3", cfg.HasS3()),
		zap.Bool("redis", cfg.HasRedis()),
		zap.Bool("worker", cfg.WorkerEnabled))

	if cfg.SentryDSN != "" {
		// 10% sampling in production, everything elsewhere
		sampleRate := 1.0
		if cfg.Environment == "production" {
			sampleRate = 0.1
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			Release:          cmd.Root().Version,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			logger.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
		} else {
			defer shutdownTelemetry()
		}
	}

	metrics.Init()

	if portFlag, _ := cmd.Flags().GetString("port"); cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if cfg.InitOrgName != "" {
		if err := bootstrapInitialOrg(ctx, cfg, newAuthService(pool)); err != nil {
			return fmt.Errorf("failed to bootstrap initial org: %w", err)
		}
	}

	var objects ingest.ObjectReader
	if cfg.HasS3() {
		s3Client, err := newS3Client(ctx, cfg)
		if err != nil {
			return err
		}
		logger.Info("S3 bucket ready", zap.String("bucket", cfg.S3Bucket))
		objects = s3Client
	}

	var embeddingCache service.EmbeddingCache
	if cfg.HasRedis() {
		redisCache, err := cache.NewEmbeddingCache(ctx, cfg.RedisURL, cfg.EmbeddingCacheTTL)
		if err != nil {
			logger.Warn("redis unavailable, query embeddings will not be cached", zap.Error(err))
		} else {
			defer redisCache.Close()
			embeddingCache = redisCache
			logger.Info("query embedding cache enabled", zap.Duration("ttl", cfg.EmbeddingCacheTTL))
		}
	}

	providers := openai.NewFactory(openai.Config{
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		Timeout:             cfg.ProviderTimeout,
		MaxAttempts:         cfg.ProviderMaxAttempts,
		Logger:              logger.Named("openai"),
	}, cfg.DefaultGenerationModel)

	svcs := newServices(pool, cfg, providers, objects, embeddingCache)

	var worker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if cfg.WorkerEnabled && !noWorker {
		processor := jobs.NewRegenerationWorker(repository.NewRegenerationJobRepository(pool), svcs.regeneration)
		worker = jobs.NewWorker(processor, cfg.WorkerPollInterval)
		go worker.Start(ctx)
		logger.Info("regeneration worker started", zap.Duration("poll_interval", cfg.WorkerPollInterval))
	}

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:       svcs.auth,
		AgentHandler:        handlers.NewAgentHandler(svcs.agents),
		DocumentHandler:     handlers.NewDocumentHandler(svcs.documents),
		SegmentHandler:      handlers.NewSegmentHandler(svcs.segments),
		ChunkingHandler:     handlers.NewChunkingHandler(svcs.chunking),
		SearchHandler:       handlers.NewSearchHandler(svcs.search),
		RegenerationHandler: handlers.NewRegenerationHandler(svcs.regeneration),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("server failed", zap.Error(err))
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("shutting down")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

type services struct {
	auth         *service.AuthService
	agents       *service.AgentService
	documents    *service.DocumentService
	segments     *service.SegmentService
	chunking     *service.ChunkingService
	search       *service.SearchService
	regeneration *service.RegenerationService
}

// newServices wires the repositories into the services. objects and
// embeddingCache may be nil.
func newServices(
	pool *pgxpool.Pool,
	cfg *config.Config,
	providers *openai.Factory,
	objects ingest.ObjectReader,
	embeddingCache service.EmbeddingCache,
) *services {
	agentRepo := repository.NewAgentRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	segmentRepo := repository.NewSegmentRepository(pool)
	txRunner := repository.NewTxRunner(pool)
	uuidGen := &service.DefaultUUIDGenerator{}

	return &services{
		auth:      service.NewAuthService(repository.NewOrgRepository(pool), repository.NewAPIKeyRepository(pool), uuidGen),
		agents:    service.NewAgentService(agentRepo),
		documents: service.NewDocumentService(agentRepo, documentRepo, txRunner),
		segments:  service.NewSegmentService(agentRepo, documentRepo, providers, segmentRepo),
		chunking: service.NewChunkingService(agentRepo, documentRepo, providers, txRunner,
			ingest.NewLoader(objects, nil),
			service.ChunkingConfig{DefaultGenerationModel: cfg.DefaultGenerationModel},
		),
		search: service.NewSearchService(agentRepo, providers, repository.NewSearchRepository(pool),
			embeddingCache,
			repository.NewSearchLogRepository(pool),
			service.SearchConfig{
				DefaultThreshold: cfg.SearchDefaultThreshold,
				MaxResults:       cfg.SearchMaxResults,
				EmbeddingModel:   providers.EmbeddingModel(),
			},
		),
		regeneration: service.NewRegenerationService(agentRepo, documentRepo, providers, segmentRepo),
	}
}

// bootstrapInitialOrg makes sure the configured organization exists and, when
// an initial token is configured, that it is registered for that org.
func bootstrapInitialOrg(ctx context.Context, cfg *config.Config, auth *service.AuthService) error {
	org, created, err := auth.EnsureOrg(ctx, cfg.InitOrgName)
	if err != nil {
		return fmt.Errorf("ensure org: %w", err)
	}
	logger.Info("bootstrap organization ready",
		zap.String("name", org.Name), zap.String("id", org.ID), zap.Bool("created", created))

	if cfg.InitAPIKey == "" {
		return nil
	}

	key, err := auth.ImportAPIKey(ctx, org.ID, "", cfg.InitAPIKey)
	if err != nil {
		return fmt.Errorf("import AGENTKB_INIT_API_KEY: %w", err)
	}
	logger.Info("bootstrap API key ready", zap.String("id", key.ID))
	return nil
}
