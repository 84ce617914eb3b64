package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/ai"
	"github.com/xxxsen/studymate/internal/config"
	"github.com/xxxsen/studymate/internal/db"
	"github.com/xxxsen/studymate/internal/embedcache"
	"github.com/xxxsen/studymate/internal/filestore"
	"github.com/xxxsen/studymate/internal/handler"
	"github.com/xxxsen/studymate/internal/health"
	"github.com/xxxsen/studymate/internal/indexer"
	"github.com/xxxsen/studymate/internal/job"
	"github.com/xxxsen/studymate/internal/middleware"
	"github.com/xxxsen/studymate/internal/pkg/retry"
	"github.com/xxxsen/studymate/internal/quiz"
	"github.com/xxxsen/studymate/internal/repo"
	"github.com/xxxsen/studymate/internal/retrieval"
	"github.com/xxxsen/studymate/internal/schedule"
	"github.com/xxxsen/studymate/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "studymate",
		Short: "studymate course assistant backend",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run studymate server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}

	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "rebuild chunks and embeddings for every document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			a, err := buildApp(cfg, conn)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			report, err := a.documents.ReindexAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d/%d documents\n", report.Succeeded, report.Total)
			if len(report.Failed) > 0 {
				return fmt.Errorf("failed documents: %s", strings.Join(report.Failed, ", "))
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd, reindexCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, *sql.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, conn, nil
}

type app struct {
	search    *service.SearchService
	chat      *service.ChatService
	quizzes   *service.QuizService
	documents *service.DocumentService
	checker   *health.Checker
	cacheRepo *repo.EmbeddingCacheRepo
}

func buildEmbedder(cfg *config.Config, cacheRepo *repo.EmbeddingCacheRepo, checker *health.Checker) (*ai.BatchEmbedder, error) {
	name := cfg.AI.Embed.Provider
	provider, err := ai.NewEmbedProvider(name, cfg.AI.Providers[name])
	if err != nil {
		return nil, fmt.Errorf("init embed provider: %w", err)
	}
	var embedder ai.IEmbedder = ai.NewGroupEmbedder([]ai.EmbedderEntry{
		{Name: name, Embedder: ai.NewEmbedder(provider, cfg.AI.Embed.Model)},
	})
	if cfg.AI.EmbedCache.DBEnabled {
		embedder = embedcache.WrapDB(embedder, cacheRepo)
	}
	embedder = embedcache.WrapLRU(embedder, cfg.AI.EmbedCache.LruSize, time.Duration(cfg.AI.EmbedCache.LruTTLSeconds)*time.Second)
	return ai.NewBatchEmbedder(embedder, checker, ai.BatchConfig{
		BatchSize:     cfg.AI.BatchSize,
		RatePerSecond: cfg.AI.RatePerSecond,
		Burst:         cfg.AI.Burst,
		CallTimeout:   time.Duration(cfg.AI.Timeout) * time.Second,
		Retry: retry.Policy{
			Name:        "embed",
			MaxAttempts: cfg.AI.RetryAttempts,
			BaseDelay:   time.Duration(cfg.AI.RetryBaseDelayMs) * time.Millisecond,
			MaxDelay:    10 * time.Second,
		},
		Dimension:    cfg.Retrieval.EmbeddingDimension,
		HealthTarget: name,
	}), nil
}

func buildGenerator(cfg *config.Config) *ai.Manager {
	entries := make([]ai.GeneratorEntry, 0, len(cfg.AI.Generate.Providers))
	for _, name := range cfg.AI.Generate.Providers {
		provider, err := ai.NewProvider(name, cfg.AI.Providers[name])
		if err != nil {
			logutil.GetLogger(context.Background()).Error("skip generate provider", zap.String("provider", name), zap.Error(err))
			continue
		}
		entries = append(entries, ai.GeneratorEntry{Name: name, Generator: ai.NewGenerator(provider, cfg.AI.Generate.Model)})
	}
	return ai.NewManager(ai.NewGroupGenerator(entries), ai.ManagerConfig{
		Timeout:       cfg.AI.Timeout,
		MaxInputChars: cfg.AI.MaxInputChars,
	})
}

func buildApp(cfg *config.Config, conn *sql.DB) (*app, error) {
	docRepo := repo.NewDocumentRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	quizRepo := repo.NewQuizRepo(conn)
	cacheRepo := repo.NewEmbeddingCacheRepo(conn)

	targets := make([]health.Target, 0, len(cfg.Health.Targets))
	for _, t := range cfg.Health.Targets {
		targets = append(targets, health.Target{Name: t.Name, URL: t.URL})
	}
	checker := health.NewChecker(targets, time.Duration(cfg.Health.TTLSeconds)*time.Second, 10*time.Second)

	embedder, err := buildEmbedder(cfg, cacheRepo, checker)
	if err != nil {
		return nil, err
	}
	llm := buildGenerator(cfg)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}

	r := cfg.Retrieval
	searcher := retrieval.NewSearcher(
		embedder,
		retrieval.NewGateway(chunkRepo, time.Duration(r.StoreTimeoutMs)*time.Millisecond),
		retrieval.NewFallbackSearcher(chunkRepo),
		retrieval.SearcherConfig{
			Timeout:        time.Duration(r.SearchTimeoutMs) * time.Millisecond,
			Dimension:      r.EmbeddingDimension,
			MaxChunksLimit: r.MaxChunksLimit,
		},
	)
	searchService := service.NewSearchService(searcher, service.SearchConfig{
		SearchLambda: r.SearchLambda,
		ChatLambda:   r.ChatLambda,
		QuizLambda:   r.QuizLambda,
	})

	q := cfg.Quiz
	generator := quiz.NewGenerator(llm, quiz.GeneratorConfig{
		MaxAttempts:        q.MaxAttempts,
		DiversityThreshold: q.DiversityThreshold,
		BaseTemperature:    q.BaseTemperature,
		TemperatureStep:    q.TemperatureStep,
		MinQuestions:       q.MinQuestions,
	})
	quizService := service.NewQuizService(searchService, quiz.NewSampler(nil), generator, quizRepo, service.QuizConfig{
		ContextSize:      q.ContextSize,
		TopicContextSize: q.TopicContextSize,
	})

	idx := indexer.New(indexer.NewSplitter(cfg.Indexer.ChunkSize, cfg.Indexer.ChunkOverlap), embedder, chunkRepo)
	documentService := service.NewDocumentService(docRepo, idx, store, service.DocumentConfig{
		IndexTimeout: time.Duration(cfg.Indexer.IndexTimeoutSeconds) * time.Second,
		ReindexDelay: time.Duration(cfg.Indexer.ReindexDelayMs) * time.Millisecond,
	})

	return &app{
		search:    searchService,
		chat:      service.NewChatService(searchService, retrieval.NewAssembler(r.ContextBudget), llm),
		quizzes:   quizService,
		documents: documentService,
		checker:   checker,
		cacheRepo: cacheRepo,
	}, nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("embed_provider", cfg.AI.Embed.Provider),
	)
	a, err := buildApp(cfg, conn)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	uptime := job.NewUptimeProbeJob(a.checker)
	jobs := []struct {
		job  schedule.Job
		spec string
	}{
		{uptime, cfg.Jobs.UptimeProbe},
		{job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.AI.EmbedCache.MaxAgeDays), cfg.Jobs.EmbeddingCacheCleanup},
		{job.NewReindexStaleJob(a.documents, 0), cfg.Jobs.ReindexStale},
	}
	for _, j := range jobs {
		if err := scheduler.AddJob(j.job, j.spec); err != nil {
			return fmt.Errorf("schedule %s: %w", j.job.Name(), err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()
	if err := scheduler.RunNow(uptime.Name()); err != nil {
		logutil.GetLogger(ctx).Warn("initial uptime probe skipped", zap.Error(err))
	}

	deps := handler.RouterDeps{
		Search:       handler.NewSearchHandler(a.search),
		Chat:         handler.NewChatHandler(a.chat),
		Quiz:         handler.NewQuizHandler(a.quizzes),
		Documents:    handler.NewDocumentHandler(a.documents),
		Health:       handler.NewHealthHandler(a.checker),
		JWTSecret:    []byte(cfg.JWTSecret),
		SearchWindow: time.Duration(cfg.RateLimit.SearchWindowMs) * time.Millisecond,
		ChatWindow:   time.Duration(cfg.RateLimit.ChatWindowMs) * time.Millisecond,
		QuizWindow:   time.Duration(cfg.RateLimit.QuizWindowMs) * time.Millisecond,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
