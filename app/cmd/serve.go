package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"pluginrelay/app/config"
	"pluginrelay/app/usecase"
	"pluginrelay/internal/domain/repository"
	"pluginrelay/internal/infrastructure/llm"
	"pluginrelay/internal/infrastructure/metrics"
	"pluginrelay/internal/infrastructure/store/filesystem"
	mongorepo "pluginrelay/internal/infrastructure/store/mongodb"
	"pluginrelay/internal/infrastructure/transport"
	"pluginrelay/internal/infrastructure/validator"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP relay",
	Long: `Run the HTTP relay.

Configuration comes from built-in defaults, the HCL file named by CONFIG_FILE,
a .env file and the environment (SERVER_PORT, LLM_PROVIDER, LLM_API_KEY,
STORE_BACKEND, LOG_LEVEL, ...), later sources winning.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, _ := cfg.Log.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// LLM client
	generator, err := llm.New(ctx, llm.Options{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
	})
	if err != nil {
		return fmt.Errorf("init llm: %w", err)
	}
	if cfg.LLM.APIKey == "" && generator.Provider() != llm.ProviderOllama {
		logger.Warn("no api key configured, every generation will fail", "provider", generator.Provider())
	}

	// History
	history, closeHistory, err := openHistory(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	// Usecases / services
	opts := []usecase.ServiceOption{
		usecase.WithValidator(validator.NewStaticPluginAnalyzer()),
		usecase.WithTimeout(cfg.LLM.Timeout),
		usecase.WithMaxConcurrent(cfg.LLM.MaxConcurrent),
	}
	if history != nil {
		opts = append(opts, usecase.WithHistory(history))
	}
	pluginSvc := usecase.NewPluginGeneratorService(generator, logger, opts...)
	historySvc := usecase.NewHistoryService(history)

	// Transport (HTTP handlers)
	handler := transport.NewRelayHandler(pluginSvc, historySvc, logger)

	// Router and server
	r := mux.NewRouter()
	handler.RegisterRoutes(r)
	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.ExposedHeaders([]string{"X-Generation-Id", "X-Generation-Status"}),
	)(r)
	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
	)(corsHandler)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      recovered,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	servers := []*http.Server{srv}
	if cfg.Server.MetricsAddr != "" {
		servers = append(servers, metrics.NewServer(cfg.Server.MetricsAddr))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		g.Go(func() error {
			logger.Info("starting HTTP server", "addr", s.Addr)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", s.Addr, err)
			}
			return nil
		})
	}

	// Shutdown sequence
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var firstErr error
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("shutdown %s: %w", s.Addr, err)
			}
		}
		return firstErr
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "err", err)
		return err
	}
	logger.Info("service stopped")
	return nil
}

// openHistory returns a nil repository for the "none" backend.
func openHistory(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (repository.GenerationRepository, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case config.StoreFilesystem:
		repo, err := filesystem.NewGenerationRepository(cfg.Dir)
		if err != nil {
			return nil, noop, fmt.Errorf("init filesystem history: %w", err)
		}
		logger.Info("generation history on filesystem", "dir", repo.GetBasePath())
		return repo, noop, nil

	case config.StoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, noop, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, noop, fmt.Errorf("mongo ping: %w", err)
		}
		logger.Info("generation history in mongo", "database", cfg.MongoDatabase)

		repo := mongorepo.NewMongoGenerationRepo(connectCtx, client.Database(cfg.MongoDatabase), logger)
		closeFn := func() {
			logger.Info("disconnecting mongo")
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("mongo disconnect error", "err", err)
			}
		}
		return repo, closeFn, nil

	default:
		return nil, noop, nil
	}
}
