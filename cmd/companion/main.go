package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"companion/internal/api"
	"companion/internal/character"
	"companion/internal/chat"
	"companion/internal/config"
	"companion/internal/gateway"
	"companion/internal/logging"
	"companion/internal/provider"
	"companion/internal/store"
)

var (
	verbose    bool
	configPath string
	addr       string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "companion",
	Short: "companion - AI companion backend",
	Long: `companion is a conversational AI backend. It routes user messages to a
generative model with retry and streaming support, and tracks an evolving
relationship per character: affection points, stages, streaks, and
milestones, persisted across restarts.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Optional .env for local development; absence is fine.
		_ = godotenv.Load()

		var err error
		logger, err = logging.Init(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.Server.Addr = addr
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runServer(cmd.Context(), cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.DefaultConfig()
		fmt.Printf("%s %s\n", cfg.Name, cfg.Version)
	},
}

func runServer(ctx context.Context, cfg *config.Config) error {
	rs, err := store.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer rs.Close()

	client := provider.NewGeminiClientWithConfig(provider.Config{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.GetLLMTimeout(),
	})
	gw := gateway.New(client, gateway.Config{
		Temperature:     cfg.LLM.Temperature,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		Pacing:          cfg.GetStreamPacing(),
	})

	characters := character.NewManager(rs, logger.Named("character"))
	chatSvc := chat.NewService(rs, characters, gw, nil, chat.Options{
		HistoryWindow:        cfg.Chat.HistoryWindow,
		HistoryLimit:         cfg.Chat.HistoryLimit,
		CountFailedResponses: cfg.Relationship.CountFailedResponses,
	}, logger.Named("chat"))

	handler := api.NewHandler(characters, chatSvc, cfg.GetRequestTimeout(), logger.Named("api"))
	router := api.NewRouter(handler)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "companion.yaml", "path to config file")
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
