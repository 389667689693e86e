package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"interviewd/internal/auth"
	"interviewd/internal/config"
	"interviewd/internal/convo"
	"interviewd/internal/interview"
	"interviewd/internal/llm"
	"interviewd/internal/logging"
	"interviewd/internal/scoring"
	"interviewd/internal/server"
	"interviewd/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string
	addr       string
	dbPath     string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command. Running without a subcommand
// serves.
var rootCmd = &cobra.Command{
	Use:   "interviewd",
	Short: "interviewd - AI mock interview backend",
	Long: `interviewd is the backend service for an AI-driven mock interview
application: it runs the question/answer loop against a language model,
grades every answer with a fixed rubric, and persists sessions and turns
for the dashboard.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.LLM.APIKey = "" // never print credentials
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite database path (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if dbPath != "" {
		cfg.Storage.DatabasePath = dbPath
	}
	if verbose {
		cfg.Logging.DebugMode = true
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := logging.Initialize(cfg.Logging.Dir, logging.Config{
		DebugMode:  cfg.Logging.DebugMode,
		Categories: cfg.Logging.Categories,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.CloseAll()
	logging.Boot("%s %s starting", cfg.Name, cfg.Version)

	db, err := store.New(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	client, err := llm.New(cfg.LLM.Provider, llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.GetLLMTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to build llm client: %w", err)
	}

	orch := interview.New(convo.NewStore(), client, scoring.NewPipeline(client), db, cfg.GetLLMTimeout())
	srv := server.New(cfg, orch, auth.NewService(db), db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Hot-reload the logging section on config edits.
	if watcher, werr := config.NewWatcher(configPath); werr == nil {
		if werr = watcher.Start(ctx); werr != nil {
			logger.Debug("config watcher disabled", zap.Error(werr))
		}
	} else {
		logger.Debug("config watcher disabled", zap.Error(werr))
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited", zap.Error(err))
		return err
	}
	logging.Boot("shutdown complete")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
