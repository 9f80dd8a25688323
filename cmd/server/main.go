package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soaringjerry/Stride/internal/api"
	"github.com/soaringjerry/Stride/internal/config"
	"github.com/soaringjerry/Stride/internal/db"
	"github.com/soaringjerry/Stride/internal/logger"
	"github.com/soaringjerry/Stride/internal/services"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "stride",
		Short:        "Employment-transition support evaluation server",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Optional config file (env STRIDE_* wins)")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(checklistCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	return config.Load(file)
}

func storeOptions(cfg *config.Config) db.Options {
	return db.Options{
		Backend:       cfg.StoreBackend,
		SnapshotPath:  cfg.SnapshotPath,
		SQLitePath:    cfg.SQLitePath,
		MigrationsDir: cfg.MigrationsDir,
		Redis: db.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "stride")
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = log.Sync() }()
			return runServer(cfg, log)
		},
	}
}

func runServer(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	store, err := db.Open(ctx, storeOptions(cfg))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Warn("close store", zap.Error(cerr))
		}
	}()
	log.Info("store ready", zap.String("backend", cfg.StoreBackend))

	checklist, err := services.LoadChecklist(cfg.ChecklistPath)
	if err != nil {
		return fmt.Errorf("load checklist: %w", err)
	}

	repo := services.NewRepository(store, cfg.QuotaBytes)
	audit := services.NewAuditLog(log)
	records := services.NewRecordService(repo, checklist, audit, log)
	drafts := services.NewDraftService(repo, checklist, records, log)
	sessions := services.NewSessionManager(checklist, drafts, records, log, services.SessionOptions{
		AutosaveInterval: cfg.AutosaveInterval,
	})
	defer sessions.CloseAll()

	ai := services.NewAIService(services.AIConfig{
		BaseURL: cfg.AIBaseURL,
		APIKey:  cfg.AIAPIKey,
		Model:   cfg.AIModel,
		Timeout: cfg.AITimeout,
		Retries: cfg.AIRetries,
	}, log)
	if !cfg.AIEnabled() {
		log.Info("no AI key configured, AI endpoints return fallback content")
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.Deps{
		Checklist:   checklist,
		Targets:     services.NewTargetService(repo, log),
		Drafts:      drafts,
		Records:     records,
		Goals:       services.NewGoalService(repo, log),
		Sessions:    sessions,
		AI:          ai,
		Audit:       audit,
		Store:       store,
		Logger:      log,
		CORSOrigins: cfg.CORSOrigins,
		Commit:      cfg.Commit,
		BuildTime:   cfg.BuildTime,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("stride server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-quit:
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
