package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	_ "github.com/tbourn/tg-analytics-gateway/docs"
	"github.com/tbourn/tg-analytics-gateway/internal/config"
	httpapi "github.com/tbourn/tg-analytics-gateway/internal/http"
	"github.com/tbourn/tg-analytics-gateway/internal/observability"
	"github.com/tbourn/tg-analytics-gateway/internal/platform/gotd"
	"github.com/tbourn/tg-analytics-gateway/internal/repo"
	"github.com/tbourn/tg-analytics-gateway/internal/services"
	"github.com/tbourn/tg-analytics-gateway/internal/session"
	"github.com/tbourn/tg-analytics-gateway/internal/sysutil"
)

func newServeCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loadEnv(envFile)
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	return cmd
}

// loadEnv loads a dotenv file if it exists. Variables already present in the
// environment win.
func loadEnv(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: %s: %v\n", path, err)
	}
}

// serve wires storage, the client registry and the router, then blocks until
// SIGINT/SIGTERM or a listener error and shuts everything down in order:
// HTTP server, platform clients, tracer, database.
func serve(ctx context.Context, cfg config.Config) error {
	sysutil.ConfigureLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, Version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("db dir: %w", err)
		}
	}
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	factory := gotd.NewFactory(gotd.Options{
		PeerCacheSize: cfg.PeerCacheSize,
		DialogsLimit:  cfg.DialogsLimit,
	})
	registry := services.NewClientRegistry(factory, session.NewStore(cfg.SessionDir), services.RegistryOptions{
		ConnectTimeout:  cfg.ConnectTimeout,
		PlatformTimeout: cfg.PlatformTimeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
	})

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, registry, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", Version).Str("session_dir", cfg.SessionDir).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErrors:
		log.Error().Err(err).Msg("listener failed; shutting down")
		runErr = err
	case <-ctx.Done():
		log.Info().Msg("context canceled; shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	registry.ShutdownAll(shutdownCtx)
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info().Msg("shutdown complete")
	return runErr
}
