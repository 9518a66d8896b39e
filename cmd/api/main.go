package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/winprob-gateway/internal/config"
	"github.com/Dan9191/winprob-gateway/internal/handler"
	"github.com/Dan9191/winprob-gateway/internal/integrations/inference"
	"github.com/Dan9191/winprob-gateway/internal/repository"
	"github.com/Dan9191/winprob-gateway/internal/scheduler"
	"github.com/Dan9191/winprob-gateway/internal/service"
	"github.com/Dan9191/winprob-gateway/internal/utils/email"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logger = logrus.New()

var rootCmd = &cobra.Command{
	Use:           "winprob-gateway",
	Short:         "HTTP gateway for the cricket win probability model",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		return repository.RunMigrations(cmd.Context(), db)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	// Initialize logger
	logger.SetFormatter(&logrus.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Fatalf("%v", err)
	}
}

// setup loads configuration and opens the database.
func setup(ctx context.Context) (*config.Config, *sql.DB, error) {
	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return cfg, db, nil
}

func serve(ctx context.Context) error {
	cfg, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := repository.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	auth := service.NewAuthService(repo, logger, cfg)
	gateway := service.NewPredictionGateway(repo, inference.NewClient(cfg, logger), logger)
	h := handler.NewHandler(auth, gateway, repo, logger)

	if cfg.DigestEnabled() {
		digest, err := scheduler.NewScheduler(cfg.DigestCron, repo, email.NewSender(cfg, logger), logger)
		if err != nil {
			return err
		}
		digest.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := digest.Stop(stopCtx); err != nil {
				logger.WithError(err).Warn("Digest scheduler did not stop cleanly")
			}
		}()
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(h, auth, cfg, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.InferenceTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
