package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"carrotreset/internal/carrots/config"
	"carrotreset/internal/carrots/lock"
	"carrotreset/internal/carrots/repository"
	"carrotreset/internal/carrots/service"
	"carrotreset/internal/carrots/util"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		reportFailure(os.Stderr, err)
		os.Exit(1)
	}
}

// reportFailure writes the fatal error to w (stderr) so it stays apart from the progress log.
func reportFailure(w io.Writer, err error) {
	util.NewLogger(w, "error").Error("Weekly carrot reset failed", "error", err)
}

func run() error {
	// .env is optional
	_ = godotenv.Load()

	// 0. Init Logger
	util.InitLogger(os.Getenv("LOG_LEVEL"))

	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	util.InitLogger(cfg.LogLevel)
	logger := util.GetLogger()
	logger.Info("Config", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Optional run lock
	if cfg.LockRedisURL != "" {
		runLock, err := lock.Open(cfg.LockRedisURL, cfg.LockTTL)
		if err != nil {
			return err
		}
		defer runLock.Close()
		if err := runLock.Acquire(ctx); err != nil {
			return err
		}
		defer func() {
			if err := runLock.Release(context.Background()); err != nil {
				logger.Warn("Failed to release run lock", "error", err)
			}
		}()

		// Losing the lock mid-run stops the scan before the next page
		var cancel context.CancelCauseFunc
		ctx, cancel = context.WithCancelCause(ctx)
		defer cancel(nil)
		go func() {
			if err := runLock.KeepAlive(ctx); err != nil {
				cancel(err)
			}
		}()
	}

	// 3. Init Store
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(context.Background()); err != nil {
			logger.Warn("Failed to close store", "error", err)
		}
	}()

	// 4. Run
	svc := service.NewResetService(repo, service.Options{
		PageSize: cfg.PageSize,
		DryRun:   cfg.DryRun,
	}, logger)
	if _, err := svc.Run(ctx); err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			return fmt.Errorf("%w: %w", err, cause)
		}
		return err
	}
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config) (repository.UserRepository, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		repo, err := repository.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDBName, cfg.UsersCollection, cfg.TransactionsCollection, cfg.StoreTimeout)
		if err != nil {
			return nil, err
		}
		if err := repo.EnsureIndexes(ctx); err != nil {
			util.GetLogger().Warn("Failed to ensure indexes", "error", err)
		}
		return repo, nil
	case config.BackendFirestore:
		creds, err := cfg.ServiceAccount.JSON()
		if err != nil {
			return nil, fmt.Errorf("%w: encode service account: %v", config.ErrInvalidConfiguration, err)
		}
		return repository.OpenFirestore(ctx, cfg.ProjectID, creds, cfg.UsersCollection, cfg.TransactionsCollection)
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalidConfiguration, cfg.StoreBackend)
	}
}
