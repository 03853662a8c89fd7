package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arzan03/cloudvault/internal/config"
	"github.com/arzan03/cloudvault/internal/db"
	"github.com/arzan03/cloudvault/internal/handlers"
	"github.com/arzan03/cloudvault/internal/logger"
	"github.com/arzan03/cloudvault/internal/repository"
	"github.com/arzan03/cloudvault/internal/repository/memory"
	"github.com/arzan03/cloudvault/internal/services"
	"github.com/arzan03/cloudvault/internal/storage"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Production)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, objects, cleanup, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	auth := services.NewAuthService(store.Users, cfg.Auth, log)
	if seed := cfg.Auth.Admin; seed.Email != "" {
		seedCtx, cancel := context.WithTimeout(ctx, cfg.Server.RequestTimeout)
		_, err := auth.EnsureAdmin(seedCtx, seed.Name, seed.Email, seed.Password)
		cancel()
		if err != nil {
			return fmt.Errorf("seed admin account: %w", err)
		}
	}
	resources := services.NewResourceService(store.Files, store.Folders, objects, log)
	audit := services.NewActivityLogService(store.ActivityLogs, auth, cfg.Share.AuditFailClosed, log)
	shares := services.NewShareService(store.Shares, auth, resources, audit,
		services.NewShareTokens(cfg.ShareSecret()), cfg.Server.BaseURL, cfg.Server.RequestTimeout, log)
	gateway := services.NewGatewayService(shares, resources, auth, objects, audit,
		cfg.Minio.LocatorTTL, cfg.Server.RequestTimeout, log)

	app := handlers.NewApp(cfg, handlers.Services{
		Auth:      auth,
		Resources: resources,
		Shares:    shares,
		Gateway:   gateway,
		Logs:      audit,
	}, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		errCh <- app.Listen(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}

// openStores connects the configured backends. The memory driver keeps
// everything in process and needs neither MongoDB nor MinIO.
func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*repository.Store, storage.ObjectStore, func(), error) {
	if cfg.Store.Driver == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		return memory.NewStore(), storage.NewMemoryStore(cfg.Minio.Bucket), func() {}, nil
	}

	client, database, err := db.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.Warn("failed to disconnect from MongoDB", zap.Error(err))
		}
	}
	if err := db.EnsureIndexes(ctx, database); err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	objects, err := storage.NewMinioStore(ctx, cfg.Minio, log)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return repository.NewMongoStore(database), objects, cleanup, nil
}
