package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"exoai/internal/config"
	"exoai/internal/container"
	"exoai/internal/errors"
	"exoai/internal/migration"
	"exoai/ui"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

// initDatabase connects to PostgreSQL and applies the schema
func initDatabase(ctx context.Context, appConfig *config.Config) (*sqlx.DB, error) {
	if appConfig.Database.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	// Run migrations
	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}

	return db, nil
}

func main() {
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create dependency injection container
	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	mainLog := appContainer.Logger.For("Main")
	mainLog.Info("Using prediction service at %s", appContainer.Predictor.BaseURL())

	if appConfig.Session.Store == config.StorePostgres {
		db, err := initDatabase(ctx, appConfig)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		if err := appContainer.InitWithDatabase(db); err != nil {
			log.Fatalf("Failed to initialize container: %v", err)
		}
	}
	mainLog.Info("Session store: %s (ttl %s)", appConfig.Session.Store, appConfig.Session.TTL)

	server, err := ui.NewServer(ui.Options{
		Predictor:      appContainer.Predictor,
		Store:          appContainer.SessionStore,
		Metrics:        appContainer.Metrics,
		CookieName:     appConfig.Session.CookieName,
		SessionTTL:     appConfig.Session.TTL,
		MaxUploadBytes: appConfig.Server.MaxUploadBytes,
		GinMode:        appConfig.Server.GinMode,
	})
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return appContainer.RunBackground(gctx) })
	g.Go(func() error { return server.Start(gctx, ":"+appConfig.Server.Port) })

	if err := g.Wait(); err != nil {
		mainLog.Error("Server stopped: %v", err)
		stop()
		appContainer.Shutdown(context.Background())
		os.Exit(1)
	}
	mainLog.Info("Shutdown complete")
}
