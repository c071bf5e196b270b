package container

import (
	"context"
	"fmt"
	"log"

	"exoai/adapters/exoplanet"
	"exoai/adapters/postgres"
	"exoai/internal"
	"exoai/internal/config"
	"exoai/internal/session"
	"exoai/internal/telemetry"
	"exoai/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB      *sqlx.DB
	Metrics *telemetry.Metrics

	// Remote prediction service
	Predictor *exoplanet.Client

	// Upload to analysis handoff
	SessionStore ports.SessionRepository
	Janitor      *session.Janitor
}

// New creates a container with the in-memory session store. Call
// InitWithDatabase afterwards to switch to the postgres store.
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Logger: internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level)),
	}

	if err := c.initTelemetry(); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if err := c.initPredictor(); err != nil {
		return nil, fmt.Errorf("failed to initialize prediction client: %w", err)
	}
	c.SessionStore = session.NewMemoryStore(cfg.Session.TTL)

	return c, nil
}

func (c *Container) initTelemetry() error {
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return err
	}
	c.Metrics = metrics
	return nil
}

func (c *Container) initPredictor() error {
	client, err := exoplanet.NewClient(exoplanet.Config{
		BaseURL: c.Config.Exoplanet.BaseURL,
		Timeout: c.Config.Exoplanet.Timeout,
	})
	if err != nil {
		return err
	}
	c.Predictor = client.WithObserver(c.Metrics)
	return nil
}

// InitWithDatabase replaces the session store with the postgres repository
// and sets up the janitor that purges expired rows
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	// Test database connection
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	c.DB = db
	repo := postgres.NewSessionRepository(db, c.Config.Session.TTL)
	c.SessionStore = repo
	c.Janitor = session.NewJanitor(repo, c.Config.Session.TTL/4, c.Logger)

	log.Printf("Container initialized successfully with database connection")
	return nil
}

// RunBackground runs the janitor, if any, until ctx is done
func (c *Container) RunBackground(ctx context.Context) error {
	if c.Janitor == nil {
		<-ctx.Done()
		return nil
	}
	return c.Janitor.Run(ctx)
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	// Close database connection
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
