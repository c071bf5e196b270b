package main

import (
	"context"
	"log"
	"os"
	"time"

	"exoai/adapters/postgres"
	"exoai/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate <database_url> [purge]")
	}

	databaseURL := os.Args[1]
	purge := len(os.Args) > 2 && os.Args[2] == "purge"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	runner := migration.NewRunner()
	log.Printf("Applying schema version %s", runner.Version())
	if err := runner.Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if purge {
		// TTL only matters for writes; purging uses the stored expiry
		repo := postgres.NewSessionRepository(db, time.Hour)
		n, err := repo.PurgeExpired(ctx)
		if err != nil {
			log.Fatalf("Failed to purge expired sessions: %v", err)
		}
		log.Printf("Purged %d expired sessions", n)
	}

	log.Printf("Migration complete")
}
