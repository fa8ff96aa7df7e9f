package main

import (
	"context"
	"log"
	"os"
	"time"

	"bulldog/internal/database"
	"bulldog/internal/repository"
)

// Retention sweeper, run from cron. Revoked rows are kept for 30 days so
// reuse detection and audit still have them, then dropped.
const revokedRetention = 30 * 24 * time.Hour

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	repo := repository.NewRefreshTokenRepository(db)
	deleted, err := repo.DeleteStale(context.Background(), revokedRetention)
	if err != nil {
		log.Fatalf("cleanup refresh_tokens failed: %v", err)
	}

	log.Printf("auth cleanup completed: refresh_tokens=%d", deleted)
}
