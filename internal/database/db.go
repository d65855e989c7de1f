package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/lumi-ajolote/lumi/backend/internal/repository"
)

// Open opens a PostgreSQL handle. sql.Open does not dial; use Ping to verify.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Ping verifies connectivity within timeout.
func Ping(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// NewStores builds PostgreSQL-backed repositories on db.
func NewStores(db *sql.DB) repository.Stores {
	return repository.Stores{
		Users:         repository.NewPostgresUserRepo(db),
		Conversations: repository.NewPostgresConversationRepo(db),
		Profiles:      repository.NewPostgresProfileRepo(db),
	}
}
