package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumi-ajolote/lumi/backend/internal/analysis/emotion"
	"github.com/lumi-ajolote/lumi/backend/internal/model/chat"
)

// PostgresConversationRepo stores conversation entries in PostgreSQL.
type PostgresConversationRepo struct {
	db *sql.DB
}

// NewPostgresConversationRepo returns a PostgresConversationRepo.
func NewPostgresConversationRepo(db *sql.DB) *PostgresConversationRepo {
	return &PostgresConversationRepo{db: db}
}

// Append inserts entry. The serial seq column orders entries sharing a timestamp.
func (r *PostgresConversationRepo) Append(ctx context.Context, entry *chat.Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Emotion = entry.Emotion.OrNeutral()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, message, reply, emotion, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.UserID, entry.Message, entry.Reply, string(entry.Emotion), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation entry: %w", err)
	}
	return nil
}

// ListByUser returns entries oldest first.
func (r *PostgresConversationRepo) ListByUser(ctx context.Context, userID string) ([]chat.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, message, reply, emotion, created_at
		 FROM conversations WHERE user_id = $1
		 ORDER BY created_at ASC, seq ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation entries: %w", err)
	}
	defer rows.Close()

	entries := make([]chat.Entry, 0, 32)
	for rows.Next() {
		var (
			entry chat.Entry
			label string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Message, &entry.Reply, &label, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation entry: %w", err)
		}
		entry.Emotion = emotion.Label(label).OrNeutral()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation entries: %w", err)
	}
	return entries, nil
}
