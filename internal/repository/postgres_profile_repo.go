package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lumi-ajolote/lumi/backend/internal/analysis/emotion"
	"github.com/lumi-ajolote/lumi/backend/internal/model/profile"
)

// PostgresProfileRepo stores emotional profiles in PostgreSQL. emotion_counts
// is a json (not jsonb) column so key order survives the round trip.
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo returns a PostgresProfileRepo.
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID returns nil when the user has no profile.
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*profile.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT user_id, last_emotion, emotion_counts, summary, created_at, updated_at
		 FROM emotional_profiles WHERE user_id = $1`,
		userID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return p, nil
}

// Upsert creates the row if needed, then locks it for the read-modify-write.
func (r *PostgresProfileRepo) Upsert(ctx context.Context, userID string, mutate func(*profile.Profile) error) (*profile.Profile, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO emotional_profiles (user_id, last_emotion, emotion_counts, summary, created_at, updated_at)
		 VALUES ($1, $2, '{}', '', $3, $3)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, string(emotion.Neutral), now,
	); err != nil {
		return nil, fmt.Errorf("failed to ensure profile row: %w", err)
	}

	p, err := scanProfile(tx.QueryRowContext(ctx,
		`SELECT user_id, last_emotion, emotion_counts, summary, created_at, updated_at
		 FROM emotional_profiles WHERE user_id = $1 FOR UPDATE`,
		userID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to lock profile: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("profile row for %s vanished", userID)
	}

	if err := mutate(p); err != nil {
		return nil, err
	}

	counts, err := json.Marshal(p.EmotionCounts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode emotion counts: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE emotional_profiles
		 SET last_emotion = $2, emotion_counts = $3, summary = $4, updated_at = $5
		 WHERE user_id = $1`,
		userID, string(p.LastEmotion), string(counts), p.Summary, p.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*profile.Profile, error) {
	var (
		p      profile.Profile
		last   string
		counts []byte
	)
	err := row.Scan(&p.UserID, &last, &counts, &p.Summary, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.LastEmotion = emotion.Label(last).OrNeutral()
	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &p.EmotionCounts); err != nil {
			return nil, fmt.Errorf("failed to decode emotion counts: %w", err)
		}
	}
	return &p, nil
}
