package chat

import (
	"time"

	"github.com/lumi-ajolote/lumi/backend/internal/analysis/emotion"
)

// Entry is one answered turn of a registered user. Entries are append-only.
type Entry struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Message   string        `json:"message"`
	Reply     string        `json:"reply"`
	Emotion   emotion.Label `json:"emotion"`
	CreatedAt time.Time     `json:"createdAt"`
}
