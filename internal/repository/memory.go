package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumi-ajolote/lumi/backend/internal/model/chat"
	"github.com/lumi-ajolote/lumi/backend/internal/model/profile"
	"github.com/lumi-ajolote/lumi/backend/internal/model/user"
)

// NewMemoryStores returns in-memory repositories suitable for development and tests.
func NewMemoryStores() Stores {
	return Stores{
		Users:         NewMemoryUserRepo(),
		Conversations: NewMemoryConversationRepo(),
		Profiles:      NewMemoryProfileRepo(),
	}
}

// MemoryUserRepo keeps users in maps guarded by a RWMutex.
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]user.User
	byEmail map[string]string
}

// NewMemoryUserRepo bootstraps an empty user repository.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

// FindByEmail looks a user up by normalized email.
func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	u := r.byID[id]
	return &u, nil
}

// FindByID looks a user up by identifier.
func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// Create stores u. The email uniqueness check and insert happen under one lock.
func (r *MemoryUserRepo) Create(_ context.Context, u *user.User) error {
	email := user.NormalizeEmail(u.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return ErrEmailTaken
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	u.Email = email

	r.byID[u.ID] = *u
	r.byEmail[email] = u.ID
	return nil
}

// MemoryConversationRepo keeps per-user entry slices.
type MemoryConversationRepo struct {
	mu      sync.RWMutex
	entries map[string][]chat.Entry
}

// NewMemoryConversationRepo bootstraps an empty conversation log.
func NewMemoryConversationRepo() *MemoryConversationRepo {
	return &MemoryConversationRepo{entries: make(map[string][]chat.Entry)}
}

// Append adds entry to the user's log.
func (r *MemoryConversationRepo) Append(_ context.Context, entry *chat.Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Emotion = entry.Emotion.OrNeutral()

	r.mu.Lock()
	r.entries[entry.UserID] = append(r.entries[entry.UserID], *entry)
	r.mu.Unlock()
	return nil
}

// ListByUser returns a copy of the user's entries sorted by CreatedAt; equal
// timestamps keep append order.
func (r *MemoryConversationRepo) ListByUser(_ context.Context, userID string) ([]chat.Entry, error) {
	r.mu.RLock()
	copied := make([]chat.Entry, len(r.entries[userID]))
	copy(copied, r.entries[userID])
	r.mu.RUnlock()

	sort.SliceStable(copied, func(i, j int) bool {
		return copied[i].CreatedAt.Before(copied[j].CreatedAt)
	})
	return copied, nil
}

// MemoryProfileRepo serialises profile mutations with a single mutex.
type MemoryProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*profile.Profile
}

// NewMemoryProfileRepo bootstraps an empty profile store.
func NewMemoryProfileRepo() *MemoryProfileRepo {
	return &MemoryProfileRepo{profiles: make(map[string]*profile.Profile)}
}

// FindByUserID returns a copy of the stored profile.
func (r *MemoryProfileRepo) FindByUserID(_ context.Context, userID string) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	return cloneProfile(stored), nil
}

// Upsert applies mutate to a working copy and stores it only when mutate succeeds.
func (r *MemoryProfileRepo) Upsert(_ context.Context, userID string, mutate func(*profile.Profile) error) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	working := &profile.Profile{UserID: userID}
	if stored, ok := r.profiles[userID]; ok {
		working = cloneProfile(stored)
	}
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.UserID = userID
	r.profiles[userID] = working
	return cloneProfile(working), nil
}

func cloneProfile(p *profile.Profile) *profile.Profile {
	out := *p
	out.EmotionCounts = p.EmotionCounts.Clone()
	return &out
}
