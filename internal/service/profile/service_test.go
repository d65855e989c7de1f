package profile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumi-ajolote/lumi/backend/internal/analysis/emotion"
	model "github.com/lumi-ajolote/lumi/backend/internal/model/profile"
	"github.com/lumi-ajolote/lumi/backend/internal/repository"
)

func newAggregator() (*Aggregator, *repository.MemoryProfileRepo) {
	repo := repository.NewMemoryProfileRepo()
	agg := NewAggregator(repo, nil)
	agg.now = func() time.Time { return time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC) }
	return agg, repo
}

func TestUpdateCreatesProfileOnFirstTurn(t *testing.T) {
	agg, _ := newAggregator()

	p, err := agg.Update(context.Background(), "u1", emotion.Happy)
	require.NoError(t, err)

	assert.Equal(t, 1, p.EmotionCounts.Get(emotion.Happy))
	assert.Equal(t, 1, p.EmotionCounts.Len())
	assert.Equal(t, emotion.Happy, p.LastEmotion)
	assert.Contains(t, p.Summary, "feliz (1)")
}

func TestUpdateAccumulatesAndRanks(t *testing.T) {
	agg, _ := newAggregator()
	ctx := context.Background()

	for _, l := range []emotion.Label{emotion.Sad, emotion.Anxious, emotion.Sad, emotion.Tired, emotion.Happy, emotion.Anxious, emotion.Sad} {
		_, err := agg.Update(ctx, "u1", l)
		require.NoError(t, err)
	}

	p, err := agg.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Emociones frecuentes: triste (3), ansioso (2), cansado (1)", p.Summary)
	assert.Equal(t, emotion.Sad, p.LastEmotion)

	total := 0
	for _, e := range p.EmotionCounts.Entries() {
		total += e.Count
	}
	assert.Equal(t, 7, total)
}

func TestUpdateInvalidLabelCountsNeutral(t *testing.T) {
	agg, _ := newAggregator()

	p, err := agg.Update(context.Background(), "u1", emotion.Label("eufórico"))
	require.NoError(t, err)
	assert.Equal(t, 1, p.EmotionCounts.Get(emotion.Neutral))
	assert.Equal(t, emotion.Neutral, p.LastEmotion)
}

func TestUpdateRequiresUser(t *testing.T) {
	agg, _ := newAggregator()
	_, err := agg.Update(context.Background(), "", emotion.Happy)
	assert.True(t, errors.Is(err, ErrMissingUser))
}

func TestConcurrentUpdatesLoseNothing(t *testing.T) {
	agg, _ := newAggregator()
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			label := emotion.Sad
			if i%2 == 0 {
				label = emotion.Happy
			}
			_, err := agg.Update(ctx, "u1", label)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	p, err := agg.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, n/2, p.EmotionCounts.Get(emotion.Happy))
	assert.Equal(t, n/2, p.EmotionCounts.Get(emotion.Sad))
	assert.Equal(t, model.Summarize(&p.EmotionCounts), p.Summary)
	assert.Equal(t, 0, agg.locks.Len())
}

func TestEmotionalContext(t *testing.T) {
	agg, _ := newAggregator()
	ctx := context.Background()

	got, err := agg.EmotionalContext(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "No hay historial emocional previo.", got)

	_, err = agg.Update(ctx, "u1", emotion.Stressed)
	require.NoError(t, err)

	got, err = agg.EmotionalContext(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Historial emocional: Emoción más frecuente: estresado (1). Última emoción: estresado.", got)
}
