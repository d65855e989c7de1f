package reconciler

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/lumi-ajolote/lumi/backend/internal/model/chat"
)

var mexicoCity = time.FixedZone("CST", -6*60*60)

func entryAt(t time.Time, message, reply string) chat.Entry {
	return chat.Entry{Message: message, Reply: reply, CreatedAt: t}
}

func TestSummariesGroupsByLocalDay(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, mexicoCity)
	entries := []chat.Entry{
		entryAt(time.Date(2025, 1, 2, 9, 0, 0, 0, mexicoCity), "m1", "r1"),
		entryAt(time.Date(2025, 3, 9, 20, 0, 0, 0, mexicoCity), "m2", "r2"),
		entryAt(time.Date(2025, 3, 9, 21, 0, 0, 0, mexicoCity), "m3", ""),
		entryAt(time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC), "m4", "r4"),
	}

	got := Summaries(entries, now, mexicoCity)
	want := []SessionSummary{
		{Key: AllSessionsKey, Label: "Todo el historial", Snippet: "Ver todos los mensajes con Lumi", Count: 4},
		{Key: "2025-03-10", Label: "Hoy", Snippet: "r4", Count: 1},
		{Key: "2025-03-09", Label: "Ayer", Snippet: "m3", Count: 2},
		{Key: "2025-01-02", Label: "02 ene 2025", Snippet: "r1", Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summaries mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "2 mensajes", got[2].CountLabel())
	assert.Empty(t, got[0].CountLabel())
}

func TestPartitionUsesLocalZone(t *testing.T) {
	// 02:00 UTC on the 11th is 20:00 on the 10th in UTC-6.
	entries := []chat.Entry{entryAt(time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC), "m", "r")}

	groups := Partition(entries, mexicoCity)
	assert.Len(t, groups["2025-03-10"], 1)
	assert.Empty(t, groups["2025-03-11"])
}

func TestSnippetBoundary(t *testing.T) {
	sixty := strings.Repeat("á", 60)
	assert.Equal(t, sixty, Snippet(chat.Entry{Reply: sixty}))
	assert.Equal(t, sixty+"...", Snippet(chat.Entry{Reply: sixty + "b"}))
	assert.Equal(t, "mensaje", Snippet(chat.Entry{Message: "mensaje"}))

	padded := strings.Repeat("a", 60) + " "
	assert.Equal(t, strings.Repeat("a", 60)+"...", Snippet(chat.Entry{Reply: padded}))
	assert.Equal(t, "  ", Snippet(chat.Entry{Reply: "  ", Message: "mensaje"}))
}

func TestRelativeLabel(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 30, 0, 0, mexicoCity)
	assert.Equal(t, "Hoy", RelativeLabel("2025-01-01", now, mexicoCity))
	assert.Equal(t, "Ayer", RelativeLabel("2024-12-31", now, mexicoCity))
	assert.Equal(t, "30 dic 2024", RelativeLabel("2024-12-30", now, mexicoCity))
	assert.Equal(t, "garbage", RelativeLabel("garbage", now, mexicoCity))
}

func TestSummariesEmpty(t *testing.T) {
	got := Summaries(nil, time.Now(), time.UTC)
	assert.Len(t, got, 1)
	assert.Equal(t, AllSessionsKey, got[0].Key)
}
