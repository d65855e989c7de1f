package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/lumi-ajolote/lumi/backend/internal/analysis/emotion"
)

// SummarySize is how many labels the summary lists.
const SummarySize = 3

// Profile is the per-user aggregate of classified emotions.
type Profile struct {
	UserID        string        `json:"userId"`
	LastEmotion   emotion.Label `json:"lastEmotion"`
	EmotionCounts Counts        `json:"emotionCounts"`
	Summary       string        `json:"summary"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Record counts one occurrence of label, overwrites LastEmotion and
// recomputes Summary. Invalid labels are recorded as neutral.
func (p *Profile) Record(label emotion.Label, at time.Time) {
	label = label.OrNeutral()
	p.EmotionCounts.Inc(label)
	p.LastEmotion = label
	p.Summary = Summarize(&p.EmotionCounts)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = at
	}
	p.UpdatedAt = at
}

// Summarize renders the top labels as "label (count)" joined by ", ".
func Summarize(counts *Counts) string {
	top := counts.Top(SummarySize)
	if len(top) == 0 {
		return ""
	}

	parts := make([]string, len(top))
	for i, entry := range top {
		parts[i] = fmt.Sprintf("%s (%d)", entry.Label, entry.Count)
	}

	if counts.Len() == 1 {
		return "Emoción más frecuente: " + parts[0]
	}
	return "Emociones frecuentes: " + strings.Join(parts, ", ")
}

// Context renders the emotional context line handed to the reply generator.
func Context(p *Profile) string {
	if p == nil || p.EmotionCounts.Len() == 0 {
		return "No hay historial emocional previo."
	}
	return fmt.Sprintf("Historial emocional: %s. Última emoción: %s.", p.Summary, p.LastEmotion)
}

// GuestContext is used for guest turns, which have no profile.
const GuestContext = "Usuario invitado sin historial emocional."
