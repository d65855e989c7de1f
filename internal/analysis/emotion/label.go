package emotion

import "strings"

// Label 表示一条消息的情绪标签，取值限定在封闭集合内。
type Label string

const (
	Sad        Label = "triste"
	Anxious    Label = "ansioso"
	Angry      Label = "enojado"
	Frustrated Label = "frustrado"
	Stressed   Label = "estresado"
	Tired      Label = "cansado"
	Happy      Label = "feliz"
	Relieved   Label = "aliviado"
	Confused   Label = "confundido"
	Lonely     Label = "solo"
	Neutral    Label = "neutral"
)

// labels keeps the classifier prompt order. Neutral is the fallback and stays last.
var labels = []Label{
	Sad, Anxious, Angry, Frustrated, Stressed, Tired, Happy, Relieved, Confused, Lonely, Neutral,
}

// Labels returns the closed label set in canonical order.
func Labels() []Label {
	return append([]Label(nil), labels...)
}

// Valid reports whether l belongs to the closed set.
func (l Label) Valid() bool {
	for _, candidate := range labels {
		if l == candidate {
			return true
		}
	}
	return false
}

// OrNeutral returns l when valid, Neutral otherwise.
func (l Label) OrNeutral() Label {
	if l.Valid() {
		return l
	}
	return Neutral
}

// Parse matches raw against the closed set after trimming and lower-casing.
func Parse(raw string) (Label, bool) {
	candidate := Label(strings.ToLower(strings.TrimSpace(raw)))
	if candidate.Valid() {
		return candidate, true
	}
	return "", false
}

// Join renders the label set for prompts, e.g. "triste, ansioso, ...".
func Join(sep string) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, sep)
}
