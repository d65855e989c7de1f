package reconciler

import (
	"fmt"
	"sort"
	"time"

	"github.com/lumi-ajolote/lumi/backend/internal/model/chat"
)

const (
	// AllSessionsKey 是"全部历史"伪会话的键。
	AllSessionsKey = "all"

	dateKeyLayout  = "2006-01-02"
	snippetLimit   = 60
	snippetEllipse = "..."
)

// SessionSummary 是会话列表中的一项。
type SessionSummary struct {
	Key     string
	Label   string
	Snippet string
	Count   int
}

// CountLabel renders the entry count, e.g. "3 mensajes".
func (s SessionSummary) CountLabel() string {
	if s.Key == AllSessionsKey {
		return ""
	}
	return fmt.Sprintf("%d mensajes", s.Count)
}

// DateKey returns the local calendar day of t as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateKeyLayout)
}

// Partition groups entries by local calendar day. Entry order inside a group is preserved.
func Partition(entries []chat.Entry, loc *time.Location) map[string][]chat.Entry {
	groups := make(map[string][]chat.Entry)
	for _, entry := range entries {
		key := DateKey(entry.CreatedAt, loc)
		groups[key] = append(groups[key], entry)
	}
	return groups
}

// Summaries lists the "all" pseudo-session followed by one item per day, newest day first.
func Summaries(entries []chat.Entry, now time.Time, loc *time.Location) []SessionSummary {
	groups := Partition(entries, loc)
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	out := make([]SessionSummary, 0, len(keys)+1)
	out = append(out, SessionSummary{
		Key:     AllSessionsKey,
		Label:   "Todo el historial",
		Snippet: "Ver todos los mensajes con Lumi",
		Count:   len(entries),
	})
	for _, key := range keys {
		group := groups[key]
		out = append(out, SessionSummary{
			Key:     key,
			Label:   RelativeLabel(key, now, loc),
			Snippet: Snippet(group[len(group)-1]),
			Count:   len(group),
		})
	}
	return out
}

// Snippet previews an entry: its reply, else its message, cut at 60 runes of the stored text.
func Snippet(entry chat.Entry) string {
	text := entry.Reply
	if text == "" {
		text = entry.Message
	}
	r := []rune(text)
	if len(r) <= snippetLimit {
		return text
	}
	return string(r[:snippetLimit]) + snippetEllipse
}

// RelativeLabel renders a date key as Hoy, Ayer or an es-MX short date.
func RelativeLabel(key string, now time.Time, loc *time.Location) string {
	day, err := time.ParseInLocation(dateKeyLayout, key, loc)
	if err != nil {
		return key
	}
	today := now.In(loc)
	switch key {
	case today.Format(dateKeyLayout):
		return "Hoy"
	case today.AddDate(0, 0, -1).Format(dateKeyLayout):
		return "Ayer"
	}
	return ShortDate(day)
}

var spanishMonths = [...]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sep", "oct", "nov", "dic"}

// ShortDate formats t like es-MX "02 ene 2025".
func ShortDate(t time.Time) string {
	return fmt.Sprintf("%02d %s %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}
