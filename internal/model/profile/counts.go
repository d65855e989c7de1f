package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lumi-ajolote/lumi/backend/internal/analysis/emotion"
)

// LabelCount pairs a label with its tally.
type LabelCount struct {
	Label emotion.Label
	Count int
}

// Counts is a label→count mapping with zero-on-missing reads. Labels keep the
// order in which they were first counted; that order breaks ties in Top.
// The zero value is ready to use.
type Counts struct {
	order []emotion.Label
	n     map[emotion.Label]int
}

// Get returns the count for label, 0 when absent.
func (c *Counts) Get(label emotion.Label) int {
	if c == nil || c.n == nil {
		return 0
	}
	return c.n[label]
}

// Inc adds one to label and returns the new count.
func (c *Counts) Inc(label emotion.Label) int {
	return c.Add(label, 1)
}

// Add adds delta to label and returns the new count.
func (c *Counts) Add(label emotion.Label, delta int) int {
	if c.n == nil {
		c.n = make(map[emotion.Label]int)
	}
	if _, ok := c.n[label]; !ok {
		c.order = append(c.order, label)
	}
	c.n[label] += delta
	return c.n[label]
}

// Len returns the number of distinct labels counted.
func (c *Counts) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Entries returns the counts in insertion order.
func (c *Counts) Entries() []LabelCount {
	if c == nil {
		return nil
	}
	out := make([]LabelCount, 0, len(c.order))
	for _, label := range c.order {
		out = append(out, LabelCount{Label: label, Count: c.n[label]})
	}
	return out
}

// Top returns at most k entries by descending count, ties in insertion order.
func (c *Counts) Top(k int) []LabelCount {
	entries := c.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	if k >= 0 && len(entries) > k {
		entries = entries[:k]
	}
	return entries
}

// Clone returns an independent copy.
func (c *Counts) Clone() Counts {
	var out Counts
	for _, entry := range c.Entries() {
		out.Add(entry.Label, entry.Count)
	}
	return out
}

// MarshalJSON writes an object whose keys follow insertion order.
func (c Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range c.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(entry.Label))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", entry.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object and keeps its key order.
func (c *Counts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = Counts{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("emotion counts: expected object, got %v", tok)
	}

	var out Counts
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("emotion counts: unexpected key %v", keyTok)
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("emotion counts: value for %q: %w", key, err)
		}
		out.Add(emotion.Label(key), count)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}
