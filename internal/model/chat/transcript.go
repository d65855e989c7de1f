package chat

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerLumi Speaker = "lumi"
)

// Line is one rendered transcript line. The JSON shape is the guest snapshot format.
type Line struct {
	From Speaker `json:"from"`
	Text string  `json:"text"`
}

// Lines expands entries into user/agent line pairs, preserving order.
func Lines(entries []Entry) []Line {
	lines := make([]Line, 0, len(entries)*2)
	for _, entry := range entries {
		lines = append(lines,
			Line{From: SpeakerUser, Text: entry.Message},
			Line{From: SpeakerLumi, Text: entry.Reply},
		)
	}
	return lines
}
