package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/lumi-ajolote/lumi/backend/internal/model/chat"
	"github.com/lumi-ajolote/lumi/backend/internal/reconciler"
)

// palette 是一个主题的颜色。
type palette struct {
	User   lipgloss.Color
	Lumi   lipgloss.Color
	Muted  lipgloss.Color
	Accent lipgloss.Color
}

var palettes = map[string]palette{
	"rose":   {User: "#F06292", Lumi: "#AD1457", Muted: "#BCAAA4", Accent: "#F8BBD0"},
	"purple": {User: "#BA68C8", Lumi: "#6A1B9A", Muted: "#B0A8B9", Accent: "#E1BEE7"},
	"blue":   {User: "#64B5F6", Lumi: "#1565C0", Muted: "#A7B4C2", Accent: "#BBDEFB"},
}

type styles struct {
	user   lipgloss.Style
	lumi   lipgloss.Style
	muted  lipgloss.Style
	accent lipgloss.Style
}

func newStyles(theme string) styles {
	p, ok := palettes[theme]
	if !ok {
		p = palettes[reconciler.Themes[0]]
	}
	return styles{
		user:   lipgloss.NewStyle().Foreground(p.User).Bold(true),
		lumi:   lipgloss.NewStyle().Foreground(p.Lumi).Bold(true),
		muted:  lipgloss.NewStyle().Foreground(p.Muted).Italic(true),
		accent: lipgloss.NewStyle().Foreground(p.Accent),
	}
}

// terminalView 实现 reconciler.View。新的渲染如果只是在上一次末尾追加，就只输出新增的行。
type terminalView struct {
	mu      sync.Mutex
	out     io.Writer
	styles  styles
	shown   []chat.Line
	inputOn bool
}

func newTerminalView(out io.Writer, theme string) *terminalView {
	return &terminalView{out: out, styles: newStyles(theme)}
}

func (v *terminalView) SetTheme(theme string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.styles = newStyles(theme)
}

func (v *terminalView) Render(lines []chat.Line) {
	v.mu.Lock()
	defer v.mu.Unlock()

	start := 0
	if isPrefix(v.shown, lines) {
		start = len(v.shown)
	} else {
		fmt.Fprintln(v.out, v.styles.accent.Render(strings.Repeat("─", 40)))
	}
	for _, line := range lines[start:] {
		fmt.Fprintln(v.out, v.formatLine(line))
	}
	v.shown = append(v.shown[:0], lines...)
}

func (v *terminalView) SetTyping(active bool) {
	if !active {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, v.styles.muted.Render("Lumi está escribiendo..."))
}

func (v *terminalView) SetInputEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.inputOn == enabled {
		return
	}
	v.inputOn = enabled
	if !enabled {
		fmt.Fprintln(v.out, v.styles.muted.Render("Usa /login, /register o /guest para empezar."))
	}
}

// Notice prints a status line outside the transcript.
func (v *terminalView) Notice(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, v.styles.muted.Render(fmt.Sprintf(format, args...)))
}

func (v *terminalView) formatLine(line chat.Line) string {
	if line.From == chat.SpeakerUser {
		return v.styles.user.Render("Tú:") + " " + line.Text
	}
	return v.styles.lumi.Render("Lumi:") + " " + line.Text
}

func isPrefix(prev, next []chat.Line) bool {
	if len(prev) == 0 || len(prev) > len(next) {
		return false
	}
	for i := range prev {
		if prev[i] != next[i] {
			return false
		}
	}
	return true
}
