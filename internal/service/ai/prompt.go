package ai

import (
	"strings"

	"github.com/lumi-ajolote/lumi/backend/internal/model/persona"
)

// BuildSystemPrompt 拼接角色介绍、情绪上下文与回复规则，每段一行。
func BuildSystemPrompt(p persona.Persona, emotionalContext string) string {
	lines := make([]string, 0, 2+len(p.Rules))
	if intro := strings.TrimSpace(p.Intro); intro != "" {
		lines = append(lines, intro)
	} else {
		lines = append(lines, "Eres "+p.Name+", "+p.Title+".")
	}
	if ctx := strings.TrimSpace(emotionalContext); ctx != "" {
		lines = append(lines, ctx)
	}
	for _, rule := range p.Rules {
		if rule = strings.TrimSpace(rule); rule != "" {
			lines = append(lines, rule)
		}
	}
	return strings.Join(lines, "\n")
}
