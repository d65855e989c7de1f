package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumi-ajolote/lumi/backend/internal/llm/llmtest"
	"github.com/lumi-ajolote/lumi/backend/internal/model/persona"
	"github.com/lumi-ajolote/lumi/backend/internal/model/profile"
)

func newService(t *testing.T, fake *llmtest.ChatModel) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), fake, persona.NewMemoryStore(persona.Seed()), Config{}, nil)
	require.NoError(t, err)
	return svc
}

func TestBuildSystemPromptForGuest(t *testing.T) {
	p, _ := persona.Default(persona.NewMemoryStore(persona.Seed()))
	got := BuildSystemPrompt(p, profile.GuestContext)

	want := "Eres Lumi, un ajolotito emocional.\n" +
		"Hablas cálido, amable y sin diagnosticar.\n" +
		"Usuario invitado sin historial emocional.\n" +
		"Responde en un párrafo corto."
	assert.Equal(t, want, got)
}

func TestGenerateReplyPassesContextAndMessage(t *testing.T) {
	fake := &llmtest.ChatModel{Reply: "  Estoy aquí para ti 🌸  "}
	svc := newService(t, fake)

	reply, err := svc.GenerateReply(context.Background(), "me siento triste", "No hay historial emocional previo.")
	require.NoError(t, err)
	assert.Equal(t, "Estoy aquí para ti 🌸", reply)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "me siento triste", llmtest.UserText(calls[0]))
	assert.Contains(t, fake.LastSystemPrompt(), "No hay historial emocional previo.")
}

func TestGenerateReplyEmptyUsesFallback(t *testing.T) {
	svc := newService(t, &llmtest.ChatModel{Reply: "   "})

	reply, err := svc.GenerateReply(context.Background(), "hola", profile.GuestContext)
	require.NoError(t, err)
	assert.Equal(t, DefaultFallbackReply, reply)
}

func TestGenerateReplyPropagatesModelError(t *testing.T) {
	svc := newService(t, &llmtest.ChatModel{Err: errors.New("upstream down")})

	_, err := svc.GenerateReply(context.Background(), "hola", profile.GuestContext)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestStreamReplyEmitsDeltas(t *testing.T) {
	svc := newService(t, &llmtest.ChatModel{Reply: "Respira hondo conmigo"})

	var deltas []string
	reply, err := svc.StreamReply(context.Background(), "estoy ansioso", profile.GuestContext, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Respira hondo conmigo", reply)
	assert.Equal(t, reply, strings.Join(deltas, ""))
	assert.Greater(t, len(deltas), 1)
}

func TestNewServiceRequiresModel(t *testing.T) {
	_, err := NewService(context.Background(), nil, persona.NewMemoryStore(persona.Seed()), Config{}, nil)
	require.Error(t, err)
}
