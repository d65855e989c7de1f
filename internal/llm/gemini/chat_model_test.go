package gemini

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestConvertMessagesSeparatesSystem(t *testing.T) {
	system, contents := ConvertMessages([]*schema.Message{
		schema.SystemMessage("Eres Lumi"),
		schema.SystemMessage("Responde corto"),
		schema.UserMessage("hola"),
		schema.AssistantMessage("¡hola!", nil),
		nil,
	})

	assert.Equal(t, "Eres Lumi\n\nResponde corto", system)
	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
}

func TestNewChatModelRequiresKey(t *testing.T) {
	_, err := NewChatModel(context.Background(), Config{})
	require.Error(t, err)
}

func TestWithResponseEnumConstrainsRequest(t *testing.T) {
	base := &ChatModel{cfg: Config{Model: DefaultModel}}
	constrained, ok := base.WithResponseEnum([]string{"feliz", "neutral"}).(*ChatModel)
	require.True(t, ok)

	_, config := constrained.request([]*schema.Message{schema.UserMessage("hola")}, nil)
	assert.Equal(t, "text/x.enum", config.ResponseMIMEType)
	require.NotNil(t, config.ResponseSchema)
	assert.Equal(t, []string{"feliz", "neutral"}, config.ResponseSchema.Enum)

	_, plain := base.request([]*schema.Message{schema.UserMessage("hola")}, nil)
	assert.Nil(t, plain.ResponseSchema)
}
