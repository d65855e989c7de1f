package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatModelRequiresKey(t *testing.T) {
	_, err := NewChatModel(Config{})
	require.Error(t, err)
}

func TestConvertMessagesSkipsNil(t *testing.T) {
	out := ConvertMessages([]*schema.Message{
		schema.SystemMessage("sys"),
		nil,
		schema.UserMessage("hola"),
		schema.AssistantMessage("qué tal", nil),
	})
	assert.Len(t, out, 3)
}

func TestGenerateAgainstFakeServer(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"llama-3.1-8b-instant",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Aquí estoy contigo."}}]}`)
	}))
	defer srv.Close()

	m, err := NewChatModel(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	msg, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("Eres Lumi"),
		schema.UserMessage("estoy triste"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Aquí estoy contigo.", msg.Content)
	assert.Equal(t, DefaultModel, gotBody["model"])
}
