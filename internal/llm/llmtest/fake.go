// Package llmtest provides an in-memory model.BaseChatModel for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModel answers with Respond, or Reply when Respond is nil.
type ChatModel struct {
	Reply   string
	Err     error
	Respond func(input []*schema.Message) (string, error)

	mu    sync.Mutex
	calls [][]*schema.Message
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// Generate records input and returns the configured answer.
func (m *ChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	text, err := m.answer(input)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(text, nil), nil
}

// Stream emits the answer word by word.
func (m *ChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	text, err := m.answer(input)
	if err != nil {
		return nil, err
	}
	var chunks []*schema.Message
	for i, word := range strings.SplitAfter(text, " ") {
		if word == "" && i > 0 {
			continue
		}
		chunks = append(chunks, schema.AssistantMessage(word, nil))
	}
	return schema.StreamReaderFromArray(chunks), nil
}

// Calls returns a copy of the recorded inputs.
func (m *ChatModel) Calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*schema.Message(nil), m.calls...)
}

// LastSystemPrompt returns the system message of the latest call.
func (m *ChatModel) LastSystemPrompt() string {
	calls := m.Calls()
	if len(calls) == 0 {
		return ""
	}
	for _, msg := range calls[len(calls)-1] {
		if msg.Role == schema.System {
			return msg.Content
		}
	}
	return ""
}

func (m *ChatModel) answer(input []*schema.Message) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, input)
	m.mu.Unlock()

	if m.Respond != nil {
		return m.Respond(input)
	}
	return m.Reply, m.Err
}

// UserText returns the content of the last user message in input.
func UserText(input []*schema.Message) string {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i].Role == schema.User {
			return input[i].Content
		}
	}
	return ""
}
