// Package openai adapts OpenAI-compatible chat completion APIs (OpenAI, Groq)
// to eino's model.BaseChatModel.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.1-8b-instant"
)

// Config describes an OpenAI-compatible endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
	MaxRetries  int
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// ChatModel implements model.BaseChatModel with openai-go.
type ChatModel struct {
	client openaigo.Client
	cfg    Config
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// NewChatModel validates cfg and builds the client.
func NewChatModel(cfg Config) (*ChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai-compatible api key is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/") + "/"),
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &ChatModel{client: openaigo.NewClient(opts...), cfg: cfg}, nil
}

// Generate runs one non-streaming completion.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	resp, err := m.client.Chat.Completions.New(ctx, m.params(input, opts))
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	return schema.AssistantMessage(resp.Choices[0].Message.Content, nil), nil
}

// Stream runs a streaming completion and forwards content deltas.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, m.params(input, opts))
	if err := stream.Err(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("openai chat stream: %w", err)
	}

	reader, writer := schema.Pipe[*schema.Message](8)
	go func() {
		defer writer.Close()
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if closed := writer.Send(schema.AssistantMessage(delta, nil), nil); closed {
				return
			}
		}
		if err := stream.Err(); err != nil {
			writer.Send(nil, fmt.Errorf("openai chat stream: %w", err))
		}
	}()
	return reader, nil
}

func (m *ChatModel) params(input []*schema.Message, opts []model.Option) openaigo.ChatCompletionNewParams {
	name := m.cfg.Model
	common := model.GetCommonOptions(&model.Options{
		Model:       &name,
		Temperature: m.cfg.Temperature,
		TopP:        m.cfg.TopP,
		MaxTokens:   m.cfg.MaxTokens,
	}, opts...)

	params := openaigo.ChatCompletionNewParams{
		Model:    openaigo.ChatModel(*common.Model),
		Messages: ConvertMessages(input),
	}
	if common.Temperature != nil {
		params.Temperature = openaigo.Float(float64(*common.Temperature))
	}
	if common.TopP != nil {
		params.TopP = openaigo.Float(float64(*common.TopP))
	}
	if common.MaxTokens != nil {
		params.MaxTokens = openaigo.Int(int64(*common.MaxTokens))
	}
	return params
}

// ConvertMessages maps eino messages to chat completion params. Unknown roles
// are sent as user turns.
func ConvertMessages(input []*schema.Message) []openaigo.ChatCompletionMessageParamUnion {
	out := make([]openaigo.ChatCompletionMessageParamUnion, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			out = append(out, openaigo.SystemMessage(msg.Content))
		case schema.Assistant:
			out = append(out, openaigo.AssistantMessage(msg.Content))
		default:
			out = append(out, openaigo.UserMessage(msg.Content))
		}
	}
	return out
}
