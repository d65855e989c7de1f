// Package gemini adapts the Gemini API to eino's model.BaseChatModel.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

// Config describes the Gemini backend.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
}

// ChatModel implements model.BaseChatModel on genai.
type ChatModel struct {
	client *genai.Client
	cfg    Config
	enum   []string
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// NewChatModel creates the genai client.
func NewChatModel(ctx context.Context, cfg Config) (*ChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &ChatModel{client: client, cfg: cfg}, nil
}

// WithResponseEnum returns a copy that constrains output to one of values.
func (m *ChatModel) WithResponseEnum(values []string) model.BaseChatModel {
	clone := *m
	clone.enum = append([]string(nil), values...)
	return &clone
}

// Generate runs one completion.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	contents, config := m.request(input, opts)
	res, err := m.client.Models.GenerateContent(ctx, m.cfg.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return schema.AssistantMessage(res.Text(), nil), nil
}

// Stream forwards each streamed candidate text as a delta.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	contents, config := m.request(input, opts)

	reader, writer := schema.Pipe[*schema.Message](8)
	go func() {
		defer writer.Close()
		for res, err := range m.client.Models.GenerateContentStream(ctx, m.cfg.Model, contents, config) {
			if err != nil {
				writer.Send(nil, fmt.Errorf("gemini stream: %w", err))
				return
			}
			text := res.Text()
			if text == "" {
				continue
			}
			if closed := writer.Send(schema.AssistantMessage(text, nil), nil); closed {
				return
			}
		}
	}()
	return reader, nil
}

func (m *ChatModel) request(input []*schema.Message, opts []model.Option) ([]*genai.Content, *genai.GenerateContentConfig) {
	common := model.GetCommonOptions(&model.Options{
		Temperature: m.cfg.Temperature,
		TopP:        m.cfg.TopP,
		MaxTokens:   m.cfg.MaxTokens,
	}, opts...)

	system, contents := ConvertMessages(input)
	config := &genai.GenerateContentConfig{
		Temperature: common.Temperature,
		TopP:        common.TopP,
	}
	if common.MaxTokens != nil {
		config.MaxOutputTokens = int32(*common.MaxTokens)
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(m.enum) > 0 {
		config.ResponseMIMEType = "text/x.enum"
		config.ResponseSchema = &genai.Schema{Type: genai.TypeString, Enum: m.enum}
	}
	return contents, config
}

// ConvertMessages splits system prompts from the turn history. System
// messages are joined with blank lines; assistant turns map to the model role.
func ConvertMessages(input []*schema.Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			if text := strings.TrimSpace(msg.Content); text != "" {
				system = append(system, text)
			}
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
