package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/lumi-ajolote/lumi/backend/internal/model/persona"
)

// DefaultFallbackReply 在模型返回空内容时使用。
const DefaultFallbackReply = "Lo siento, tuve un error al responder."

// Config 控制回复生成。
type Config struct {
	Timeout time.Duration
}

// Service 基于 eino chain 生成 Lumi 的回复。
type Service struct {
	persona persona.Persona
	chain   compose.Runnable[map[string]any, *schema.Message]
	timeout time.Duration
	logger  *zap.Logger
}

// NewService 编译 system + user 的对话链。
func NewService(ctx context.Context, chatModel model.BaseChatModel, personas persona.Store, cfg Config, logger *zap.Logger) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	p, ok := persona.Default(personas)
	if !ok {
		return nil, errors.New("no persona configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		persona: p,
		chain:   runnable,
		timeout: cfg.Timeout,
		logger:  logger.Named("ai"),
	}, nil
}

// Persona 返回当前使用的角色。
func (s *Service) Persona() persona.Persona {
	return s.persona
}

// GenerateReply 生成一段回复。空回复使用角色的兜底文案。
func (s *Service) GenerateReply(ctx context.Context, message, emotionalContext string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	response, err := s.chain.Invoke(ctx, s.buildChainInput(message, emotionalContext))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	reply := ""
	if response != nil {
		reply = strings.TrimSpace(response.Content)
	}
	if reply == "" {
		s.logger.Warn("empty completion, using fallback reply")
		return s.fallbackReply(), nil
	}

	s.logger.Debug("generated reply", zap.Int("length", len(reply)))
	return reply, nil
}

// StreamReply 以流式方式生成回复，onDelta 依次收到增量文本，返回完整回复。
func (s *Service) StreamReply(ctx context.Context, message, emotionalContext string, onDelta func(string) error) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	stream, err := s.chain.Stream(ctx, s.buildChainInput(message, emotionalContext))
	if err != nil {
		return "", fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to receive AI stream chunk: %w", err)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		builder.WriteString(chunk.Content)
		if onDelta != nil {
			if err := onDelta(chunk.Content); err != nil {
				return "", err
			}
		}
	}

	reply := strings.TrimSpace(builder.String())
	if reply == "" {
		reply = s.fallbackReply()
		if onDelta != nil {
			if err := onDelta(reply); err != nil {
				return "", err
			}
		}
	}
	return reply, nil
}

func (s *Service) buildChainInput(message, emotionalContext string) map[string]any {
	return map[string]any{
		"system": BuildSystemPrompt(s.persona, emotionalContext),
		"query":  message,
	}
}

func (s *Service) fallbackReply() string {
	if s.persona.FallbackLine != "" {
		return s.persona.FallbackLine
	}
	return DefaultFallbackReply
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
