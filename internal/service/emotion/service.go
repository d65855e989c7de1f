package emotion

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	analysis "github.com/lumi-ajolote/lumi/backend/internal/analysis/emotion"
)

// Config 控制情绪分类服务的行为。
type Config struct {
	Enabled bool
	Timeout time.Duration
}

// Source 标记分类结果的来源。
type Source string

const (
	SourceLLM       Source = "llm"
	SourceHeuristic Source = "heuristic"
)

// Result 是一次分类的结果。
type Result struct {
	Emotion analysis.Label
	Source  Source
}

// EnumConstrainer 由能够把输出限制在固定取值内的模型实现。
type EnumConstrainer interface {
	WithResponseEnum(values []string) model.BaseChatModel
}

// Service 使用大模型将一条消息归入封闭标签集，失败时回退到关键词规则。
type Service struct {
	enabled    bool
	classifier compose.Runnable[map[string]any, *schema.Message]
	fallback   func(text string) analysis.Decision
	timeout    time.Duration
	logger     *zap.Logger
}

// NewService 创建情绪分类服务。chatModel 可重用回复生成的模型实例。
func NewService(ctx context.Context, chatModel model.BaseChatModel, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	svc := &Service{
		enabled:  cfg.Enabled && chatModel != nil,
		fallback: analysis.Analyze,
		timeout:  cfg.Timeout,
		logger:   logger.Named("emotion"),
	}

	if !svc.enabled {
		return svc, nil
	}

	if constrainer, ok := chatModel.(EnumConstrainer); ok {
		chatModel = constrainer.WithResponseEnum(labelStrings())
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(classifierSystemPrompt),
		schema.UserMessage("{message}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile emotion classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled 返回是否启用大模型分类。
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.classifier != nil
}

// Classify 返回 message 的情绪标签，结果总是封闭集合中的值。
// 模型给出集合外的词时记为 neutral；模型不可用或出错时使用关键词规则。
func (s *Service) Classify(ctx context.Context, message string) Result {
	if !s.Enabled() {
		return s.heuristic(message)
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	msg, err := s.classifier.Invoke(callCtx, map[string]any{
		"labels":  analysis.Join(", "),
		"message": message,
	})
	if err != nil {
		s.logger.Warn("classifier invoke failed, use fallback", zap.Error(err))
		return s.heuristic(message)
	}

	raw := ""
	if msg != nil {
		raw = msg.Content
	}
	return Result{Emotion: Normalize(raw), Source: SourceLLM}
}

func (s *Service) heuristic(message string) Result {
	return Result{Emotion: s.fallback(message).Emotion, Source: SourceHeuristic}
}

// Normalize 将模型输出规整为标签：小写、去掉首尾空白与标点，集合外的值为 neutral。
func Normalize(raw string) analysis.Label {
	trimmed := strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	if trimmed == "" {
		return analysis.Neutral
	}
	label, ok := analysis.Parse(cases.Lower(language.LatinAmericanSpanish).String(trimmed))
	if !ok {
		return analysis.Neutral
	}
	return label
}

func labelStrings() []string {
	labels := analysis.Labels()
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = string(l)
	}
	return out
}

const classifierSystemPrompt = "Eres un clasificador emocional.\nResponde SOLO una palabra (minúsculas):\n{labels}.\nSi no estás seguro, responde \"neutral\"."
