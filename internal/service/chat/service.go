// Package chat 编排一次对话轮次：情绪上下文、回复生成、情绪分类与持久化。
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lumi-ajolote/lumi/backend/internal/analysis/emotion"
	"github.com/lumi-ajolote/lumi/backend/internal/metrics"
	"github.com/lumi-ajolote/lumi/backend/internal/model/chat"
	"github.com/lumi-ajolote/lumi/backend/internal/model/profile"
	"github.com/lumi-ajolote/lumi/backend/internal/repository"
	emotionservice "github.com/lumi-ajolote/lumi/backend/internal/service/emotion"
	"github.com/lumi-ajolote/lumi/backend/internal/syncx"
)

var (
	ErrMissingMessage = errors.New("Falta el mensaje.")
	ErrMissingUser    = errors.New("Falta userId.")
)

// ReplyGenerator 生成 Lumi 的回复。
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, message, emotionalContext string) (string, error)
	StreamReply(ctx context.Context, message, emotionalContext string, onDelta func(string) error) (string, error)
}

// Classifier 为消息打情绪标签。
type Classifier interface {
	Classify(ctx context.Context, message string) emotionservice.Result
}

// ProfileAggregator 读写情绪画像。
type ProfileAggregator interface {
	EmotionalContext(ctx context.Context, userID string) (string, error)
	Update(ctx context.Context, userID string, label emotion.Label) (*profile.Profile, error)
}

// Turn 是一次用户输入。
type Turn struct {
	UserID  string
	Message string
	IsGuest bool
}

// Validate 检查消息非空，注册用户必须带 userId。
func (t Turn) Validate() error {
	if strings.TrimSpace(t.Message) == "" {
		return ErrMissingMessage
	}
	if !t.IsGuest && strings.TrimSpace(t.UserID) == "" {
		return ErrMissingUser
	}
	return nil
}

// Result 是返回给客户端的回复与情绪。
type Result struct {
	Reply   string        `json:"reply"`
	Emotion emotion.Label `json:"emotion"`
}

// Service 串联各组件。同一注册用户的轮次按提交顺序串行执行。
type Service struct {
	replies       ReplyGenerator
	classifier    Classifier
	profiles      ProfileAggregator
	conversations repository.ConversationRepository
	metrics       metrics.Recorder
	logger        *zap.Logger
	turns         *syncx.KeyedMutex
	now           func() time.Time
}

// NewService 创建对话服务。
func NewService(replies ReplyGenerator, classifier Classifier, profiles ProfileAggregator, conversations repository.ConversationRepository, rec metrics.Recorder, logger *zap.Logger) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		replies:       replies,
		classifier:    classifier,
		profiles:      profiles,
		conversations: conversations,
		metrics:       rec,
		logger:        logger.Named("chat"),
		turns:         syncx.NewKeyedMutex(),
		now:           time.Now,
	}
}

// Reply 处理一次完整轮次。
func (s *Service) Reply(ctx context.Context, turn Turn) (Result, error) {
	return s.run(ctx, turn, func(ctx context.Context, message, emotionalContext string) (string, error) {
		return s.replies.GenerateReply(ctx, message, emotionalContext)
	})
}

// StreamReply 与 Reply 相同，但通过 onDelta 推送回复增量。
func (s *Service) StreamReply(ctx context.Context, turn Turn, onDelta func(string) error) (Result, error) {
	return s.run(ctx, turn, func(ctx context.Context, message, emotionalContext string) (string, error) {
		return s.replies.StreamReply(ctx, message, emotionalContext, onDelta)
	})
}

// History 返回注册用户的对话记录，旧的在前。
func (s *Service) History(ctx context.Context, userID string) ([]chat.Entry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUser
	}
	entries, err := s.conversations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list history for %s: %w", userID, err)
	}
	if entries == nil {
		entries = []chat.Entry{}
	}
	return entries, nil
}

type generateFunc func(ctx context.Context, message, emotionalContext string) (string, error)

func (s *Service) run(ctx context.Context, turn Turn, generate generateFunc) (Result, error) {
	if err := turn.Validate(); err != nil {
		return Result{}, err
	}
	message := strings.TrimSpace(turn.Message)

	start := s.now()
	regime := "registered"
	if turn.IsGuest {
		regime = "guest"
	} else {
		unlock := s.turns.Lock(turn.UserID)
		defer unlock()
	}

	emotionalContext := s.emotionalContext(ctx, turn)

	reply, err := generate(ctx, message, emotionalContext)
	if err != nil {
		s.metrics.RecordLLMFailure("reply")
		return Result{}, fmt.Errorf("generate reply: %w", err)
	}

	classified := s.classifier.Classify(ctx, message)
	label := classified.Emotion.OrNeutral()

	if !turn.IsGuest {
		s.persist(ctx, turn.UserID, message, reply, label)
	}

	s.metrics.RecordTurn(regime, string(label), s.now().Sub(start))
	s.logger.Debug("turn completed",
		zap.String("regime", regime),
		zap.String("emotion", string(label)),
		zap.String("emotion_source", string(classified.Source)),
	)
	return Result{Reply: reply, Emotion: label}, nil
}

// emotionalContext 读取画像。读取失败时按无历史处理，不中断本轮对话。
func (s *Service) emotionalContext(ctx context.Context, turn Turn) string {
	if turn.IsGuest {
		return profile.GuestContext
	}
	line, err := s.profiles.EmotionalContext(ctx, turn.UserID)
	if err != nil {
		s.metrics.RecordPersistenceFailure("profile_read")
		s.logger.Warn("load emotional profile failed",
			zap.String("user_id", turn.UserID),
			zap.Error(err),
		)
		return profile.Context(nil)
	}
	return line
}

// persist 更新画像并追加对话记录。失败只记录日志与指标，回复照常返回。
func (s *Service) persist(ctx context.Context, userID, message, reply string, label emotion.Label) {
	if _, err := s.profiles.Update(ctx, userID, label); err != nil {
		s.metrics.RecordPersistenceFailure("profile")
		s.logger.Warn("update emotional profile failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	entry := &chat.Entry{
		UserID:    userID,
		Message:   message,
		Reply:     reply,
		Emotion:   label,
		CreatedAt: s.now().UTC(),
	}
	if err := s.conversations.Append(ctx, entry); err != nil {
		s.metrics.RecordPersistenceFailure("conversation")
		s.logger.Warn("append conversation entry failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
