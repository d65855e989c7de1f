// Package profile 维护每个注册用户的情绪画像。
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lumi-ajolote/lumi/backend/internal/analysis/emotion"
	model "github.com/lumi-ajolote/lumi/backend/internal/model/profile"
	"github.com/lumi-ajolote/lumi/backend/internal/repository"
	"github.com/lumi-ajolote/lumi/backend/internal/syncx"
)

// ErrMissingUser 表示调用方没有提供用户 ID。
var ErrMissingUser = errors.New("profile: user id is required")

// Aggregator 记录情绪并重新计算摘要。同一用户的更新串行执行。
type Aggregator struct {
	profiles repository.ProfileRepository
	locks    *syncx.KeyedMutex
	now      func() time.Time
	logger   *zap.Logger
}

// NewAggregator 创建情绪画像聚合器。
func NewAggregator(profiles repository.ProfileRepository, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		profiles: profiles,
		locks:    syncx.NewKeyedMutex(),
		now:      time.Now,
		logger:   logger.Named("profile"),
	}
}

// Update 计入一次情绪。画像不存在时创建，非法标签按 neutral 计。
func (a *Aggregator) Update(ctx context.Context, userID string, label emotion.Label) (*model.Profile, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if !label.Valid() {
		a.logger.Warn("invalid emotion label, recording neutral",
			zap.String("user_id", userID),
			zap.String("label", string(label)),
		)
		label = emotion.Neutral
	}

	unlock := a.locks.Lock(userID)
	defer unlock()

	updated, err := a.profiles.Upsert(ctx, userID, func(p *model.Profile) error {
		p.Record(label, a.now().UTC())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update emotional profile for %s: %w", userID, err)
	}
	return updated, nil
}

// Get 返回用户画像，不存在时返回 nil。
func (a *Aggregator) Get(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	p, err := a.profiles.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load emotional profile for %s: %w", userID, err)
	}
	return p, nil
}

// EmotionalContext 渲染回复生成使用的情绪上下文。
func (a *Aggregator) EmotionalContext(ctx context.Context, userID string) (string, error) {
	p, err := a.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return model.Context(p), nil
}
