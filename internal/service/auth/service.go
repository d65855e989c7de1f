// Package auth 实现注册与登录。
package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumi-ajolote/lumi/backend/internal/model/user"
	"github.com/lumi-ajolote/lumi/backend/internal/repository"
)

// ValidationError 携带可以直接返回给用户的提示。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrEmailTaken         = &ValidationError{Message: "Ese correo ya está registrado."}
	ErrInvalidCredentials = &ValidationError{Message: "Correo o contraseña incorrectos."}
	ErrPasswordTooLong    = &ValidationError{Message: "La contraseña es demasiado larga."}
)

// Option 调整 Service。
type Option func(*Service)

// WithBcryptCost 设置哈希成本，测试中可使用 bcrypt.MinCost。
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// Service 负责账号注册与凭证校验。
type Service struct {
	users     repository.UserRepository
	cost      int
	sanitizer *bluemonday.Policy
	now       func() time.Time
	logger    *zap.Logger
}

// NewService 创建认证服务。
func NewService(users repository.UserRepository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		users:     users,
		cost:      bcrypt.DefaultCost,
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
		logger:    logger.Named("auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register 校验注册信息并创建账号。
func (s *Service) Register(ctx context.Context, reg user.Registration) (*user.User, error) {
	reg.Username = s.cleanUsername(reg.Username)
	if err := reg.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	email := user.NormalizeEmail(reg.Email)
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	u := &user.User{
		ID:            uuid.NewString(),
		Email:         email,
		Username:      reg.Username,
		PasswordHash:  string(hash),
		ConsentMemory: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", u.ID))
	return u, nil
}

// Login 校验邮箱与密码。邮箱不存在与密码错误返回同一个错误。
func (s *Service) Login(ctx context.Context, email, password string) (*user.User, error) {
	email = user.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}

	return u, nil
}

// cleanUsername 去掉 HTML 标签并保留纯文本。
func (s *Service) cleanUsername(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(raw)))
}
