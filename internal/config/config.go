package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/lumi-ajolote/lumi/backend/internal/llm/gemini"
	"github.com/lumi-ajolote/lumi/backend/internal/llm/openai"
)

// LLM 提供方。
const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	database, err := loadDatabaseConfig()
	if err != nil {
		return nil, err
	}

	rateLimit, err := loadRateLimitConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	metrics, err := loadMetricsConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		Database:  database,
		RateLimit: rateLimit,
		Log:       logCfg,
		Metrics:   metrics,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr            string
	AllowedOrigin   string
	ShutdownTimeout time.Duration
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "4000"
	}

	shutdown, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}

	cfg := ServerConfig{
		AllowedOrigin:   getEnvOrDefault("CORS_ALLOWED_ORIGIN", "*"),
		ShutdownTimeout: shutdown,
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":4000" 或 "127.0.0.1:4000"。
		cfg.Addr = port
		return cfg, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	cfg.Addr = ":" + port
	return cfg, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string

	// Ark
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string

	// OpenAI 兼容接口（默认 Groq）
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	// Gemini
	GeminiKey   string
	GeminiModel string

	Temperature       *float64
	TopP              *float64
	MaxTokens         *int
	EmotionLLMEnabled bool
	Timeout           time.Duration
}

// Enabled 表示当前提供方的凭证是否齐全。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAIKey != ""
	case ProviderGemini:
		return c.GeminiKey != ""
	default:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	}
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s 凭证或模型配置缺失", c.Provider)
	}

	temperature := toFloat32(c.Temperature)
	topP := toFloat32(c.TopP)

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	switch c.Provider {
	case ProviderOpenAI:
		return openai.NewChatModel(openai.Config{
			APIKey:      c.OpenAIKey,
			BaseURL:     c.OpenAIBaseURL,
			Model:       c.OpenAIModel,
			Temperature: temperature,
			TopP:        topP,
			MaxTokens:   maxTokens,
			MaxRetries:  2,
			Timeout:     c.Timeout,
		})
	case ProviderGemini:
		return gemini.NewChatModel(ctx, gemini.Config{
			APIKey:      c.GeminiKey,
			Model:       c.GeminiModel,
			Temperature: temperature,
			TopP:        topP,
			MaxTokens:   maxTokens,
		})
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}
	if c.Timeout > 0 {
		timeout := c.Timeout
		cfg.Timeout = &timeout
	}

	return ark.NewChatModel(ctx, cfg)
}

func toFloat32(v *float64) *float32 {
	if v == nil {
		return nil
	}
	val := float32(*v)
	return &val
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ""))
	if provider == "" {
		provider = detectProvider()
	}
	switch provider {
	case ProviderArk, ProviderOpenAI, ProviderGemini:
	default:
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("LLM_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}
	if maxTokens != nil && *maxTokens < 1 {
		return AIConfig{}, fmt.Errorf("invalid LLM_MAX_TOKENS value %d", *maxTokens)
	}

	emotionEnabled, err := parseBoolEnv("AI_EMOTION_LLM_ENABLED", true)
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationEnv("LLM_TIMEOUT", 60*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	openAIKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if openAIKey == "" {
		openAIKey = strings.TrimSpace(os.Getenv("GROQ_API_KEY"))
	}

	return AIConfig{
		Provider:          provider,
		APIKey:            strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:         strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:         strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:             strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:           getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:            getEnvOrDefault("ARK_REGION", "cn-beijing"),
		OpenAIKey:         openAIKey,
		OpenAIBaseURL:     getEnvOrDefault("OPENAI_BASE_URL", openai.DefaultBaseURL),
		OpenAIModel:       getEnvOrDefault("OPENAI_MODEL", openai.DefaultModel),
		GeminiKey:         strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:       getEnvOrDefault("GEMINI_MODEL", gemini.DefaultModel),
		Temperature:       temperature,
		TopP:              topP,
		MaxTokens:         maxTokens,
		EmotionLLMEnabled: emotionEnabled,
		Timeout:           timeout,
	}, nil
}

// detectProvider 在未显式指定时按已配置的密钥推断提供方。
func detectProvider() string {
	switch {
	case strings.TrimSpace(os.Getenv("GROQ_API_KEY")) != "", strings.TrimSpace(os.Getenv("OPENAI_API_KEY")) != "":
		return ProviderOpenAI
	case strings.TrimSpace(os.Getenv("GEMINI_API_KEY")) != "":
		return ProviderGemini
	default:
		return ProviderArk
	}
}

// DatabaseConfig 描述持久化配置。URL 为空时使用内存存储。
type DatabaseConfig struct {
	URL         string
	AutoMigrate bool
}

// UsePostgres 表示是否配置了 PostgreSQL。
func (c DatabaseConfig) UsePostgres() bool {
	return c.URL != ""
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	autoMigrate, err := parseBoolEnv("DB_AUTO_MIGRATE", true)
	if err != nil {
		return DatabaseConfig{}, err
	}
	return DatabaseConfig{
		URL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AutoMigrate: autoMigrate,
	}, nil
}

// RateLimitConfig 以每分钟请求数表示，0 表示不限流。
type RateLimitConfig struct {
	ChatPerMinute int
	AuthPerMinute int
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	chat, err := parseNonNegativeIntEnv("CHAT_RATE_PER_MIN", 30)
	if err != nil {
		return RateLimitConfig{}, err
	}
	auth, err := parseNonNegativeIntEnv("AUTH_RATE_PER_MIN", 10)
	if err != nil {
		return RateLimitConfig{}, err
	}
	return RateLimitConfig{ChatPerMinute: chat, AuthPerMinute: auth}, nil
}

// LogConfig 描述日志配置。
type LogConfig struct {
	Level       string
	Development bool
}

func loadLogConfig() (LogConfig, error) {
	development, err := parseBoolEnv("LOG_DEVELOPMENT", false)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Level:       strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Development: development,
	}, nil
}

// MetricsConfig 控制 /metrics 暴露。
type MetricsConfig struct {
	Enabled bool
}

func loadMetricsConfig() (MetricsConfig, error) {
	enabled, err := parseBoolEnv("METRICS_ENABLED", true)
	if err != nil {
		return MetricsConfig{}, err
	}
	return MetricsConfig{Enabled: enabled}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseNonNegativeIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	if *val < 0 {
		return 0, fmt.Errorf("invalid %s value %d: must not be negative", key, *val)
	}
	return *val, nil
}
