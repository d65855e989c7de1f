package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lumi-ajolote/lumi/backend/internal/config"
	"github.com/lumi-ajolote/lumi/backend/internal/handler/auth"
	"github.com/lumi-ajolote/lumi/backend/internal/handler/chat"
	"github.com/lumi-ajolote/lumi/backend/internal/handler/persona"
	"github.com/lumi-ajolote/lumi/backend/internal/metrics"
	middlewarePkg "github.com/lumi-ajolote/lumi/backend/internal/middleware"
	personaModel "github.com/lumi-ajolote/lumi/backend/internal/model/persona"
	authService "github.com/lumi-ajolote/lumi/backend/internal/service/auth"
	chatService "github.com/lumi-ajolote/lumi/backend/internal/service/chat"
	"github.com/lumi-ajolote/lumi/backend/pkg/utils"
)

// Dependencies 汇总路由需要的服务与中间件。
type Dependencies struct {
	Auth     *authService.Service
	Chat     *chatService.Service
	Personas personaModel.Store
	// Persona 是回复生成使用的角色；为空时从 Personas 取默认角色。
	Persona personaModel.Persona

	WebSocketPingWait time.Duration

	AllowedOrigin string
	RateLimiter   *middlewarePkg.RateLimiter
	RateLimit     config.RateLimitConfig

	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.NewLoggingMiddleware(logger.Named("http"), deps.Metrics))
	r.Use(middlewarePkg.NewRecoveryMiddleware(logger))
	r.Use(middlewarePkg.NewCORSMiddleware(deps.AllowedOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	p := deps.Persona
	if p.ID == "" {
		var ok bool
		if p, ok = personaModel.Default(deps.Personas); !ok {
			logger.Warn("no persona configured, websocket greeting will be empty")
		}
	}
	personaHandler := persona.New(deps.Personas)
	authHandler := auth.New(deps.Auth, logger)
	chatHandler := chat.New(deps.Chat, p, logger, chat.WithPingWait(deps.WebSocketPingWait))

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)

		api.Group(func(g chi.Router) {
			if deps.RateLimiter != nil {
				g.Use(deps.RateLimiter.Middleware("auth", deps.RateLimit.AuthPerMinute))
			}
			authHandler.RegisterRoutes(g)
		})

		api.Group(func(g chi.Router) {
			if deps.RateLimiter != nil {
				g.Use(deps.RateLimiter.Middleware("chat", deps.RateLimit.ChatPerMinute))
			}
			chatHandler.RegisterRoutes(g)
		})
	})

	return r
}
