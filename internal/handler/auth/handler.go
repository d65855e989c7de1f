package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lumi-ajolote/lumi/backend/internal/model/user"
	authService "github.com/lumi-ajolote/lumi/backend/internal/service/auth"
	"github.com/lumi-ajolote/lumi/backend/pkg/utils"
)

// Handler 认证接口的HTTP处理器
type Handler struct {
	authSvc *authService.Service
	logger  *zap.Logger
}

// New 创建认证处理器
func New(authSvc *authService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		authSvc: authSvc,
		logger:  logger.Named("auth_handler"),
	}
}

// RegisterRoutes 注册认证相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
}

// AccountResponse 是注册与登录成功时的响应。
type AccountResponse struct {
	Message  string `json:"message"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload user.Registration
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, user.ErrMissingFields.Error())
		return
	}

	created, err := h.authSvc.Register(r.Context(), payload)
	if err != nil {
		h.respondAuthError(w, err, "Error al registrar.")
		return
	}

	utils.RespondJSON(w, http.StatusOK, AccountResponse{
		Message:  "Cuenta creada correctamente.",
		UserID:   created.ID,
		Username: created.Username,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, authService.ErrInvalidCredentials.Message)
		return
	}

	found, err := h.authSvc.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		h.respondAuthError(w, err, "Error al iniciar sesión.")
		return
	}

	utils.RespondJSON(w, http.StatusOK, AccountResponse{
		Message:  "Login correcto.",
		UserID:   found.ID,
		Username: found.Username,
	})
}

// respondAuthError 校验错误返回 400 与原始提示，其余返回 500 与通用提示。
func (h *Handler) respondAuthError(w http.ResponseWriter, err error, fallback string) {
	var verr *authService.ValidationError
	if errors.As(err, &verr) {
		utils.RespondError(w, http.StatusBadRequest, verr.Message)
		return
	}
	h.logger.Error("auth request failed", zap.Error(err))
	utils.RespondError(w, http.StatusInternalServerError, fallback)
}
