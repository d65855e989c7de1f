package chat

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lumi-ajolote/lumi/backend/internal/model/persona"
	chatService "github.com/lumi-ajolote/lumi/backend/internal/service/chat"
	"github.com/lumi-ajolote/lumi/backend/pkg/utils"
)

const (
	msgInternal     = "Error interno."
	msgHistoryError = "Error al obtener historial."
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc  *chatService.Service
	persona  persona.Persona
	logger   *zap.Logger
	upgrader websocket.Upgrader
	pingWait time.Duration
}

// Option 调整处理器参数。
type Option func(*Handler)

// WithPingWait 设置 WebSocket 在没有任何入站帧时的最长等待时间，心跳间隔为其 9/10。
func WithPingWait(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.pingWait = d
		}
	}
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, p persona.Persona, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		chatSvc: chatSvc,
		persona: p,
		logger:  logger.Named("chat_handler"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pingWait: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/chat/stream", h.handleChatStream)
	r.Get("/chat/ws", h.handleWebSocket)
	r.Get("/history", h.handleHistory)
	r.Get("/history/", h.handleHistory)
	r.Get("/history/{userId}", h.handleHistory)
}

// chatRequest 是 /chat 系列接口的请求体。
type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
	IsGuest bool   `json:"isGuest"`
}

func (p chatRequest) turn() chatService.Turn {
	return chatService.Turn{UserID: p.UserID, Message: p.Message, IsGuest: p.IsGuest}
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, chatService.ErrMissingMessage.Error())
		return
	}

	result, err := h.chatSvc.Reply(r.Context(), payload.turn())
	if err != nil {
		if isTurnValidationError(err) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("chat turn failed", zap.Error(err), zap.Bool("guest", payload.IsGuest))
		utils.RespondError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, chatService.ErrMissingUser.Error())
		return
	}

	entries, err := h.chatSvc.History(r.Context(), userID)
	if err != nil {
		h.logger.Error("load history failed", zap.String("user_id", userID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, msgHistoryError)
		return
	}

	utils.RespondJSON(w, http.StatusOK, entries)
}

func isTurnValidationError(err error) bool {
	return errors.Is(err, chatService.ErrMissingMessage) || errors.Is(err, chatService.ErrMissingUser)
}
