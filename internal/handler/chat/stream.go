package chat

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/lumi-ajolote/lumi/backend/pkg/utils"
)

// StreamEvent SSE 事件的数据部分
type StreamEvent struct {
	Content  string `json:"content,omitempty"`
	Persona  string `json:"persona,omitempty"`
	Emotion  string `json:"emotion,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Message  string `json:"message,omitempty"`
}

// handleChatStream 以 SSE 推送回复：start、delta*、message、emotion、end，失败时发送 error。
func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	var payload chatRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Falta el mensaje.")
		return
	}
	turn := payload.turn()
	if err := turn.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	send := func(event string, data StreamEvent) error {
		return utils.SendSSEEvent(w, flusher, event, data)
	}

	if err := send("start", StreamEvent{Persona: h.persona.Name}); err != nil {
		h.logger.Debug("sse client gone", zap.Error(err))
		return
	}

	result, err := h.chatSvc.StreamReply(r.Context(), turn, func(delta string) error {
		return send("delta", StreamEvent{Content: delta})
	})
	if err != nil {
		h.logger.Error("stream turn failed", zap.Error(err), zap.Bool("guest", turn.IsGuest))
		_ = send("error", StreamEvent{Message: msgInternal})
		return
	}

	for _, ev := range []struct {
		name string
		data StreamEvent
	}{
		{"message", StreamEvent{Content: result.Reply}},
		{"emotion", StreamEvent{Emotion: string(result.Emotion)}},
		{"end", StreamEvent{Finished: true}},
	} {
		if err := send(ev.name, ev.data); err != nil {
			h.logger.Debug("sse client gone", zap.Error(err))
			return
		}
	}
}
