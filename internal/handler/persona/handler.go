package persona

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lumi-ajolote/lumi/backend/internal/model/persona"
	"github.com/lumi-ajolote/lumi/backend/pkg/utils"
)

// Handler 暴露角色信息，客户端用它显示欢迎语。
type Handler struct {
	personas persona.Store
}

func New(personas persona.Store) *Handler {
	return &Handler{personas: personas}
}

// RegisterRoutes 注册角色相关路由。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/persona", h.handleDefaultPersona)
	r.Get("/personas", h.handleListPersonas)
	r.Get("/personas/{personaId}", h.handleGetPersona)
}

// Response 在角色信息之外附带按用户渲染好的欢迎语。
type Response struct {
	persona.Persona
	Welcome string `json:"welcome"`
}

func newResponse(p persona.Persona, username string) Response {
	welcome := p.OpeningLine
	if username = strings.TrimSpace(username); username != "" && p.Greeting != "" {
		welcome = p.Greet(username)
	}
	return Response{Persona: p, Welcome: welcome}
}

// handleDefaultPersona 返回默认角色，?username= 用于注册用户的欢迎语。
func (h *Handler) handleDefaultPersona(w http.ResponseWriter, r *http.Request) {
	p, ok := persona.Default(h.personas)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "No hay personaje configurado.")
		return
	}
	utils.RespondJSON(w, http.StatusOK, newResponse(p, r.URL.Query().Get("username")))
}

func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	p, ok := h.personas.FindByID(chi.URLParam(r, "personaId"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "Personaje no encontrado.")
		return
	}
	utils.RespondJSON(w, http.StatusOK, newResponse(p, r.URL.Query().Get("username")))
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	items := h.personas.List()
	out := make([]Response, 0, len(items))
	for _, p := range items {
		out = append(out, newResponse(p, ""))
	}
	utils.RespondJSON(w, http.StatusOK, out)
}
