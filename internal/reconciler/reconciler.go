// Package reconciler 维护终端客户端的会话状态、本地对话快照与服务端历史之间的一致性。
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumi-ajolote/lumi/backend/internal/client"
	"github.com/lumi-ajolote/lumi/backend/internal/model/chat"
	"github.com/lumi-ajolote/lumi/backend/internal/model/user"
)

const (
	GuestWelcome        = "Hola, soy Lumi, tu ajolotito de apoyo emocional 🌸🦎 ¿Cómo te sientes hoy?"
	EmptySessionMessage = "No hay mensajes en esta conversación todavía, pero puedes comenzar cuando quieras 🦎🌸"
	EmptyReplyMessage   = "Lo siento, tuve un problema al responder 😿."
	ConnectionMessage   = "Tuve un problema al conectar con el servidor 😿."
)

var (
	ErrInputDisabled = errors.New("input is disabled until a session is chosen")
	ErrUnknownTheme  = errors.New("unknown theme")
)

// Themes lists the accepted theme names; the first one is the default.
var Themes = []string{"rose", "purple", "blue"}

// RegisteredWelcome greets a registered user whose history is empty.
func RegisteredWelcome(username string) string {
	return fmt.Sprintf("Hola %s, soy Lumi 🌸🦎 ¿Cómo te sientes hoy?", username)
}

// HistoryFailure replaces the transcript when the history fetch fails.
func HistoryFailure(username string) string {
	return fmt.Sprintf("Hola %s, tuve un problema para cargar tu historial, pero podemos seguir platicando desde aquí 🦎💖", username)
}

// Backend 是 Reconciler 依赖的服务端接口，*client.Client 实现了它。
type Backend interface {
	Register(ctx context.Context, reg user.Registration) (client.Account, error)
	Login(ctx context.Context, email, password string) (client.Account, error)
	Chat(ctx context.Context, req client.ChatRequest) (client.ChatReply, error)
	History(ctx context.Context, userID string) ([]chat.Entry, error)
}

// View 接收渲染指令。每次 Render 都是完整重绘。
type View interface {
	Render(lines []chat.Line)
	SetTyping(active bool)
	SetInputEnabled(enabled bool)
}

// Option customises a Reconciler.
type Option func(*Reconciler)

// WithClock replaces time.Now, used for relative date labels and new history entries.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithLocation sets the zone used to split history into days.
func WithLocation(loc *time.Location) Option {
	return func(r *Reconciler) { r.loc = loc }
}

// Reconciler 持有一个客户端的全部会话状态。
type Reconciler struct {
	backend Backend
	storage Storage
	view    View
	logger  *zap.Logger
	now     func() time.Time
	loc     *time.Location

	mu         sync.Mutex
	session    Session
	transcript []chat.Line
	history    []chat.Entry
}

func New(backend Backend, storage Storage, view View, logger *zap.Logger, opts ...Option) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{
		backend: backend,
		storage: storage,
		view:    view,
		logger:  logger,
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start renders the initial Unauthenticated state.
func (r *Reconciler) Start() {
	r.mu.Lock()
	r.session = Session{}
	r.transcript = nil
	r.history = nil
	r.mu.Unlock()
	r.view.Render(nil)
	r.view.SetInputEnabled(false)
}

// Session returns the current session context.
func (r *Reconciler) Session() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Transcript returns a copy of the lines currently shown.
func (r *Reconciler) Transcript() []chat.Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Line(nil), r.transcript...)
}

// ChooseGuest enters guest mode and restores the local snapshot.
func (r *Reconciler) ChooseGuest(ctx context.Context) error {
	r.mu.Lock()
	next, err := r.session.ChooseGuest()
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.session = next
	r.mu.Unlock()

	r.LoadHistory(ctx)
	return nil
}

// Login authenticates and loads the server history.
func (r *Reconciler) Login(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return user.ErrMissingFields
	}
	if err := r.checkCanAuthenticate(); err != nil {
		return err
	}
	account, err := r.backend.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return r.enterRegistered(ctx, account, Session.Login)
}

// Register validates locally, creates the account and loads its (empty) history.
func (r *Reconciler) Register(ctx context.Context, reg user.Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	if err := r.checkCanAuthenticate(); err != nil {
		return err
	}
	account, err := r.backend.Register(ctx, reg)
	if err != nil {
		return err
	}
	return r.enterRegistered(ctx, account, Session.Register)
}

func (r *Reconciler) checkCanAuthenticate() error {
	if r.Session().Mode() == Registered {
		return fmt.Errorf("already registered: %w", ErrInvalidTransition)
	}
	return nil
}

func (r *Reconciler) enterRegistered(ctx context.Context, account client.Account, transition func(Session, Identity) (Session, error)) error {
	r.mu.Lock()
	next, err := transition(r.session, Identity{UserID: account.UserID, Username: account.Username})
	if err != nil {
		r.mu.Unlock()
		return err
	}
	// 访客快照保留在本地存储中，不迁移到注册账号。
	r.session = next
	r.mu.Unlock()

	r.LoadHistory(ctx)
	return nil
}

// Logout clears the transcript and disables input. The guest snapshot stays in storage.
func (r *Reconciler) Logout() error {
	r.mu.Lock()
	next, err := r.session.Logout()
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.session = next
	r.transcript = nil
	r.history = nil
	r.mu.Unlock()

	r.view.Render(nil)
	r.view.SetInputEnabled(false)
	return nil
}

// LoadHistory rebuilds the transcript for the current mode. Failures never escape.
func (r *Reconciler) LoadHistory(ctx context.Context) {
	session := r.Session()

	var (
		lines   []chat.Line
		history []chat.Entry
	)
	switch session.Mode() {
	case Guest:
		lines = r.loadGuestSnapshot()
		if len(lines) == 0 {
			lines = []chat.Line{{From: chat.SpeakerLumi, Text: GuestWelcome}}
		}
	case Registered:
		id := session.Identity()
		entries, err := r.backend.History(ctx, id.UserID)
		switch {
		case err != nil:
			r.logger.Warn("load history failed", zap.String("user_id", id.UserID), zap.Error(err))
			lines = []chat.Line{{From: chat.SpeakerLumi, Text: HistoryFailure(id.Username)}}
		case len(entries) == 0:
			lines = []chat.Line{{From: chat.SpeakerLumi, Text: RegisteredWelcome(id.Username)}}
		default:
			history = entries
			lines = chat.Lines(entries)
		}
	}

	r.mu.Lock()
	if r.session != session {
		r.mu.Unlock()
		return
	}
	r.transcript = lines
	r.history = history
	r.mu.Unlock()

	r.view.Render(append([]chat.Line(nil), lines...))
	r.view.SetInputEnabled(session.InputEnabled())
}

// Send 发送一条消息并把回复追加到对话中。传输失败只体现在对话里，不返回错误。
func (r *Reconciler) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	r.mu.Lock()
	session := r.session
	if !session.InputEnabled() {
		r.mu.Unlock()
		return ErrInputDisabled
	}
	r.transcript = append(r.transcript, chat.Line{From: chat.SpeakerUser, Text: text})
	lines := r.snapshotLocked()
	r.mu.Unlock()
	r.view.Render(lines)

	req := client.ChatRequest{Message: text, IsGuest: session.Mode() == Guest}
	if session.Mode() == Registered {
		req.UserID = session.Identity().UserID
	}

	r.view.SetTyping(true)
	reply, err := r.backend.Chat(ctx, req)
	r.view.SetTyping(false)

	var answer string
	switch {
	case err != nil:
		r.logger.Warn("chat request failed", zap.String("mode", session.Mode().String()), zap.Error(err))
		answer = ConnectionMessage
	case strings.TrimSpace(reply.Reply) == "":
		answer = EmptyReplyMessage
	default:
		answer = reply.Reply
	}

	r.mu.Lock()
	if r.session != session {
		// 会话在请求期间已切换，丢弃这条回复。
		r.mu.Unlock()
		return nil
	}
	r.transcript = append(r.transcript, chat.Line{From: chat.SpeakerLumi, Text: answer})
	if err == nil && session.Mode() == Registered && answer == reply.Reply {
		r.history = append(r.history, chat.Entry{
			UserID:    req.UserID,
			Message:   text,
			Reply:     reply.Reply,
			Emotion:   reply.Emotion,
			CreatedAt: r.now(),
		})
	}
	lines = r.snapshotLocked()
	r.mu.Unlock()
	r.view.Render(lines)
	return nil
}

// snapshotLocked persists the guest transcript and returns a copy for rendering.
func (r *Reconciler) snapshotLocked() []chat.Line {
	lines := append([]chat.Line(nil), r.transcript...)
	if r.session.Mode() == Guest {
		r.saveGuestSnapshot(lines)
	}
	return lines
}

// Sessions lists the day groups of the loaded history.
func (r *Reconciler) Sessions() []SessionSummary {
	r.mu.Lock()
	history := append([]chat.Entry(nil), r.history...)
	r.mu.Unlock()
	return Summaries(history, r.now(), r.loc)
}

// SelectSession renders one day of history, or everything for AllSessionsKey.
func (r *Reconciler) SelectSession(key string) {
	r.mu.Lock()
	var lines []chat.Line
	switch {
	case key == AllSessionsKey && r.session.Mode() == Guest:
		lines = append(lines, r.transcript...)
	case key == AllSessionsKey:
		lines = chat.Lines(r.history)
	default:
		lines = chat.Lines(Partition(r.history, r.loc)[key])
	}
	if len(lines) == 0 {
		lines = []chat.Line{{From: chat.SpeakerLumi, Text: EmptySessionMessage}}
	}
	r.mu.Unlock()
	r.view.Render(lines)
}

// Theme returns the stored theme, falling back to the default.
func (r *Reconciler) Theme() string {
	name, ok, err := r.storage.GetItem(ThemeKey)
	if err != nil {
		r.logger.Warn("read theme failed", zap.Error(err))
		return Themes[0]
	}
	if !ok || !validTheme(name) {
		return Themes[0]
	}
	return name
}

// SetTheme persists a theme name.
func (r *Reconciler) SetTheme(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if !validTheme(name) {
		return fmt.Errorf("%q: %w", name, ErrUnknownTheme)
	}
	return r.storage.SetItem(ThemeKey, name)
}

func validTheme(name string) bool {
	for _, t := range Themes {
		if t == name {
			return true
		}
	}
	return false
}

func (r *Reconciler) loadGuestSnapshot() []chat.Line {
	raw, ok, err := r.storage.GetItem(GuestHistoryKey)
	if err != nil {
		r.logger.Warn("read guest snapshot failed", zap.Error(err))
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var lines []chat.Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		r.logger.Warn("decode guest snapshot failed", zap.Error(err))
		return nil
	}
	return lines
}

func (r *Reconciler) saveGuestSnapshot(lines []chat.Line) {
	raw, err := json.Marshal(lines)
	if err != nil {
		r.logger.Warn("encode guest snapshot failed", zap.Error(err))
		return
	}
	if err := r.storage.SetItem(GuestHistoryKey, string(raw)); err != nil {
		r.logger.Warn("save guest snapshot failed", zap.Error(err))
	}
}
