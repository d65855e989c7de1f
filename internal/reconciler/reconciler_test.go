package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumi-ajolote/lumi/backend/internal/analysis/emotion"
	"github.com/lumi-ajolote/lumi/backend/internal/client"
	"github.com/lumi-ajolote/lumi/backend/internal/model/chat"
	"github.com/lumi-ajolote/lumi/backend/internal/model/user"
)

type fakeBackend struct {
	mu         sync.Mutex
	account    client.Account
	loginErr   error
	history    []chat.Entry
	historyErr error
	reply      client.ChatReply
	chatErr    error
	requests   []client.ChatRequest
	registered int
}

func (f *fakeBackend) Register(_ context.Context, _ user.Registration) (client.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered++
	return f.account, f.loginErr
}

func (f *fakeBackend) Login(_ context.Context, _, _ string) (client.Account, error) {
	return f.account, f.loginErr
}

func (f *fakeBackend) Chat(_ context.Context, req client.ChatRequest) (client.ChatReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.chatErr
}

func (f *fakeBackend) History(_ context.Context, _ string) ([]chat.Entry, error) {
	return f.history, f.historyErr
}

type recordingView struct {
	mu      sync.Mutex
	renders [][]chat.Line
	typing  []bool
	input   []bool
}

func (v *recordingView) Render(lines []chat.Line) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.renders = append(v.renders, lines)
}

func (v *recordingView) SetTyping(active bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.typing = append(v.typing, active)
}

func (v *recordingView) SetInputEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.input = append(v.input, enabled)
}

func (v *recordingView) last() []chat.Line {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.renders) == 0 {
		return nil
	}
	return v.renders[len(v.renders)-1]
}

func (v *recordingView) inputEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.input) > 0 && v.input[len(v.input)-1]
}

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newReconciler(backend *fakeBackend, storage Storage) (*Reconciler, *recordingView) {
	view := &recordingView{}
	r := New(backend, storage, view, zap.NewNop(),
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(time.UTC),
	)
	r.Start()
	return r, view
}

func lumi(text string) chat.Line { return chat.Line{From: chat.SpeakerLumi, Text: text} }
func usr(text string) chat.Line  { return chat.Line{From: chat.SpeakerUser, Text: text} }

func TestStartDisablesInput(t *testing.T) {
	r, view := newReconciler(&fakeBackend{}, NewMemoryStorage())

	assert.Empty(t, view.last())
	assert.False(t, view.inputEnabled())
	assert.ErrorIs(t, r.Send(context.Background(), "hola"), ErrInputDisabled)
}

func TestGuestWelcomeAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	backend := &fakeBackend{reply: client.ChatReply{Reply: "Aquí estoy", Emotion: emotion.Sad}}

	r, view := newReconciler(backend, storage)
	require.NoError(t, r.ChooseGuest(ctx))
	assert.Equal(t, []chat.Line{lumi(GuestWelcome)}, view.last())
	assert.True(t, view.inputEnabled())

	require.NoError(t, r.Send(ctx, "  me siento triste  "))
	want := []chat.Line{lumi(GuestWelcome), usr("me siento triste"), lumi("Aquí estoy")}
	if diff := cmp.Diff(want, view.last()); diff != "" {
		t.Fatalf("transcript mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, backend.requests, 1)
	assert.Equal(t, client.ChatRequest{Message: "me siento triste", IsGuest: true}, backend.requests[0])

	// A fresh client over the same storage restores the snapshot.
	again, againView := newReconciler(backend, storage)
	require.NoError(t, again.ChooseGuest(ctx))
	assert.Equal(t, want, againView.last())
	assert.Equal(t, want, again.Transcript())
}

func TestSendBlankIsNoop(t *testing.T) {
	backend := &fakeBackend{}
	r, view := newReconciler(backend, NewMemoryStorage())
	require.NoError(t, r.ChooseGuest(context.Background()))
	renders := len(view.renders)

	require.NoError(t, r.Send(context.Background(), "   "))
	assert.Empty(t, backend.requests)
	assert.Len(t, view.renders, renders)
	assert.Empty(t, view.typing)
}

func TestSendStopsTypingOnce(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		want    string
	}{
		{"reply", &fakeBackend{reply: client.ChatReply{Reply: "hola", Emotion: emotion.Neutral}}, "hola"},
		{"empty reply", &fakeBackend{}, EmptyReplyMessage},
		{"transport failure", &fakeBackend{chatErr: errors.New("connection refused")}, ConnectionMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, view := newReconciler(tt.backend, NewMemoryStorage())
			require.NoError(t, r.ChooseGuest(context.Background()))

			require.NoError(t, r.Send(context.Background(), "hola"))
			assert.Equal(t, []bool{true, false}, view.typing)
			last := view.last()
			assert.Equal(t, lumi(tt.want), last[len(last)-1])
		})
	}
}

func TestRegisteredLoadsHistory(t *testing.T) {
	ctx := context.Background()
	entries := []chat.Entry{
		{UserID: "u1", Message: "m1", Reply: "r1", Emotion: emotion.Sad, CreatedAt: fixedNow.Add(-48 * time.Hour)},
		{UserID: "u1", Message: "m2", Reply: "r2", Emotion: emotion.Happy, CreatedAt: fixedNow.Add(-time.Hour)},
	}
	backend := &fakeBackend{
		account: client.Account{UserID: "u1", Username: "Luz"},
		history: entries,
		reply:   client.ChatReply{Reply: "r3", Emotion: emotion.Tired},
	}
	r, view := newReconciler(backend, NewMemoryStorage())

	require.NoError(t, r.Login(ctx, "luz@example.com", "abcdEFGH"))
	assert.Equal(t, Registered, r.Session().Mode())
	assert.Equal(t, chat.Lines(entries), view.last())

	require.NoError(t, r.Send(ctx, "m3"))
	assert.Equal(t, client.ChatRequest{UserID: "u1", Message: "m3"}, backend.requests[0])

	sessions := r.Sessions()
	require.Len(t, sessions, 3)
	assert.Equal(t, "Hoy", sessions[1].Label)
	assert.Equal(t, 2, sessions[1].Count)
	assert.Equal(t, "r3", sessions[1].Snippet)
	assert.Equal(t, "08 mar 2025", sessions[2].Label)

	r.SelectSession(sessions[2].Key)
	assert.Equal(t, []chat.Line{usr("m1"), lumi("r1")}, view.last())

	r.SelectSession("2020-01-01")
	assert.Equal(t, []chat.Line{lumi(EmptySessionMessage)}, view.last())

	r.SelectSession(AllSessionsKey)
	assert.Len(t, view.last(), 6)
}

func TestRegisteredEmptyAndFailedHistory(t *testing.T) {
	ctx := context.Background()

	empty := &fakeBackend{account: client.Account{UserID: "u1", Username: "Luz"}}
	r, view := newReconciler(empty, NewMemoryStorage())
	require.NoError(t, r.Login(ctx, "luz@example.com", "abcdEFGH"))
	assert.Equal(t, []chat.Line{lumi(RegisteredWelcome("Luz"))}, view.last())

	failing := &fakeBackend{account: client.Account{UserID: "u1", Username: "Luz"}, historyErr: errors.New("boom")}
	r, view = newReconciler(failing, NewMemoryStorage())
	require.NoError(t, r.Login(ctx, "luz@example.com", "abcdEFGH"))
	assert.Equal(t, []chat.Line{lumi(HistoryFailure("Luz"))}, view.last())
	assert.True(t, view.inputEnabled())
}

func TestRegisterChecksLocallyFirst(t *testing.T) {
	backend := &fakeBackend{account: client.Account{UserID: "u1", Username: "Luz"}}
	r, _ := newReconciler(backend, NewMemoryStorage())

	err := r.Register(context.Background(), user.Registration{
		Email: "luz@example.com", Username: "Luz", Password: "abcdEFGH", ConfirmPassword: "abcdEFGx",
	})
	assert.ErrorIs(t, err, user.ErrPasswordMismatch)
	assert.Zero(t, backend.registered)

	assert.ErrorIs(t, r.Login(context.Background(), "", "x"), user.ErrMissingFields)
}

func TestLoginFailureKeepsSession(t *testing.T) {
	backend := &fakeBackend{loginErr: &client.APIError{Status: 400, Message: "Correo o contraseña incorrectos."}}
	r, _ := newReconciler(backend, NewMemoryStorage())

	err := r.Login(context.Background(), "luz@example.com", "bad")
	apiErr, ok := client.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Correo o contraseña incorrectos.", apiErr.Message)
	assert.Equal(t, Unauthenticated, r.Session().Mode())
}

func TestGuestTranscriptNotMigratedOnLogin(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	backend := &fakeBackend{account: client.Account{UserID: "u1", Username: "Luz"}, reply: client.ChatReply{Reply: "ok"}}
	r, view := newReconciler(backend, storage)

	require.NoError(t, r.ChooseGuest(ctx))
	require.NoError(t, r.Send(ctx, "secreto"))
	require.NoError(t, r.Login(ctx, "luz@example.com", "abcdEFGH"))

	assert.Equal(t, []chat.Line{lumi(RegisteredWelcome("Luz"))}, view.last())
	raw, ok, _ := storage.GetItem(GuestHistoryKey)
	assert.True(t, ok)
	assert.Contains(t, raw, "secreto")

	require.NoError(t, r.Send(ctx, "hola"))
	raw, _, _ = storage.GetItem(GuestHistoryKey)
	assert.NotContains(t, raw, "hola", "registered turns never reach the guest snapshot")
}

func TestLogoutClearsTranscript(t *testing.T) {
	backend := &fakeBackend{account: client.Account{UserID: "u1", Username: "Luz"}}
	r, view := newReconciler(backend, NewMemoryStorage())
	require.NoError(t, r.Login(context.Background(), "luz@example.com", "abcdEFGH"))

	require.NoError(t, r.Logout())
	assert.Empty(t, view.last())
	assert.False(t, view.inputEnabled())
	assert.Empty(t, r.Transcript())
	assert.ErrorIs(t, r.Logout(), ErrInvalidTransition)
}

func TestTheme(t *testing.T) {
	storage := NewMemoryStorage()
	r, _ := newReconciler(&fakeBackend{}, storage)

	assert.Equal(t, "rose", r.Theme())
	require.NoError(t, r.SetTheme(" Purple "))
	assert.Equal(t, "purple", r.Theme())
	assert.ErrorIs(t, r.SetTheme("green"), ErrUnknownTheme)

	require.NoError(t, storage.SetItem(ThemeKey, "neon"))
	assert.Equal(t, "rose", r.Theme())
}
