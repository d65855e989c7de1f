package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTransitions(t *testing.T) {
	id := Identity{UserID: "u1", Username: "Luz"}
	unauth := Session{}
	guest, err := unauth.ChooseGuest()
	require.NoError(t, err)
	registered, err := unauth.Login(id)
	require.NoError(t, err)

	tests := []struct {
		name string
		from Session
		op   func(Session) (Session, error)
		want Mode
		ok   bool
	}{
		{"login from unauthenticated", unauth, func(s Session) (Session, error) { return s.Login(id) }, Registered, true},
		{"login from guest", guest, func(s Session) (Session, error) { return s.Login(id) }, Registered, true},
		{"login from registered", registered, func(s Session) (Session, error) { return s.Login(id) }, Registered, false},
		{"register from guest", guest, func(s Session) (Session, error) { return s.Register(id) }, Registered, true},
		{"register from registered", registered, func(s Session) (Session, error) { return s.Register(id) }, Registered, false},
		{"register without id", unauth, func(s Session) (Session, error) { return s.Register(Identity{}) }, Unauthenticated, false},
		{"guest from unauthenticated", unauth, Session.ChooseGuest, Guest, true},
		{"guest from guest", guest, Session.ChooseGuest, Guest, true},
		{"guest from registered", registered, Session.ChooseGuest, Registered, false},
		{"logout from guest", guest, Session.Logout, Unauthenticated, true},
		{"logout from registered", registered, Session.Logout, Unauthenticated, true},
		{"logout from unauthenticated", unauth, Session.Logout, Unauthenticated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := tt.op(tt.from)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, next)
			}
			assert.Equal(t, tt.want, next.Mode())
		})
	}
}

func TestSessionInputAndIdentity(t *testing.T) {
	var s Session
	assert.False(t, s.InputEnabled())
	assert.Equal(t, "unauthenticated", s.Mode().String())

	s, err := s.Register(Identity{UserID: "u1", Username: "Luz"})
	require.NoError(t, err)
	assert.True(t, s.InputEnabled())
	assert.Equal(t, "Luz", s.Identity().Username)

	s, err = s.Logout()
	require.NoError(t, err)
	assert.Equal(t, Identity{}, s.Identity())
}
