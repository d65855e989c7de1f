package reconciler

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition 表示当前状态不允许该操作。
var ErrInvalidTransition = errors.New("invalid session transition")

// Mode 是会话上下文的状态。
type Mode int

const (
	Unauthenticated Mode = iota
	Guest
	Registered
)

func (m Mode) String() string {
	switch m {
	case Guest:
		return "guest"
	case Registered:
		return "registered"
	default:
		return "unauthenticated"
	}
}

// Identity 是注册用户的身份，只在 Registered 状态下有值。
type Identity struct {
	UserID   string
	Username string
}

// Session 是客户端的会话上下文。零值即 Unauthenticated。
type Session struct {
	mode     Mode
	identity Identity
}

// Mode returns the current state.
func (s Session) Mode() Mode { return s.mode }

// Identity returns the registered identity, zero unless Registered.
func (s Session) Identity() Identity { return s.identity }

// InputEnabled reports whether the user may send messages.
func (s Session) InputEnabled() bool { return s.mode != Unauthenticated }

// Login moves Unauthenticated or Guest to Registered.
func (s Session) Login(id Identity) (Session, error) {
	return s.register("login", id)
}

// Register moves Unauthenticated or Guest to Registered.
func (s Session) Register(id Identity) (Session, error) {
	return s.register("register", id)
}

func (s Session) register(op string, id Identity) (Session, error) {
	if s.mode == Registered {
		return s, fmt.Errorf("%s from %s: %w", op, s.mode, ErrInvalidTransition)
	}
	if id.UserID == "" {
		return s, fmt.Errorf("%s without user id: %w", op, ErrInvalidTransition)
	}
	return Session{mode: Registered, identity: id}, nil
}

// ChooseGuest moves Unauthenticated or Guest to Guest.
func (s Session) ChooseGuest() (Session, error) {
	if s.mode == Registered {
		return s, fmt.Errorf("guest from %s: %w", s.mode, ErrInvalidTransition)
	}
	return Session{mode: Guest}, nil
}

// Logout moves Guest or Registered back to Unauthenticated.
func (s Session) Logout() (Session, error) {
	if s.mode == Unauthenticated {
		return s, fmt.Errorf("logout from %s: %w", s.mode, ErrInvalidTransition)
	}
	return Session{}, nil
}
