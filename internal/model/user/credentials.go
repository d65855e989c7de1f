package user

import (
	"errors"
	"strings"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var (
	ErrMissingFields    = errors.New("Faltan datos.")
	ErrPasswordMismatch = errors.New("Las contraseñas no coinciden.")
	ErrWeakPassword     = errors.New("Debes usar mínimo 8 caracteres, mayúscula y minúscula.")
)

// Registration carries the fields submitted by the sign-up form.
type Registration struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate checks presence, confirmation and password policy in that order.
// The returned errors carry the user-facing message.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.Username) == "" || r.Password == "" || r.ConfirmPassword == "" {
		return ErrMissingFields
	}
	if r.Password != r.ConfirmPassword {
		return ErrPasswordMismatch
	}
	return ValidatePassword(r.Password)
}

// ValidatePassword enforces ≥8 characters with at least one ASCII lower-case (a-z) and one
// ASCII upper-case (A-Z) letter. Accented letters count toward length only.
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrWeakPassword
	}

	var lower, upper bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		}
	}
	if !lower || !upper {
		return ErrWeakPassword
	}
	return nil
}

// NormalizeEmail trims and lower-cases an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
