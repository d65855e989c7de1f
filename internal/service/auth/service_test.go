package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumi-ajolote/lumi/backend/internal/model/user"
	"github.com/lumi-ajolote/lumi/backend/internal/repository"
)

func newService() *Service {
	return NewService(repository.NewMemoryUserRepo(), nil, WithBcryptCost(bcrypt.MinCost))
}

func validRegistration() user.Registration {
	return user.Registration{
		Email:           "ana@example.com",
		Username:        "Ana",
		Password:        "abcdEFGH",
		ConfirmPassword: "abcdEFGH",
	}
}

func messageOf(t *testing.T, err error) string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Message
}

func TestRegisterThenLogin(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Ana", created.Username)
	assert.True(t, created.ConsentMemory)
	assert.NotEqual(t, "abcdEFGH", created.PasswordHash)

	logged, err := svc.Login(ctx, " ANA@example.com ", "abcdEFGH")
	require.NoError(t, err)
	assert.Equal(t, created.ID, logged.ID)
}

func TestRegisterValidationMessages(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*user.Registration)
		want   string
	}{
		{"missing email", func(r *user.Registration) { r.Email = "" }, "Faltan datos."},
		{"missing confirm", func(r *user.Registration) { r.ConfirmPassword = "" }, "Faltan datos."},
		{"mismatch", func(r *user.Registration) { r.ConfirmPassword = "abcdEFGX" }, "Las contraseñas no coinciden."},
		{"short", func(r *user.Registration) { r.Password, r.ConfirmPassword = "abcDEF", "abcDEF" }, "Debes usar mínimo 8 caracteres, mayúscula y minúscula."},
		{"no upper", func(r *user.Registration) { r.Password, r.ConfirmPassword = "abcdefgh", "abcdefgh" }, "Debes usar mínimo 8 caracteres, mayúscula y minúscula."},
		{"markup only username", func(r *user.Registration) { r.Username = "<b></b>" }, "Faltan datos."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := validRegistration()
			tc.mutate(&reg)
			_, err := newService().Register(context.Background(), reg)
			assert.Equal(t, tc.want, messageOf(t, err))
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	again := validRegistration()
	again.Email = "Ana@Example.com"
	_, err = svc.Register(ctx, again)
	assert.Equal(t, "Ese correo ya está registrado.", messageOf(t, err))
}

func TestRegisterStripsMarkupFromUsername(t *testing.T) {
	reg := validRegistration()
	reg.Username = `<script>alert(1)</script>Ana & Leo`

	created, err := newService().Register(context.Background(), reg)
	require.NoError(t, err)
	assert.Equal(t, "Ana & Leo", created.Username)
}

func TestRegisterPasswordTooLong(t *testing.T) {
	reg := validRegistration()
	reg.Password = "Aa" + strings.Repeat("x", 80)
	reg.ConfirmPassword = reg.Password

	_, err := newService().Register(context.Background(), reg)
	assert.Equal(t, ErrPasswordTooLong.Message, messageOf(t, err))
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	_, wrongPassword := svc.Login(ctx, "ana@example.com", "abcdEFGX")
	_, unknownEmail := svc.Login(ctx, "nadie@example.com", "abcdEFGH")

	assert.Equal(t, "Correo o contraseña incorrectos.", messageOf(t, wrongPassword))
	assert.Equal(t, messageOf(t, wrongPassword), messageOf(t, unknownEmail))
}
