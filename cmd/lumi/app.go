package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/lumi-ajolote/lumi/backend/internal/client"
	"github.com/lumi-ajolote/lumi/backend/internal/model/user"
	"github.com/lumi-ajolote/lumi/backend/internal/reconciler"
)

const helpText = `Comandos:
  /guest                       continuar como invitado
  /login <correo>              iniciar sesión
  /register <correo> <nombre>  crear cuenta
  /logout                      cerrar sesión
  /history                     ver conversaciones por día
  /session <n|fecha|all>       abrir una conversación
  /theme [rose|purple|blue]    ver o cambiar el tema
  /quit                        salir
Cualquier otro texto se envía a Lumi.`

var errQuit = errors.New("quit")

// app 把终端输入翻译成 Reconciler 操作。
type app struct {
	rec          *reconciler.Reconciler
	view         *terminalView
	readPassword func(prompt string) (string, error)
	sessions     []reconciler.SessionSummary
}

// run reads commands until EOF or /quit. Password prompts share in, so it must not read ahead.
func (a *app) run(ctx context.Context, in *bufio.Reader) error {
	a.rec.Start()
	for ctx.Err() == nil {
		line, err := in.ReadString('\n')
		if line != "" {
			if herr := a.handle(ctx, line); herr != nil {
				if errors.Is(herr, errQuit) {
					return nil
				}
				return herr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *app) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		if err := a.rec.Send(ctx, line); err != nil {
			a.report(err)
		}
		return nil
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		a.view.Notice("%s", helpText)
	case "/guest":
		a.report(a.rec.ChooseGuest(ctx))
	case "/login":
		a.login(ctx, args)
	case "/register":
		a.register(ctx, args)
	case "/logout":
		if err := a.rec.Logout(); err != nil {
			a.report(err)
			return nil
		}
		a.sessions = nil
	case "/history":
		a.listSessions()
	case "/session":
		a.selectSession(args)
	case "/theme":
		a.theme(args)
	default:
		a.view.Notice("Comando desconocido: %s (usa /help)", cmd)
	}
	return nil
}

func (a *app) login(ctx context.Context, args []string) {
	if len(args) != 1 {
		a.view.Notice("Uso: /login <correo>")
		return
	}
	password, err := a.readPassword("Contraseña: ")
	if err != nil {
		a.report(err)
		return
	}
	if err := a.rec.Login(ctx, args[0], password); err != nil {
		a.report(err)
		return
	}
	a.sessions = nil
}

func (a *app) register(ctx context.Context, args []string) {
	if len(args) < 2 {
		a.view.Notice("Uso: /register <correo> <nombre>")
		return
	}
	password, err := a.readPassword("Contraseña: ")
	if err != nil {
		a.report(err)
		return
	}
	confirm, err := a.readPassword("Confirma la contraseña: ")
	if err != nil {
		a.report(err)
		return
	}
	reg := user.Registration{
		Email:           args[0],
		Username:        strings.Join(args[1:], " "),
		Password:        password,
		ConfirmPassword: confirm,
	}
	if err := a.rec.Register(ctx, reg); err != nil {
		a.report(err)
		return
	}
	a.sessions = nil
}

func (a *app) listSessions() {
	a.sessions = a.rec.Sessions()
	for i, s := range a.sessions {
		if count := s.CountLabel(); count != "" {
			a.view.Notice("%d. %s · %s · %s", i, s.Label, count, s.Snippet)
			continue
		}
		a.view.Notice("%d. %s · %s", i, s.Label, s.Snippet)
	}
}

func (a *app) selectSession(args []string) {
	if len(args) != 1 {
		a.view.Notice("Uso: /session <n|fecha|all>")
		return
	}
	key := args[0]
	if n, err := strconv.Atoi(key); err == nil {
		if a.sessions == nil {
			a.sessions = a.rec.Sessions()
		}
		if n < 0 || n >= len(a.sessions) {
			a.view.Notice("No existe la conversación %d", n)
			return
		}
		key = a.sessions[n].Key
	}
	a.rec.SelectSession(key)
}

func (a *app) theme(args []string) {
	if len(args) == 0 {
		a.view.Notice("Tema actual: %s", a.rec.Theme())
		return
	}
	if err := a.rec.SetTheme(args[0]); err != nil {
		a.report(err)
		return
	}
	a.view.SetTheme(a.rec.Theme())
	a.view.Notice("Tema cambiado a %s", a.rec.Theme())
}

// report shows server and validation messages verbatim; other errors get a generic line.
func (a *app) report(err error) {
	if err == nil {
		return
	}
	if apiErr, ok := client.AsAPIError(err); ok {
		a.view.Notice("%s", apiErr.Message)
		return
	}
	switch {
	case errors.Is(err, user.ErrMissingFields), errors.Is(err, user.ErrPasswordMismatch), errors.Is(err, user.ErrWeakPassword):
		a.view.Notice("%s", err.Error())
	case errors.Is(err, reconciler.ErrInputDisabled):
		a.view.Notice("Primero elige /login, /register o /guest.")
	case errors.Is(err, reconciler.ErrInvalidTransition):
		a.view.Notice("No puedes hacer eso ahora.")
	case errors.Is(err, reconciler.ErrUnknownTheme):
		a.view.Notice("Tema desconocido, usa: %s", strings.Join(reconciler.Themes, ", "))
	default:
		a.view.Notice("Error: %v", err)
	}
}
