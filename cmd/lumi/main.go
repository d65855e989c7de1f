// Command lumi 是 Lumi 的终端客户端。
package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/lumi-ajolote/lumi/backend/internal/client"
	"github.com/lumi-ajolote/lumi/backend/internal/logger"
	"github.com/lumi-ajolote/lumi/backend/internal/reconciler"
)

var (
	apiURL  string
	dataDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "lumi",
	Short: "Chat with Lumi, the emotional-support axolotl",
	Long: `Terminal client for the Lumi backend.

Choose /guest to chat without an account (the transcript is kept locally),
or /login and /register to keep your history on the server.`,
	SilenceUsage: true,
	RunE:         runLumi,
}

func init() {
	_ = godotenv.Load()

	rootCmd.Flags().StringVar(&apiURL, "api", envOr("LUMI_API", client.DefaultBaseURL), "Lumi backend base URL")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", envOr("LUMI_DATA_DIR", defaultDataDir()), "directory for the local guest transcript and theme")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log client warnings to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runLumi(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := "error"
	if verbose {
		level = "debug"
	}
	zl, err := logger.New(level, true)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	storage, err := reconciler.NewFileStorage(dataDir)
	if err != nil {
		return err
	}
	zl.Debug("local storage ready", zap.String("path", storage.Path()))

	api := client.New(apiURL, &http.Client{Timeout: 90 * time.Second})
	view := newTerminalView(cmd.OutOrStdout(), reconciler.Themes[0])
	rec := reconciler.New(api, storage, view, zl)
	view.SetTheme(rec.Theme())

	in := bufio.NewReader(cmd.InOrStdin())
	a := &app{
		rec:          rec,
		view:         view,
		readPassword: passwordReader(cmd, in),
	}
	view.Notice("Lumi 🌸🦎  (%s) escribe /help para ver los comandos", apiURL)
	return a.run(ctx, in)
}

// passwordReader hides input on a terminal and falls back to a plain line otherwise.
func passwordReader(cmd *cobra.Command, in *bufio.Reader) func(string) (string, error) {
	return func(prompt string) (string, error) {
		fmt.Fprint(cmd.OutOrStdout(), prompt)
		if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			raw, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(cmd.OutOrStdout())
			return string(raw), err
		}
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "lumi")
	}
	return ".lumi"
}
