// ABOUTME: Login, logout, and whoami commands
// ABOUTME: Manage the persisted analyst credential

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/drake-forum/technoshield/internal/guard"
	"github.com/drake-forum/technoshield/internal/session"
)

var (
	loginUsername      string
	loginPasswordStdin bool
)

// stdinIsTerminal reports whether prompts can be shown. Tests replace it.
var stdinIsTerminal = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the access token",
	Long: `Sign in with username and password. The access token is stored in the
credential file and shared by every command and running dashboard.

Without a terminal, pass --username and pipe the password with --password-stdin.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runLogin(ctx, os.Stdout, os.Stdin)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the stored token",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runLogout(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored session",
	Run: func(cmd *cobra.Command, args []string) {
		exitCode := runWhoami(os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")
}

// runLogin authenticates and returns exit code
func runLogin(ctx context.Context, w io.Writer, in io.Reader) int {
	a, err := newApp(slog.Default(), nil)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	defer a.Close()

	username, password, err := readCredentials(in)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if _, err := a.client.Login(ctx, username, password); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if IsJSONOutput() {
		printJSON(w, map[string]string{"status": "authenticated", "username": username})
	} else {
		fmt.Fprintf(w, "Logged in as %s\n", username)
	}
	return 0
}

// readCredentials prompts when attached to a terminal and reads stdin otherwise.
func readCredentials(in io.Reader) (string, string, error) {
	username := loginUsername
	var password string

	if !loginPasswordStdin && stdinIsTerminal() {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Username").
					Value(&username).
					Validate(requireValue("username")),
				huh.NewInput().
					Title("Password").
					EchoMode(huh.EchoModePassword).
					Value(&password).
					Validate(requireValue("password")),
			).Title("Sign in to TechnoShield"),
		).WithTheme(huh.ThemeBase())

		if err := form.Run(); err != nil {
			return "", "", err
		}
		return strings.TrimSpace(username), password, nil
	}

	if username == "" {
		return "", "", errors.New("--username is required without a terminal")
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", "", fmt.Errorf("reading password: %w", err)
	}
	password = strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", "", errors.New("empty password on stdin")
	}
	return username, password, nil
}

func requireValue(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// runLogout clears the session and returns exit code
func runLogout(ctx context.Context, w io.Writer) int {
	a, err := newApp(slog.Default(), nil)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	defer a.Close()

	if err := a.client.Logout(ctx); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if IsJSONOutput() {
		printJSON(w, map[string]string{"status": "unauthenticated"})
	} else {
		fmt.Fprintln(w, "Logged out")
	}
	return 0
}

type whoamiResult struct {
	Status    string     `json:"status"`
	APIURL    string     `json:"api_url"`
	TokenFile string     `json:"token_file"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// runWhoami reports the stored session and returns exit code
func runWhoami(w io.Writer) int {
	a, err := newApp(slog.Default(), nil)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	defer a.Close()

	state := a.store.AuthState()
	result := whoamiResult{
		Status:    state.Status.String(),
		APIURL:    a.cfg.API.URL,
		TokenFile: a.cfg.Session.TokenFile,
	}
	if exp, ok := session.Expiry(state.Token); ok {
		result.ExpiresAt = &exp
	}

	if IsJSONOutput() {
		printJSON(w, result)
	} else {
		fmt.Fprintln(w, formatWhoamiHuman(result))
	}

	if guard.Decide(state) != guard.RenderProtected {
		return 2
	}
	return 0
}

func formatWhoamiHuman(r whoamiResult) string {
	if r.Status != session.StatusAuthenticated.String() {
		return fmt.Sprintf("Not logged in to %s\nRun 'technoshield login' to sign in.", r.APIURL)
	}
	out := fmt.Sprintf("Logged in to %s\nToken file:  %s", r.APIURL, r.TokenFile)
	if r.ExpiresAt != nil {
		out += fmt.Sprintf("\nExpires:     %s (in %s)", r.ExpiresAt.Local().Format(time.RFC1123),
			time.Until(*r.ExpiresAt).Round(time.Minute))
	}
	return out
}
