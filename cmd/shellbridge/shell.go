package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/shell"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the request/response interactive shell",
	Long: `Start an interactive, MySQL-style shell over a synchronous
request/response transport. Every command blocks until the server
replies; use "stream" instead for subscribe/unsubscribe and push output.`,
	Run: runShell,
}

func init() {
	shellCmd.Flags().String("history", defaultHistoryPath(), "History file path (empty disables persistence)")
	shellCmd.Flags().String("session", defaultSessionPath(), "Session state file path (empty disables persistence)")
	shellCmd.Flags().String("prompt", "shellbridge> ", "Prompt string")
}

func runShell(cmd *cobra.Command, args []string) {
	tr := resolveTransportFromFlags(cmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to %s: %v\n", tr.GetEndpoint(), err)
		os.Exit(1)
	}

	historyFile, _ := cmd.Flags().GetString("history")
	sessionFile, _ := cmd.Flags().GetString("session")
	prompt, _ := cmd.Flags().GetString("prompt")

	s := shell.New(tr, prompt, command.NewAliasManager(), historyFile, sessionFile)
	code := s.Run(ctx)
	tr.Disconnect()
	os.Exit(code)
}

func defaultHistoryPath() string {
	return defaultStateFile("history")
}

func defaultSessionPath() string {
	return defaultStateFile("session.json")
}

// defaultStateFile resolves a per-user state file under XDG_STATE_HOME
// (falling back to ~/.local/state, then the system temp directory),
// mirroring the teacher's default state-path resolution.
func defaultStateFile(name string) string {
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, appName, name)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", appName, name)
	}
	return filepath.Join(os.TempDir(), appName+"-"+name)
}
