package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/shell"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Start the streaming interactive shell",
	Long: `Start an interactive shell over a streaming transport: commands
other than the built-ins (pause/resume/filter/...) are sent without
waiting for a reply, and pushed messages are printed as they arrive.
Works over --socket, --ws, or --http (long-polled).`,
	Run: runStream,
}

func init() {
	streamCmd.Flags().String("history", defaultHistoryPath(), "History file path (empty disables persistence)")
	streamCmd.Flags().String("session", defaultSessionPath(), "Session state file path (empty disables persistence)")
	streamCmd.Flags().String("prompt", "shellbridge~> ", "Prompt string")
}

func runStream(cmd *cobra.Command, args []string) {
	tr, err := resolveStreamingTransportFromFlags(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to %s: %v\n", tr.GetEndpoint(), err)
		os.Exit(1)
	}
	if err := tr.StartStreaming(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start streaming: %v\n", err)
		tr.Disconnect()
		os.Exit(1)
	}

	historyFile, _ := cmd.Flags().GetString("history")
	sessionFile, _ := cmd.Flags().GetString("session")
	prompt, _ := cmd.Flags().GetString("prompt")

	ss := shell.NewStreaming(tr, prompt, command.NewAliasManager(), historyFile, sessionFile)
	code := ss.Run(ctx)
	tr.Disconnect()
	os.Exit(code)
}
