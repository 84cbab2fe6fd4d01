// Command shellbridge is the interactive MySQL-style shell and its
// matching reference server: a REPL that talks to a backend over a Unix
// socket, HTTP, or WebSocket, plus a "serve" mode that hosts that backend
// locally for development and testing.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shellbridge/shellbridge/internal/transport"
)

const appName = "shellbridge"

// appVersion can be overridden at build time with -ldflags="-X main.appVersion=x.y.z"
var appVersion = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     appName,
	Short:   "Interactive shell and reference server for a streaming command protocol",
	Version: appVersion,
	Long: `shellbridge is an interactive, MySQL-style REPL over a small
command/response/push protocol, plus a reference server implementing
that protocol.

  - shell:  request/response REPL
  - stream: streaming REPL with subscribe/unsubscribe and push output
  - serve:  run the reference server (Unix socket + HTTP + WebSocket)`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().String("socket", "", "Unix socket path (default: "+transport.DefaultSocketPath()+")")
	rootCmd.PersistentFlags().String("http", "", "HTTP base URL, e.g. http://127.0.0.1:7032 (overrides --socket)")
	rootCmd.PersistentFlags().String("ws", "", "WebSocket URL, e.g. ws://127.0.0.1:7032/stream (overrides --socket and --http)")

	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(serveCmd)

	rootCmd.SetVersionTemplate(versionString())
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionString reports this binary's version plus whatever a running
// server at the resolved endpoint reports for its own uptime, mirroring
// the combined client+daemon version banner convention.
func versionString() string {
	v := fmt.Sprintf("%s v%s\n", appName, appVersion)

	tr := resolveTransportFromFlags(rootCmd)
	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		return v + "server: not running\n"
	}
	defer tr.Disconnect()

	info := tr.GetInfo(ctx)
	v += fmt.Sprintf("server: reachable at %s\n", tr.GetEndpoint())
	if uptime, ok := info["uptime_seconds"]; ok {
		v += fmt.Sprintf("server uptime: %.0fs\n", toFloat(uptime))
	}
	return v
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
