package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shellbridge/shellbridge/internal/server"
	"github.com/shellbridge/shellbridge/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference server",
	Long: `Run the reference server: a Unix socket and HTTP listener (with a
WebSocket upgrade on the HTTP port) hosting the built-in and illustrative
commands, until interrupted.`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().String("http-addr", "127.0.0.1:7032", "HTTP listen address (empty disables HTTP)")
	serveCmd.Flags().Int("max-connections", 100, "Maximum concurrent connections")
	serveCmd.Flags().Float64("rate-limit", 50, "Requests per second per remote address (0 disables)")
	serveCmd.Flags().Int("rate-limit-burst", 100, "Token bucket burst size per remote address")
}

func runServe(cmd *cobra.Command, args []string) {
	socketPath, _ := cmd.Flags().GetString("socket")
	if socketPath == "" {
		socketPath = transport.DefaultSocketPath()
	}
	httpAddr, _ := cmd.Flags().GetString("http-addr")
	maxConns, _ := cmd.Flags().GetInt("max-connections")
	rateLimit, _ := cmd.Flags().GetFloat64("rate-limit")
	rateLimitBurst, _ := cmd.Flags().GetInt("rate-limit-burst")

	cfg := server.DefaultConfig()
	cfg.SocketPath = socketPath
	cfg.HTTPAddr = httpAddr
	cfg.MaxConnections = maxConns
	cfg.RateLimitPerSecond = rateLimit
	cfg.RateLimitBurst = rateLimitBurst

	s := server.New(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}

	fmt.Printf("shellbridge server listening on socket %s", socketPath)
	if httpAddr != "" {
		fmt.Printf(" and http %s", s.HTTPAddr())
	}
	fmt.Println()

	<-ctx.Done()
	log.Println("shutdown signal received...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Println("shutdown complete")
}
