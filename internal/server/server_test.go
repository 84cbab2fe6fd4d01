package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/result"
	"github.com/shellbridge/shellbridge/internal/transport"
)

func newTestServer(t *testing.T) (*Server, func()) {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		SocketPath:         filepath.Join(dir, "test.sock"),
		HTTPAddr:           "127.0.0.1:0",
		MaxConnections:     10,
		RateLimitPerSecond: 0, // disabled for deterministic tests
		RateLimitBurst:     0,
		WriteTimeout:       5 * time.Second,
	}
	s := New(cfg)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	}
	return s, stop
}

func TestServer_HTTPPingAndHealth(t *testing.T) {
	s, stop := newTestServer(t)
	defer stop()

	resp, err := http.Get("http://" + s.HTTPAddr() + "/ping")
	if err != nil {
		t.Fatalf("GET /ping error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	resp2, err := http.Get("http://" + s.HTTPAddr() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp2.Body.Close()
	var info map[string]any
	if err := json.NewDecoder(resp2.Body).Decode(&info); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if _, ok := info["uptime_seconds"]; !ok {
		t.Errorf("health response missing uptime_seconds: %+v", info)
	}
}

func TestServer_HTTPExecutePing(t *testing.T) {
	s, stop := newTestServer(t)
	defer stop()

	body, _ := json.Marshal(map[string]any{"type": "command", "command": "ping"})
	resp, err := http.Post("http://"+s.HTTPAddr()+"/execute", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /execute error = %v", err)
	}
	defer resp.Body.Close()

	var res result.CommandResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !res.Success || res.Data != "pong" {
		t.Errorf("result = %+v", res)
	}
}

func TestServer_HTTPExecuteUnknownCommand(t *testing.T) {
	s, stop := newTestServer(t)
	defer stop()

	body, _ := json.Marshal(map[string]any{"type": "command", "command": "nope"})
	resp, err := http.Post("http://"+s.HTTPAddr()+"/execute", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /execute error = %v", err)
	}
	defer resp.Body.Close()

	var res result.CommandResult
	_ = json.NewDecoder(resp.Body).Decode(&res)
	if res.Success || res.Error == nil {
		t.Errorf("expected failure result, got %+v", res)
	}
}

func TestServer_UnixTransportRoundTrip(t *testing.T) {
	s, stop := newTestServer(t)
	defer stop()

	tr := transport.NewUnixTransport(s.SocketPath())
	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer tr.Disconnect()

	res := tr.Send(ctx, parsedCommand("echo", "hi", "there"))
	if !res.Success || res.Data != "hi there" {
		t.Errorf("Send(echo) = %+v", res)
	}
}

func TestServer_UnixSubscribeAndPublish(t *testing.T) {
	s, stop := newTestServer(t)
	defer stop()

	tr := transport.NewUnixTransport(s.SocketPath())
	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer tr.Disconnect()

	if err := tr.StartStreaming(ctx); err != nil {
		t.Fatalf("StartStreaming() error = %v", err)
	}
	if err := tr.SendAsync(ctx, parsedCommand("subscribe", "echo")); err != nil {
		t.Fatalf("SendAsync(subscribe) error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if err := tr.SendAsync(ctx, parsedCommand("echo", "ping")); err != nil {
		t.Fatalf("SendAsync(echo) error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var lastMsg *result.Message
	for time.Now().Before(deadline) {
		msg, err := tr.Receive(200 * time.Millisecond)
		if err != nil {
			t.Fatalf("Receive() error = %v", err)
		}
		if msg != nil {
			lastMsg = msg
			if msg.Source == "echo" {
				break
			}
		}
	}
	if lastMsg == nil {
		t.Fatal("expected at least one pushed message")
	}
}

func TestServer_HTTPSubscribeAndPublish(t *testing.T) {
	s, stop := newTestServer(t)
	defer stop()

	tr := transport.NewHTTPTransport("http://" + s.HTTPAddr())
	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer tr.Disconnect()

	if err := tr.StartStreaming(ctx); err != nil {
		t.Fatalf("StartStreaming() error = %v", err)
	}
	if !tr.IsStreaming() {
		t.Fatal("IsStreaming() = false after StartStreaming")
	}
	if err := tr.SendAsync(ctx, parsedCommand("subscribe", "echo")); err != nil {
		t.Fatalf("SendAsync(subscribe) error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if err := tr.SendAsync(ctx, parsedCommand("echo", "ping")); err != nil {
		t.Fatalf("SendAsync(echo) error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var lastMsg *result.Message
	for time.Now().Before(deadline) {
		msg, err := tr.Receive(200 * time.Millisecond)
		if err != nil {
			t.Fatalf("Receive() error = %v", err)
		}
		if msg != nil {
			lastMsg = msg
			if msg.Source == "echo" {
				break
			}
		}
	}
	if lastMsg == nil {
		t.Fatal("expected at least one pushed message")
	}

	if err := tr.StopStreaming(ctx); err != nil {
		t.Fatalf("StopStreaming() error = %v", err)
	}
	if tr.IsStreaming() {
		t.Error("IsStreaming() = true after StopStreaming")
	}
}

func TestServer_RateLimitRejectsBurst(t *testing.T) {
	dir := os.TempDir()
	cfg := Config{
		SocketPath:         filepath.Join(dir, "ratelimit-test.sock"),
		HTTPAddr:           "127.0.0.1:0",
		RateLimitPerSecond: 1,
		RateLimitBurst:     1,
	}
	s := New(cfg)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	}()

	ok := 0
	rejected := 0
	for i := 0; i < 5; i++ {
		resp, err := http.Get("http://" + s.HTTPAddr() + "/ping")
		if err != nil {
			t.Fatalf("GET /ping error = %v", err)
		}
		if resp.StatusCode == http.StatusOK {
			ok++
		} else if resp.StatusCode == http.StatusTooManyRequests {
			rejected++
		}
		resp.Body.Close()
	}
	if rejected == 0 {
		t.Errorf("expected at least one rate-limited response out of 5, ok=%d rejected=%d", ok, rejected)
	}
}

func parsedCommand(name string, args ...string) command.ParsedCommand {
	return command.ParsedCommand{Command: name, Arguments: args}
}
