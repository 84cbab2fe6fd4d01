package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/result"
)

// HTTPTransport is a request/response Transport that POSTs each command to
// a configured path and treats the response body as the CommandResult
// regardless of status code, per spec §6.1. It also implements
// StreamingTransport via long-polling: StartStreaming opens a server-side
// session, SendAsync/Send attach it via X-Session-Id so subscribe/
// unsubscribe register against it, and Receive polls for queued pushes.
type HTTPTransport struct {
	baseURL     string
	executePath string
	pingPath    string
	healthPath  string
	startPath   string
	stopPath    string
	pollPath    string
	client      *http.Client

	mu        sync.Mutex
	connected bool
	streaming bool
	sessionID string
	onMessage func(result.Message)
}

// NewHTTPTransport builds a transport against baseURL (e.g.
// "http://localhost:8080"), with the conventional /execute, /ping,
// /health, /stream/start, /stream/stop, /stream/poll endpoints. WithPaths
// overrides the first three; the /stream/* paths are fixed.
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		baseURL:     baseURL,
		executePath: "/execute",
		pingPath:    "/ping",
		healthPath:  "/health",
		startPath:   "/stream/start",
		stopPath:    "/stream/stop",
		pollPath:    "/stream/poll",
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *HTTPTransport) WithPaths(execute, ping, health string) *HTTPTransport {
	t.executePath, t.pingPath, t.healthPath = execute, ping, health
	return t
}

func (t *HTTPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = true
	return nil
}

func (t *HTTPTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	return nil
}

func (t *HTTPTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *HTTPTransport) Send(ctx context.Context, cmd command.ParsedCommand) result.CommandResult {
	if !t.IsConnected() {
		return result.Fail("Not connected")
	}

	resp, err := t.postCommand(ctx, cmd)
	if err != nil {
		return result.Fail(fmt.Sprintf("Connection failed: %s", err.Error()))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return result.Fail(fmt.Sprintf("Connection failed: %s", err.Error()))
	}

	var cr result.CommandResult
	// Status is not consulted for execute: the body is the result
	// regardless of HTTP status, per spec.
	if err := json.Unmarshal(data, &cr); err != nil {
		return result.Fail("Invalid JSON response")
	}
	return cr
}

// postCommand POSTs cmd to executePath, attaching the active long-poll
// session id (if any) so the server routes subscribe/unsubscribe against
// the right session. Caller must close the returned response body.
func (t *HTTPTransport) postCommand(ctx context.Context, cmd command.ParsedCommand) (*http.Response, error) {
	body, err := json.Marshal(commandFrame(cmd))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+t.executePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	t.mu.Lock()
	sessionID := t.sessionID
	t.mu.Unlock()
	if sessionID != "" {
		req.Header.Set("X-Session-Id", sessionID)
	}

	return t.client.Do(req)
}

func (t *HTTPTransport) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+t.pingPath, nil)
	if err != nil {
		return false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (t *HTTPTransport) GetInfo(ctx context.Context) map[string]any {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+t.healthPath, nil)
	if err != nil {
		return map[string]any{"transport": "http", "endpoint": t.baseURL}
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return map[string]any{"transport": "http", "endpoint": t.baseURL, "reachable": false}
	}
	defer resp.Body.Close()

	info := map[string]any{"transport": "http", "endpoint": t.baseURL, "status_code": resp.StatusCode}
	var decoded map[string]any
	if json.NewDecoder(resp.Body).Decode(&decoded) == nil {
		for k, v := range decoded {
			info[k] = v
		}
	}
	return info
}

func (t *HTTPTransport) GetEndpoint() string { return t.baseURL }

// SendAsync posts cmd the same way Send does, but discards the response
// body instead of decoding it — there is no response slot to carry a
// result back to in the streaming shell's fire-and-forget model.
func (t *HTTPTransport) SendAsync(ctx context.Context, cmd command.ParsedCommand) error {
	resp, err := t.postCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Receive long-polls /stream/poll for up to timeout, decoding a queued
// push as a Message. A 204 response (server-side timeout), a failed
// request (including the client's own 10s timeout) and an undecodable
// body all surface as (nil, nil), matching the other transports' "nothing
// available" contract. A negative timeout sets no context deadline, but
// the client's 10s timeout still ends the wait.
func (t *HTTPTransport) Receive(timeout time.Duration) (*result.Message, error) {
	t.mu.Lock()
	sessionID := t.sessionID
	t.mu.Unlock()
	if sessionID == "" {
		return nil, fmt.Errorf("not streaming")
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout >= 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout+5*time.Second)
		defer cancel()
	}

	url := fmt.Sprintf("%s%s?session_id=%s&timeout_ms=%d", t.baseURL, t.pollPath, sessionID, timeout.Milliseconds())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var msg result.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, nil
	}
	return &msg, nil
}

func (t *HTTPTransport) OnMessage(cb func(result.Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = cb
}

func (t *HTTPTransport) DispatchMessage(msg result.Message) {
	t.mu.Lock()
	cb := t.onMessage
	t.mu.Unlock()
	if cb != nil {
		cb(msg)
	}
}

// StartStreaming opens a long-poll session on the server; subsequent
// SendAsync/Send calls attach it via X-Session-Id and Receive polls it.
func (t *HTTPTransport) StartStreaming(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+t.startPath, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var decoded struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("invalid stream/start response: %w", err)
	}

	t.mu.Lock()
	t.sessionID = decoded.SessionID
	t.streaming = true
	t.mu.Unlock()
	return nil
}

func (t *HTTPTransport) StopStreaming(ctx context.Context) error {
	t.mu.Lock()
	sessionID := t.sessionID
	t.sessionID = ""
	t.streaming = false
	t.mu.Unlock()
	if sessionID == "" {
		return nil
	}

	url := fmt.Sprintf("%s%s?session_id=%s", t.baseURL, t.stopPath, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func (t *HTTPTransport) IsStreaming() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streaming
}

func (t *HTTPTransport) SupportsStreaming() bool { return true }

var _ Transport = (*HTTPTransport)(nil)
var _ StreamingTransport = (*HTTPTransport)(nil)
