package server

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"

	"github.com/shellbridge/shellbridge/internal/result"
	"github.com/shellbridge/shellbridge/internal/transport"
)

func newTCPListener(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// startHTTPListener registers /execute, /ping, /health, the long-poll
// /stream/start, /stream/stop and /stream/poll endpoints (the six paths
// HTTPTransport talks to), and the /stream WebSocket upgrade endpoint on
// cfg.HTTPAddr.
func (s *Server) startHTTPListener() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/execute", s.handleExecute)
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stream", s.handleWebSocket)
	mux.HandleFunc("/stream/start", s.handleStreamStart)
	mux.HandleFunc("/stream/stop", s.handleStreamStop)
	mux.HandleFunc("/stream/poll", s.handleStreamPoll)

	s.httpServer = &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      s.rateLimited(mux),
		WriteTimeout: s.cfg.WriteTimeout,
		ReadTimeout:  s.cfg.ReadTimeout,
	}

	ln, err := newTCPListener(s.cfg.HTTPAddr)
	if err != nil {
		return err
	}
	s.httpAddr = ln.Addr().String()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logServer("http server error: %v", err)
		}
	}()
	return nil
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		if !s.limiter.Allow(addr) {
			s.rejectCount.Add(1)
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleExecute decodes one request frame from the body and dispatches it
// through the registry, writing the result back as the response body
// regardless of the outcome, matching HTTPTransport.Send's "status is not
// consulted" contract. A request carrying X-Session-Id dispatches against
// that long-poll session's connContext (so "subscribe"/"unsubscribe"
// register against the session's queue); otherwise a throwaway
// non-streaming connContext is used, since plain request/response HTTP
// traffic has nowhere to receive a push anyway.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	req, err := transport.ReadRequest(bufio.NewReader(r.Body))
	if err != nil {
		writeJSON(w, result.Fail("invalid request body: "+err.Error()))
		return
	}

	cc := (*connContext)(nil)
	if sessionID := r.Header.Get("X-Session-Id"); sessionID != "" {
		if sess, ok := s.getSession(sessionID); ok {
			cc = sess.conn
		}
	}
	if cc == nil {
		cc = newConnContext(s, r.RemoteAddr, func(result.Message) {})
		defer cc.Close()
	}

	res := s.registry.ExecuteWithContext(cc, req.Command)
	writeJSON(w, res)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Info())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
