package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shellbridge/shellbridge/internal/result"
)

// httpSession is the long-poll counterpart to a live Unix/WebSocket
// connection: HTTP has no persistent connection to push onto, so pushed
// messages accumulate in a bounded channel a client drains via repeated
// GETs to /stream/poll, the same shape the Unix/WebSocket listeners get
// for free from a blocking read.
type httpSession struct {
	id   string
	conn *connContext
	msgs chan result.Message
}

const httpSessionQueueSize = 256

func newHTTPSession(id string, s *Server, remoteAddr string) *httpSession {
	sess := &httpSession{id: id, msgs: make(chan result.Message, httpSessionQueueSize)}
	sess.conn = newConnContext(s, remoteAddr, func(msg result.Message) {
		select {
		case sess.msgs <- msg:
		default:
			// Queue full: drop rather than block the publisher.
		}
	})
	return sess
}

func (s *Server) createSession(remoteAddr string) *httpSession {
	id := fmt.Sprintf("%d", s.nextSession.Add(1))
	sess := newHTTPSession(id, s, remoteAddr)
	s.sessionMu.Lock()
	s.sessions[id] = sess
	s.sessionMu.Unlock()
	return sess
}

func (s *Server) getSession(id string) (*httpSession, bool) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) closeSession(id string) {
	s.sessionMu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.sessionMu.Unlock()
	if ok {
		sess.conn.Close()
	}
}

// handleStreamStart creates a long-poll session and returns its id, the
// token a client attaches to /execute (via X-Session-Id) and /stream/poll.
func (s *Server) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	sess := s.createSession(r.RemoteAddr)
	writeJSON(w, map[string]any{"session_id": sess.id})
}

// handleStreamStop tears down a long-poll session, unsubscribing it from
// every topic it held interest in.
func (s *Server) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	if id == "" {
		id = r.Header.Get("X-Session-Id")
	}
	if id != "" {
		s.closeSession(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStreamPoll blocks up to timeout_ms (default 30000) waiting for a
// pushed message on the named session, returning 204 on timeout.
func (s *Server) handleStreamPoll(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	sess, ok := s.getSession(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	timeout := 30 * time.Second
	if ms, err := strconv.Atoi(r.URL.Query().Get("timeout_ms")); err == nil && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-sess.msgs:
		writeJSON(w, msg)
	case <-timer.C:
		w.WriteHeader(http.StatusNoContent)
	case <-r.Context().Done():
	}
}
