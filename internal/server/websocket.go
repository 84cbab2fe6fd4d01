package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/shellbridge/shellbridge/internal/result"
	"github.com/shellbridge/shellbridge/internal/transport"
)

// wsPushFrame mirrors the unexported pushFrame shape internal/transport's
// WebSocketTransport.Receive expects to decode, since that type isn't
// exported across package boundaries.
type wsPushFrame struct {
	Type      string         `json:"type"`
	Topic     string         `json:"topic,omitempty"`
	Source    string         `json:"source,omitempty"`
	Payload   any            `json:"payload,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logServer("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if s.cfg.MaxConnections > 0 && int(s.connCount.Load()) >= s.cfg.MaxConnections {
		s.rejectCount.Add(1)
		_ = conn.WriteJSON(result.Fail("server at connection limit"))
		return
	}

	s.connCount.Add(1)
	s.nextConn.Add(1)
	defer s.connCount.Add(-1)

	var writeMu sync.Mutex
	pushMessage := func(msg result.Message) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteJSON(wsPushFrame{
			Type:      "message",
			Topic:     topicOf(msg),
			Source:    msg.Source,
			Payload:   msg.Payload,
			Timestamp: msg.Timestamp.Format(time.RFC3339),
			Metadata:  msg.Metadata,
		})
	}

	cc := newConnContext(s, r.RemoteAddr, pushMessage)
	defer cc.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		req, err := transport.DecodeRequestFrame(data)
		if err != nil {
			writeMu.Lock()
			_ = conn.WriteJSON(result.Fail("invalid request frame"))
			writeMu.Unlock()
			continue
		}

		switch req.Kind {
		case transport.RequestPing:
			writeMu.Lock()
			_ = conn.WriteJSON(result.Ok("pong"))
			writeMu.Unlock()
		case transport.RequestSubscribe, transport.RequestUnsubscribe:
			// Connection-level streaming toggle; no reply required, the
			// client only waits on Receive, not a response here.
		default:
			res := s.registry.ExecuteWithContext(cc, req.Command)
			writeMu.Lock()
			_ = conn.WriteJSON(res)
			writeMu.Unlock()
		}
	}
}
