package server

import (
	"bufio"
	"net"
	"os"
	"sync"
	"time"

	"github.com/shellbridge/shellbridge/internal/result"
	"github.com/shellbridge/shellbridge/internal/transport"
)

// startUnixListener binds the configured socket path (clearing a stale
// socket file left by a prior crash, the same precaution the teacher's
// socket setup takes) and starts the accept loop in the background.
func (s *Server) startUnixListener() error {
	if _, err := os.Stat(s.cfg.SocketPath); err == nil {
		_ = os.Remove(s.cfg.SocketPath)
	}

	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.cfg.SocketPath, 0600); err != nil {
		_ = ln.Close()
		return err
	}
	s.unixListener = ln

	s.wg.Add(1)
	go s.unixAcceptLoop(ln)
	return nil
}

func (s *Server) unixAcceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if isClosedErr(err) {
				return
			}
			select {
			case <-s.ctx.Done():
				return
			default:
				logServer("accept error: %v", err)
				continue
			}
		}

		if s.cfg.MaxConnections > 0 && int(s.connCount.Load()) >= s.cfg.MaxConnections {
			_ = conn.Close()
			s.rejectCount.Add(1)
			continue
		}
		if !s.limiter.Allow(conn.RemoteAddr().String()) {
			_ = conn.Close()
			s.rejectCount.Add(1)
			continue
		}

		s.connCount.Add(1)
		s.nextConn.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.connCount.Add(-1)
			s.handleUnixConn(conn)
		}()
	}
}

// handleUnixConn serves one Unix-socket client until it disconnects or
// the server shuts down: reads newline-delimited request frames,
// dispatches them through the registry, and forwards Hub pushes back out
// for every topic the connection subscribed to with a "subscribe" command.
func (s *Server) handleUnixConn(conn net.Conn) {
	defer conn.Close()

	var writeMu sync.Mutex
	writeResult := func(res result.CommandResult) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if s.cfg.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		_ = transport.WriteResult(conn, res)
	}
	pushMessage := func(msg result.Message) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if s.cfg.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		_ = transport.WritePush(conn, topicOf(msg), msg.Source, msg.Payload, msg.Metadata)
	}

	cc := newConnContext(s, conn.RemoteAddr().String(), pushMessage)
	defer cc.Close()

	reader := bufio.NewReader(conn)
	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		req, err := transport.ReadRequest(reader)
		if err != nil {
			return
		}

		switch req.Kind {
		case transport.RequestPing:
			writeResult(result.Ok("pong"))
		case transport.RequestSubscribe, transport.RequestUnsubscribe:
			// Connection-level streaming on/off frames are only
			// acknowledged; no per-connection streaming state is kept.
			// Per-topic interest is registered via the "subscribe"/
			// "unsubscribe" commands below.
			writeResult(result.OkWithMessage(nil, "streaming toggled"))
		default:
			writeResult(s.registry.ExecuteWithContext(cc, req.Command))
		}
	}
}

func topicOf(msg result.Message) string {
	if msg.Metadata != nil {
		if t, ok := msg.Metadata["topic"].(string); ok {
			return t
		}
	}
	return msg.Source
}
