// Package ipc exposes a local control socket so a shell client can drive
// the assistant without speaking.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	log "log/slog"
)

const SocketPath = "/tmp/cosmo.sock"

// Request is one control command from a local client.
type Request struct {
	Cmd string `json:"cmd"`
	Arg string `json:"arg,omitempty"`
}

// Response reports how the command went.
type Response struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	State   any    `json:"state,omitempty"`
}

// Handler processes one request and produces the reply.
type Handler func(Request) Response

// Server listens on the unix control socket.
type Server struct {
	ln      net.Listener
	handler Handler
}

func NewServer(path string, handler Handler) (*Server, error) {
	if path == "" {
		path = SocketPath
	}
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}

	s := &Server{ln: ln, handler: handler}
	go s.accept()
	return s, nil
}

func (s *Server) Close() error { return s.ln.Close() }

func (s *Server) accept() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		log.Warn("bad control request", "err", err)
		return
	}
	resp := s.handler(req)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		log.Warn("write control response", "err", err)
	}
}

// Send connects to the control socket, sends one request, and returns the
// reply. Used by the shell client.
func Send(path string, req Request) (Response, error) {
	if path == "" {
		path = SocketPath
	}
	conn, err := net.Dial("unix", path)
	if err != nil {
		return Response{}, fmt.Errorf("dial %s: %w", path, err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}
