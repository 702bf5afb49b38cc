// Package rpc implements the JSON-RPC 2.0 over WebSocket transport that
// makes weft a runnable daemon: a thin dispatch layer wrapping
// store/exec/capability/scheduler (ping, get_entity, create_entity,
// call_verb, schedule, ...). The core runtime has no notion of this
// package; it is consumed, never imported back into,
// store/exec/capability/scheduler.
package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/oriys/weft/internal/capability"
	"github.com/oriys/weft/internal/domain"
	"github.com/oriys/weft/internal/exec"
	"github.com/oriys/weft/internal/logging"
	"github.com/oriys/weft/internal/scheduler"
	"github.com/oriys/weft/internal/store"
)

// Request is a JSON-RPC 2.0 request object. ID may be absent (a
// notification) but every method this server exposes is request/reply, so
// a missing ID simply means the caller won't get a matching response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response object.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification is a JSON-RPC 2.0 notification (no id, no reply expected) —
// used for the scheduler's task_completed broadcast and the broadcast
// method.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// Error is a JSON-RPC 2.0 error object. Structure is intentionally
// opaque: every application error collapses to code -32000 with a
// human-readable message, no stable per-case codes.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const errCodeServer = -32000
const errCodeParse = -32700
const errCodeMethod = -32601

func errResult(err error) *Error {
	return &Error{Code: errCodeServer, Message: err.Error()}
}

// Server dispatches JSON-RPC requests against a weft runtime. One Server
// is shared across every WebSocket connection a process accepts.
type Server struct {
	store *store.Store
	exec  *exec.Context
	caps  *capability.Engine
	sched *scheduler.Scheduler

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]*session
}

// session tracks per-connection state login() establishes: the entity id
// subsequent calls on this connection act as, absent an explicit
// caller_id param.
type session struct {
	mu       sync.Mutex
	entityID *domain.EntityID
}

// NewServer creates a Server wired to the given subsystems. CheckOrigin is
// left permissive; the daemon is meant to run behind an
// operator-controlled reverse proxy.
func NewServer(s *store.Store, execCtx *exec.Context, caps *capability.Engine, sched *scheduler.Scheduler) *Server {
	return &Server{
		store: s,
		exec:  execCtx,
		caps:  caps,
		sched: sched,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*session),
	}
}

// ServeHTTP lets a Server be mounted directly as an http.Handler at the
// daemon's WebSocket route (cmd/weftd wires it at /ws).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket connection and serves
// JSON-RPC requests on it until the client disconnects.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Op().Warn("rpc: websocket upgrade failed", "error", err)
		return
	}

	sess := &session{}
	s.mu.Lock()
	s.clients[conn] = sess
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.writeResponse(conn, Response{JSONRPC: "2.0", Error: &Error{Code: errCodeParse, Message: err.Error()}})
			continue
		}

		resp := s.dispatch(ctx, sess, req)
		resp.JSONRPC = "2.0"
		resp.ID = req.ID
		s.writeResponse(conn, resp)
	}
}

func (s *Server) writeResponse(conn *websocket.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Op().Error("rpc: marshal response", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logging.Op().Warn("rpc: write response failed", "error", err)
	}
}

// Broadcast sends a notification to every currently-connected client. Used
// both by the broadcast method (an entity-initiated fanout) and by the
// scheduler's task_completed notifications.
func (s *Server) Broadcast(method string, params any) {
	data, err := json.Marshal(Notification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		logging.Op().Error("rpc: marshal broadcast", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logging.Op().Warn("rpc: broadcast write failed", "error", err)
		}
	}
}

// SchedulerExecFunc adapts exec.Context.ExecuteVerb to scheduler.ExecFunc,
// broadcasting a task_completed notification after every due task,
// success or failure.
func (s *Server) SchedulerExecFunc() scheduler.ExecFunc {
	return func(ctx context.Context, task domain.ScheduledTask) error {
		result, err := s.exec.ExecuteVerb(ctx, task.EntityID, task.Verb, task.Args, nil)
		payload := map[string]any{
			"task_id":   task.ID,
			"entity_id": task.EntityID,
			"verb":      task.Verb,
			"result":    result,
		}
		if err != nil {
			payload["error"] = err.Error()
		}
		s.Broadcast("task_completed", payload)
		return err
	}
}
