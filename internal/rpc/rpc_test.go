package rpc

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	gorillaws "github.com/gorilla/websocket"

	"github.com/oriys/weft/internal/authz"
	"github.com/oriys/weft/internal/capability"
	"github.com/oriys/weft/internal/exec"
	"github.com/oriys/weft/internal/plugin"
	"github.com/oriys/weft/internal/scheduler"
	"github.com/oriys/weft/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store, string) {
	t.Helper()
	s, err := store.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	caps := capability.New(s)
	sched := scheduler.New(s)
	az := authz.New(s)
	reg := plugin.NewRegistry()
	execCtx := exec.New(s, caps, sched, az, reg)

	srv := NewServer(s, execCtx, caps, sched)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	return srv, s, wsURL
}

func dial(t *testing.T, url string) *gorillaws.Conn {
	t.Helper()
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func call(t *testing.T, conn *gorillaws.Conn, id int, method string, params any) Response {
	t.Helper()
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	req := Request{JSONRPC: "2.0", ID: json.RawMessage(mustMarshal(t, id)), Method: method, Params: paramsJSON}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if err := conn.WriteMessage(gorillaws.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, respData, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestPing(t *testing.T) {
	_, _, url := newTestServer(t)
	conn := dial(t, url)

	resp := call(t, conn, 1, "ping", map[string]any{})
	if resp.Error != nil {
		t.Fatalf("ping error: %v", resp.Error)
	}
	if resp.Result != "pong" {
		t.Errorf("ping result = %v, want pong", resp.Result)
	}
}

func TestCreateGetUpdateEntity(t *testing.T) {
	_, _, url := newTestServer(t)
	conn := dial(t, url)

	resp := call(t, conn, 1, "create_entity", map[string]any{"props": map[string]any{"name": "Ada"}})
	if resp.Error != nil {
		t.Fatalf("create_entity error: %v", resp.Error)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("create_entity result = %#v, want map", resp.Result)
	}
	id := result["id"]

	resp = call(t, conn, 2, "get_entity", map[string]any{"id": id})
	if resp.Error != nil {
		t.Fatalf("get_entity error: %v", resp.Error)
	}
	entity, ok := resp.Result.(map[string]any)
	if !ok || entity["name"] != "Ada" {
		t.Errorf("get_entity result = %#v, want name Ada", resp.Result)
	}

	resp = call(t, conn, 3, "update_entity", map[string]any{"id": id, "props": map[string]any{"name": "Grace"}})
	if resp.Error != nil {
		t.Fatalf("update_entity error: %v", resp.Error)
	}

	resp = call(t, conn, 4, "get_entity", map[string]any{"id": id})
	if resp.Error != nil {
		t.Fatalf("get_entity (after update) error: %v", resp.Error)
	}
	entity, _ = resp.Result.(map[string]any)
	if entity["name"] != "Grace" {
		t.Errorf("get_entity after update = %#v, want name Grace", resp.Result)
	}
}

func TestUnknownMethod(t *testing.T) {
	_, _, url := newTestServer(t)
	conn := dial(t, url)

	resp := call(t, conn, 1, "not_a_real_method", map[string]any{})
	if resp.Error == nil {
		t.Fatal("expected an error for an unknown method")
	}
	if resp.Error.Code != errCodeMethod {
		t.Errorf("error code = %d, want %d", resp.Error.Code, errCodeMethod)
	}
}
