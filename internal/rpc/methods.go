package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oriys/weft/internal/domain"
	"github.com/oriys/weft/internal/ir"
)

// dispatch routes one request to its method implementation. Every method
// is a small wrapper around store/exec/capability/scheduler — the
// transport carries no business logic of its own.
func (s *Server) dispatch(ctx context.Context, sess *session, req Request) Response {
	handler, ok := methods[req.Method]
	if !ok {
		return Response{Error: &Error{Code: errCodeMethod, Message: fmt.Sprintf("rpc: unknown method %q", req.Method)}}
	}
	result, err := handler(s, ctx, sess, req.Params)
	if err != nil {
		return Response{Error: errResult(err)}
	}
	return Response{Result: result}
}

type methodFunc func(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error)

var methods = map[string]methodFunc{
	"ping":          methodPing,
	"login":         methodLogin,
	"get_entity":    methodGetEntity,
	"get_entities":  methodGetEntities,
	"create_entity": methodCreateEntity,
	"update_entity": methodUpdateEntity,
	"delete_entity": methodDeleteEntity,
	"get_verb":      methodGetVerb,
	"get_verbs":     methodGetVerbs,
	"add_verb":      methodAddVerb,
	"update_verb":   methodUpdateVerb,
	"delete_verb":   methodDeleteVerb,
	"call_verb":     methodCallVerb,
	"execute":       methodCallVerb, // execute is call_verb under another name
	"schedule":      methodSchedule,
	"broadcast":     methodBroadcast,
}

func methodPing(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	return "pong", nil
}

type loginParams struct {
	EntityID domain.EntityID `json:"entity_id"`
}

// methodLogin binds a connection to an entity id: subsequent call_verb/
// schedule/broadcast requests on this connection default their caller/actor
// to this id when the request itself doesn't specify one. weft has no
// client-identity system of its own (capabilities are owned by entities,
// not connections), so login is a thin session-affinity convenience, not
// an authentication check.
func methodLogin(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	var p loginParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("rpc: login: %w", err)
	}
	sess.mu.Lock()
	sess.entityID = &p.EntityID
	sess.mu.Unlock()
	return map[string]any{"ok": true, "entity_id": p.EntityID}, nil
}

type entityIDParams struct {
	ID domain.EntityID `json:"id"`
}

func methodGetEntity(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	var p entityIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("rpc: get_entity: %w", err)
	}
	e, err := s.store.GetEntity(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return e.Flatten()
}

type entityIDsParams struct {
	IDs []domain.EntityID `json:"ids"`
}

func methodGetEntities(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	var p entityIDsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("rpc: get_entities: %w", err)
	}
	out := make([]map[string]any, 0, len(p.IDs))
	for _, id := range p.IDs {
		e, err := s.store.GetEntity(ctx, id)
		if err != nil {
			return nil, err
		}
		flat, err := e.Flatten()
		if err != nil {
			return nil, err
		}
		out = append(out, flat)
	}
	return out, nil
}

type createEntityParams struct {
	Props       json.RawMessage  `json:"props"`
	PrototypeID *domain.EntityID `json:"prototype_id,omitempty"`
}

func methodCreateEntity(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	var p createEntityParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("rpc: create_entity: %w", err)
	}
	id, err := s.store.CreateEntity(ctx, p.Props, p.PrototypeID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}

type updateEntityParams struct {
	ID    domain.EntityID `json:"id"`
	Props map[string]any  `json:"props"`
}

func methodUpdateEntity(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	var p updateEntityParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("rpc: update_entity: %w", err)
	}
	if err := s.store.UpdateEntity(ctx, p.ID, p.Props); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func methodDeleteEntity(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	var p entityIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("rpc: delete_entity: %w", err)
	}
	if err := s.store.DeleteEntity(ctx, p.ID); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

type verbLookupParams struct {
	EntityID domain.EntityID `json:"entity_id"`
	Name     string          `json:"name"`
}

func methodGetVerb(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	var p verbLookupParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("rpc: get_verb: %w", err)
	}
	v, err := s.store.GetVerb(ctx, p.EntityID, p.Name)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func methodGetVerbs(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	var p entityIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("rpc: get_verbs: %w", err)
	}
	vs, err := s.store.GetVerbs(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return vs, nil
}

type addVerbParams struct {
	EntityID           domain.EntityID `json:"entity_id"`
	Name               string          `json:"name"`
	Code               ir.SExpr        `json:"code"`
	RequiredCapability *string         `json:"required_capability,omitempty"`
}

func methodAddVerb(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	var p addVerbParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("rpc: add_verb: %w", err)
	}
	id, err := s.store.AddVerb(ctx, p.EntityID, p.Name, p.Code, p.RequiredCapability)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}

type updateVerbParams struct {
	ID   int64    `json:"id"`
	Code ir.SExpr `json:"code"`
}

func methodUpdateVerb(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	var p updateVerbParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("rpc: update_verb: %w", err)
	}
	if err := s.store.UpdateVerb(ctx, p.ID, p.Code); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

type verbIDParams struct {
	ID int64 `json:"id"`
}

func methodDeleteVerb(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	var p verbIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("rpc: delete_verb: %w", err)
	}
	if err := s.store.DeleteVerb(ctx, p.ID); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

type callVerbParams struct {
	EntityID domain.EntityID  `json:"entity_id"`
	Verb     string           `json:"verb"`
	Args     []any            `json:"args"`
	CallerID *domain.EntityID `json:"caller_id,omitempty"`
}

func methodCallVerb(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	var p callVerbParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("rpc: call_verb: %w", err)
	}
	callerID := p.CallerID
	if callerID == nil {
		sess.mu.Lock()
		callerID = sess.entityID
		sess.mu.Unlock()
	}
	return s.exec.ExecuteVerb(ctx, p.EntityID, p.Verb, p.Args, callerID)
}

type scheduleParams struct {
	EntityID domain.EntityID `json:"entity_id"`
	Verb     string          `json:"verb"`
	Args     []any           `json:"args"`
	DelayMS  int64           `json:"delay_ms"`
}

func methodSchedule(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	var p scheduleParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("rpc: schedule: %w", err)
	}
	id, err := s.sched.Schedule(ctx, p.EntityID, p.Verb, p.Args, p.DelayMS)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}

type broadcastParams struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

func methodBroadcast(s *Server, ctx context.Context, sess *session, params json.RawMessage) (any, error) {
	var p broadcastParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("rpc: broadcast: %w", err)
	}
	s.Broadcast(p.Method, p.Params)
	return map[string]any{"ok": true}, nil
}
