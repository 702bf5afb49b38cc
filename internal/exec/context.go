// Package exec implements the per-verb-invocation execution context:
// compiling a verb's IR, running it in a fresh gopher-lua VM with
// this/caller/args injected, bridging host operations (entity ops,
// minting, delegation, recursive verb dispatch, scheduling, plugin calls)
// back into the store/capability/scheduler/plugin packages, and
// persisting this's mutations via a post-run structural diff — all inside
// one nested transaction per invocation.
package exec

import (
	"context"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/oriys/weft/internal/authz"
	"github.com/oriys/weft/internal/capability"
	"github.com/oriys/weft/internal/compiler"
	"github.com/oriys/weft/internal/domain"
	"github.com/oriys/weft/internal/logging"
	"github.com/oriys/weft/internal/luaconv"
	"github.com/oriys/weft/internal/metrics"
	"github.com/oriys/weft/internal/plugin"
	"github.com/oriys/weft/internal/scheduler"
	"github.com/oriys/weft/internal/store"
)

var tracer = otel.Tracer("github.com/oriys/weft/internal/exec")

// Context holds the shared, reference-counted handles (store, capability
// engine, scheduler, authorizer, plugin registry) every verb invocation's
// host bridge needs. Recursive verb calls (via the `call` host op) build
// nested frames that share this same Context rather than forming a
// back-pointer chain into the store.
type Context struct {
	store   *store.Store
	caps    *capability.Engine
	sched   *scheduler.Scheduler
	authz   *authz.Authorizer
	plugins *plugin.Registry
}

// New creates a Context wired to the given subsystems.
func New(s *store.Store, caps *capability.Engine, sched *scheduler.Scheduler, az *authz.Authorizer, plugins *plugin.Registry) *Context {
	return &Context{store: s, caps: caps, sched: sched, authz: az, plugins: plugins}
}

// ExecuteVerb runs name on entityID with args, attributing the call to
// callerID (nil defaults to entityID itself, so a top-level invocation's
// caller is this.id). The whole call —
// including every nested frame a `call` host op enters — runs inside one
// store transaction: a failure anywhere unwinds and rolls back everything.
func (c *Context) ExecuteVerb(ctx context.Context, entityID domain.EntityID, name string, args []any, callerID *domain.EntityID) (result any, err error) {
	ctx, span := tracer.Start(ctx, "execute_verb", oteltrace.WithAttributes(
		attribute.Int64("entity_id", entityID),
		attribute.String("verb", name),
	))
	defer span.End()

	start := time.Now()
	persisted := false

	caller := entityID
	if callerID != nil {
		caller = *callerID
	}

	txErr := c.store.WithTx(ctx, func(ctx context.Context) error {
		entity, err := c.store.GetEntity(ctx, entityID)
		if err != nil {
			if err == store.ErrNotFound {
				return ErrEntityNotFound
			}
			return err
		}
		verb, err := c.store.GetVerb(ctx, entityID, name)
		if err != nil {
			if err == store.ErrNotFound {
				return ErrVerbNotFound
			}
			return err
		}

		source, err := compiler.Compile(verb.Code)
		if err != nil {
			return err
		}

		before, err := entity.Flatten()
		if err != nil {
			return err
		}

		L := lua.NewState()
		defer L.Close()

		if err := L.DoString(compiler.Prelude()); err != nil {
			return &ScriptError{Verb: name, Message: err.Error()}
		}

		thisTable := luaconv.ToLua(L, before).(*lua.LTable)
		L.SetGlobal("__this", thisTable)
		L.SetGlobal("__caller", lua.LNumber(caller))
		L.SetGlobal("__args", luaconv.ToLua(L, anySlice(args)))

		c.installBridge(ctx, L, entityID)

		fn, err := L.LoadString(source)
		if err != nil {
			return &ScriptError{Verb: name, Message: err.Error()}
		}
		L.Push(fn)
		if err := L.PCall(0, 1, nil); err != nil {
			return &ScriptError{Verb: name, Message: err.Error()}
		}
		ret := L.Get(-1)
		L.Pop(1)
		result = luaconv.FromLua(L, ret)

		after := luaconv.FromLua(L, thisTable).(map[string]any)
		delta := diffProps(before, after)
		if len(delta) > 0 {
			if err := c.store.UpdateEntity(ctx, entityID, delta); err != nil {
				return err
			}
			persisted = true
		}
		return nil
	})

	metrics.Default().RecordInvocation(txErr == nil, persisted, time.Since(start))

	sc := oteltrace.SpanContextFromContext(ctx)
	logEntry := &logging.InvocationLog{
		RequestID:  sc.SpanID().String(),
		TraceID:    sc.TraceID().String(),
		SpanID:     sc.SpanID().String(),
		EntityID:   entityID,
		Verb:       name,
		CallerID:   caller,
		DurationMs: time.Since(start).Milliseconds(),
		Success:    txErr == nil,
		Persisted:  persisted,
	}
	if txErr != nil {
		logEntry.Error = txErr.Error()
	}
	logging.Default().Log(logEntry)

	if txErr != nil {
		span.RecordError(txErr)
		span.SetStatus(codes.Error, txErr.Error())
		logging.OpWithTrace(sc.TraceID().String(), sc.SpanID().String()).Warn(
			"verb execution failed", "entity", entityID, "verb", name, "error", txErr)
		return nil, txErr
	}
	return result, nil
}

func anySlice(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}
