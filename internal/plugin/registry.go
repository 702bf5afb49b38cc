// Package plugin implements the C9 plugin registry: a process-wide,
// append-only-after-bootstrap map from "<namespace>.<fn>" host-function
// names to Go closures, installed into every verb's script VM as globals
// named "<ns>_<fn>" by internal/exec. Dynamic libraries are loaded through
// Go's standard plugin.Open/Lookup: a single exported entry point receives
// a registration callback and calls it once per host function the library
// provides.
package plugin

import (
	gostdplugin "plugin"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// HostFunc is a plugin-provided host function. It receives the verb's
// script VM (so it can read its own arguments off the Lua stack and push
// its own return values, exactly as a gopher-lua lua.LGFunction would) and
// the entity id of the caller that is making this call, for capability
// ownership checks.
type HostFunc func(L *lua.LState, callerID int64) int

// RegisterFunc is the callback signature a plugin's init entry point is
// handed.
type RegisterFunc func(qualifiedName string, fn HostFunc)

// InitFunc is the exported symbol every plugin .so must provide, named
// "<Prefix>PluginInit" by convention (LoadPlugin looks up that exact name).
type InitFunc func(register RegisterFunc)

// Registry maps "<namespace>.<fn>" names to host functions. It is safe for
// concurrent reads once bootstrap has finished registering builtins and
// loading .so plugins; Register is expected to be called only during
// process startup — the registry is append-only after bootstrap.
type Registry struct {
	mu      sync.RWMutex
	funcs   map[string]HostFunc
	cleanup []func()
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: map[string]HostFunc{}}
}

// Register adds fn under qualifiedName ("<namespace>.<fn>"), overwriting
// any previous registration of that name.
func (r *Registry) Register(qualifiedName string, fn HostFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[qualifiedName] = fn
}

// Lookup returns the host function registered under qualifiedName, if any.
func (r *Registry) Lookup(qualifiedName string) (HostFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[qualifiedName]
	return fn, ok
}

// All returns a snapshot of every registered name -> function.
func (r *Registry) All() map[string]HostFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]HostFunc, len(r.funcs))
	for k, v := range r.funcs {
		out[k] = v
	}
	return out
}

// LoadPlugin opens the shared object at path, looks up the exported
// "<prefix>PluginInit" symbol, and calls it with a RegisterFunc bound to
// this registry. If the plugin also exports "<prefix>PluginCleanup" (a
// func()), it is recorded and invoked by Close.
func (r *Registry) LoadPlugin(path, prefix string) error {
	p, err := gostdplugin.Open(path)
	if err != nil {
		return err
	}
	initSym, err := p.Lookup(prefix + "PluginInit")
	if err != nil {
		return err
	}
	init, ok := initSym.(func(RegisterFunc))
	if !ok {
		return errBadInitSignature(path, prefix)
	}
	init(r.Register)

	if cleanupSym, err := p.Lookup(prefix + "PluginCleanup"); err == nil {
		if cleanup, ok := cleanupSym.(func()); ok {
			r.cleanup = append(r.cleanup, cleanup)
		}
	}
	return nil
}

// Close calls every loaded plugin's optional cleanup function. Plugin
// lifetime equals process lifetime otherwise; there is no unload.
func (r *Registry) Close() {
	for _, fn := range r.cleanup {
		fn()
	}
}

type initSignatureError struct {
	path, prefix string
}

func (e *initSignatureError) Error() string {
	return "plugin: " + e.path + ": " + e.prefix + "PluginInit has the wrong signature, want func(plugin.RegisterFunc)"
}

func errBadInitSignature(path, prefix string) error {
	return &initSignatureError{path: path, prefix: prefix}
}
