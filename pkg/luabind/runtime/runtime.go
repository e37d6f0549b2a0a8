// Package runtime installs host builtins into a luabind Interpreter.
//
// Scripts reach the builtins through the __builtin table (logging, JSON, jq,
// UUIDs, a key-value store, environment and time) and load shared modules
// with a global require backed by a storage.FileStore.
package runtime

import (
	"context"
	"errors"
	"log/slog"

	"github.com/haivivi/luabind/pkg/kv"
	"github.com/haivivi/luabind/pkg/luabind"
	"github.com/haivivi/luabind/pkg/storage"
)

// ErrNoStore is returned by require when the runtime has no FileStore.
var ErrNoStore = errors.New("runtime: no module store")

// Runtime holds the host state behind the builtins.
type Runtime struct {
	ctx    context.Context
	in     *luabind.Interpreter
	store  storage.FileStore
	kvs    kv.Store
	logger *slog.Logger

	// loaded caches module results by name; loading marks modules whose
	// chunk is still running.
	loaded  map[string]luabind.Value
	loading map[string]bool
}

// Option is a functional option for configuring Runtime.
type Option func(*Runtime)

// WithContext sets the context used for store and KV access.
func WithContext(ctx context.Context) Option {
	return func(rt *Runtime) {
		rt.ctx = ctx
	}
}

// WithStore sets the module source for require.
func WithStore(store storage.FileStore) Option {
	return func(rt *Runtime) {
		rt.store = store
	}
}

// WithKV sets the store behind the kvs_* builtins. Defaults to an in-memory
// store.
func WithKV(store kv.Store) Option {
	return func(rt *Runtime) {
		rt.kvs = store
	}
}

// WithLogger sets the logger for log and log_error. Defaults to the
// interpreter's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = logger
	}
}

// New creates a Runtime bound to in. Call RegisterBuiltins to expose it.
func New(in *luabind.Interpreter, opts ...Option) *Runtime {
	rt := &Runtime{
		ctx:     context.Background(),
		in:      in,
		loaded:  make(map[string]luabind.Value),
		loading: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.kvs == nil {
		rt.kvs = kv.NewMemory(nil)
	}
	if rt.logger == nil {
		rt.logger = in.Logger()
	}
	return rt
}

// Interpreter returns the interpreter the builtins are installed in.
func (rt *Runtime) Interpreter() *luabind.Interpreter {
	return rt.in
}

// KV returns the store behind the kvs_* builtins.
func (rt *Runtime) KV() kv.Store {
	return rt.kvs
}

// RegisterBuiltins registers the __builtin table and the global require.
func (rt *Runtime) RegisterBuiltins() error {
	builtins := []struct {
		name string
		fn   luabind.Callback
	}{
		{"log", rt.builtinLog},
		{"log_error", rt.builtinLogError},
		{"json_encode", rt.builtinJSONEncode},
		{"json_decode", rt.builtinJSONDecode},
		{"jq", rt.builtinJQ},
		{"uuid", rt.builtinUUID},
		{"kvs_get", rt.builtinKVSGet},
		{"kvs_set", rt.builtinKVSSet},
		{"kvs_del", rt.builtinKVSDel},
		{"kvs_list", rt.builtinKVSList},
		{"env", rt.builtinEnv},
		{"now", rt.builtinNow},
	}
	for _, b := range builtins {
		if err := rt.in.RegisterFunc("__builtin."+b.name, b.fn); err != nil {
			return err
		}
	}
	return rt.in.RegisterFunc("require", rt.builtinRequire)
}
