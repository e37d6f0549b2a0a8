package runtime

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/haivivi/luabind/pkg/luabind"
	"github.com/haivivi/luabind/pkg/storage"
)

// builtinRequire implements require(name) -> module
//
// Module "a.b" is read from "a/b.lua" in the store, run once, and its first
// return value is cached. A module that returns nothing caches true.
func (rt *Runtime) builtinRequire(in *luabind.Interpreter, _ luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
	name, err := luabind.ArgString(args, 1)
	if err != nil {
		return nil, err
	}
	if err := validateModuleName(name); err != nil {
		return nil, err
	}
	if v, ok := rt.loaded[name]; ok {
		return []luabind.Value{v}, nil
	}
	if rt.loading[name] {
		return nil, fmt.Errorf("require: circular dependency on module %q", name)
	}
	if rt.store == nil {
		return nil, fmt.Errorf("require %q: %w", name, ErrNoStore)
	}

	path := modulePath(name)
	src, err := storage.ReadFile(rt.ctx, rt.store, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("require: module %q not found", name)
		}
		return nil, fmt.Errorf("require %q: %w", name, err)
	}

	rt.loading[name] = true
	defer delete(rt.loading, name)

	rt.logger.Debug("require: loading module", "module", name, "path", path)
	rets, err := in.Exec(path, string(src), 1)
	if err != nil {
		return nil, err
	}
	mod := rets[0]
	if mod.IsNil() {
		mod = luabind.Bool(true)
	}
	rt.loaded[name] = mod
	return []luabind.Value{mod}, nil
}

// Loaded reports whether module name has been required successfully.
func (rt *Runtime) Loaded(name string) bool {
	_, ok := rt.loaded[name]
	return ok
}

func modulePath(name string) string {
	return strings.ReplaceAll(name, ".", "/") + ".lua"
}

// validateModuleName rejects names that could escape the module store.
func validateModuleName(name string) error {
	if name == "" {
		return fmt.Errorf("require: module name cannot be empty")
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("require: module name %q contains path traversal sequence", name)
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return fmt.Errorf("require: module name %q starts with path separator", name)
	}
	return nil
}
