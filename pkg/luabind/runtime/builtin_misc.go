package runtime

import (
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/luabind/pkg/luabind"
)

// builtinLog implements __builtin.log(...)
func (rt *Runtime) builtinLog(_ *luabind.Interpreter, _ luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
	rt.logger.Info(joinArgs(args), "source", "script")
	return nil, nil
}

// builtinLogError implements __builtin.log_error(...)
func (rt *Runtime) builtinLogError(_ *luabind.Interpreter, _ luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
	rt.logger.Error(joinArgs(args), "source", "script")
	return nil, nil
}

func joinArgs(args []luabind.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}

// builtinUUID implements __builtin.uuid() -> string
func (rt *Runtime) builtinUUID(_ *luabind.Interpreter, _ luabind.Value, _ []luabind.Value) ([]luabind.Value, error) {
	return []luabind.Value{luabind.String(uuid.New().String())}, nil
}

// builtinEnv implements __builtin.env(name) -> string | nil
func (rt *Runtime) builtinEnv(_ *luabind.Interpreter, _ luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
	name, err := luabind.ArgString(args, 1)
	if err != nil {
		return nil, err
	}
	v, ok := os.LookupEnv(name)
	if !ok {
		return []luabind.Value{luabind.Nil}, nil
	}
	return []luabind.Value{luabind.String(v)}, nil
}

// builtinNow implements __builtin.now() -> unix milliseconds
func (rt *Runtime) builtinNow(_ *luabind.Interpreter, _ luabind.Value, _ []luabind.Value) ([]luabind.Value, error) {
	return []luabind.Value{luabind.Number(float64(time.Now().UnixMilli()))}, nil
}
