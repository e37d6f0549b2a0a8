package runtime

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/luabind/pkg/kv"
	"github.com/haivivi/luabind/pkg/luabind"
)

func argKey(args []luabind.Value, i int) (kv.Key, error) {
	s, err := luabind.ArgString(args, i)
	if err != nil {
		return nil, err
	}
	return kv.ParseKey(s)
}

// builtinKVSGet implements __builtin.kvs_get(key) -> value | nil
func (rt *Runtime) builtinKVSGet(_ *luabind.Interpreter, _ luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
	key, err := argKey(args, 1)
	if err != nil {
		return nil, err
	}
	data, err := rt.kvs.Get(rt.ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return []luabind.Value{luabind.Nil}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kvs_get %s: %w", key, err)
	}
	v, err := decodeValue(data)
	if err != nil {
		return nil, fmt.Errorf("kvs_get %s: %w", key, err)
	}
	return []luabind.Value{v}, nil
}

// builtinKVSSet implements __builtin.kvs_set(key, value). Setting nil
// deletes the key.
func (rt *Runtime) builtinKVSSet(_ *luabind.Interpreter, _ luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
	key, err := argKey(args, 1)
	if err != nil {
		return nil, err
	}
	v := luabind.Arg(args, 2)
	if v.IsNil() {
		return nil, rt.kvs.Delete(rt.ctx, key)
	}
	data, err := msgpack.Marshal(v.GoValue())
	if err != nil {
		return nil, fmt.Errorf("kvs_set %s: %w", key, err)
	}
	if err := rt.kvs.Set(rt.ctx, key, data); err != nil {
		return nil, fmt.Errorf("kvs_set %s: %w", key, err)
	}
	return nil, nil
}

// builtinKVSDel implements __builtin.kvs_del(key)
func (rt *Runtime) builtinKVSDel(_ *luabind.Interpreter, _ luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
	key, err := argKey(args, 1)
	if err != nil {
		return nil, err
	}
	if err := rt.kvs.Delete(rt.ctx, key); err != nil {
		return nil, fmt.Errorf("kvs_del %s: %w", key, err)
	}
	return nil, nil
}

// builtinKVSList implements __builtin.kvs_list([prefix]) -> {key = value}
func (rt *Runtime) builtinKVSList(_ *luabind.Interpreter, _ luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
	s, err := luabind.OptString(args, 1, "")
	if err != nil {
		return nil, err
	}
	var prefix kv.Key
	if s != "" {
		if prefix, err = kv.ParseKey(s); err != nil {
			return nil, err
		}
	}

	fields := make(map[string]luabind.Value)
	for e, err := range rt.kvs.List(rt.ctx, prefix) {
		if err != nil {
			return nil, fmt.Errorf("kvs_list %s: %w", prefix, err)
		}
		v, err := decodeValue(e.Value)
		if err != nil {
			return nil, fmt.Errorf("kvs_list %s: %w", e.Key, err)
		}
		fields[e.Key.String()] = v
	}
	return []luabind.Value{luabind.Record(fields)}, nil
}

func decodeValue(data []byte) (luabind.Value, error) {
	var v any
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return luabind.Nil, err
	}
	return luabind.FromGo(v)
}
