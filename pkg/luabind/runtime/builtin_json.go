package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/kaptinlin/jsonrepair"

	"github.com/haivivi/luabind/pkg/luabind"
)

// builtinJSONEncode implements __builtin.json_encode(value) -> string
func (rt *Runtime) builtinJSONEncode(_ *luabind.Interpreter, _ luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
	data, err := json.Marshal(luabind.Arg(args, 1).GoValue())
	if err != nil {
		return nil, fmt.Errorf("json_encode: %w", err)
	}
	return []luabind.Value{luabind.String(string(data))}, nil
}

// builtinJSONDecode implements __builtin.json_decode(string) -> value
func (rt *Runtime) builtinJSONDecode(_ *luabind.Interpreter, _ luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
	s, err := luabind.ArgString(args, 1)
	if err != nil {
		return nil, err
	}
	var v any
	if err := unmarshalJSON([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("json_decode: %w", err)
	}
	out, err := luabind.FromGo(v)
	if err != nil {
		return nil, err
	}
	return []luabind.Value{out}, nil
}

// builtinJQ implements __builtin.jq(query, value) -> {results...}
func (rt *Runtime) builtinJQ(_ *luabind.Interpreter, _ luabind.Value, args []luabind.Value) ([]luabind.Value, error) {
	expr, err := luabind.ArgString(args, 1)
	if err != nil {
		return nil, err
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	input, err := jqInput(luabind.Arg(args, 2).GoValue())
	if err != nil {
		return nil, err
	}

	var results []luabind.Value
	iter := query.RunWithContext(rt.ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("jq error: %w", err)
		}
		item, err := luabind.FromGo(v)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return []luabind.Value{luabind.Array(results...)}, nil
}

// jqInput normalizes host data to the types gojq accepts by round-tripping
// through JSON.
func jqInput(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jq input: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("jq input: %w", err)
	}
	return out, nil
}

// unmarshalJSON unmarshals data into v, repairing malformed JSON once
// before giving up.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}
