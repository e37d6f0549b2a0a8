package runtime

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/haivivi/luabind/pkg/kv"
	"github.com/haivivi/luabind/pkg/luabind"
	"github.com/haivivi/luabind/pkg/storage"
)

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	in, err := luabind.New()
	if err != nil {
		t.Fatalf("luabind.New() failed: %v", err)
	}
	t.Cleanup(in.Close)
	rt := New(in, opts...)
	if err := rt.RegisterBuiltins(); err != nil {
		t.Fatalf("RegisterBuiltins() failed: %v", err)
	}
	return rt
}

func eval(t *testing.T, rt *Runtime, src string) luabind.Value {
	t.Helper()
	rets, err := rt.Interpreter().Exec("test.lua", src, 1)
	if err != nil {
		t.Fatalf("Exec(%q) failed: %v", src, err)
	}
	return rets[0]
}

// =============================================================================
// JSON
// =============================================================================

func TestJSONEncode(t *testing.T) {
	rt := newRuntime(t)
	got := eval(t, rt, `return __builtin.json_encode({a = 1, b = {1, 2}, c = "x"})`)
	if want := `{"a":1,"b":[1,2],"c":"x"}`; got.Str() != want {
		t.Errorf("json_encode = %s, want %s", got, want)
	}
}

func TestJSONEncodeCyclicTable(t *testing.T) {
	rt := newRuntime(t)
	got := eval(t, rt, `
local t = {n = 1}
t.ka = t
t.kb = t
return __builtin.json_encode(t)
`)
	if want := `{"ka":null,"kb":null,"n":1}`; got.Str() != want {
		t.Errorf("json_encode = %s, want %s", got, want)
	}
}

func TestJSONDecode(t *testing.T) {
	rt := newRuntime(t)
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"object", `local v = __builtin.json_decode('{"name":"box","n":3}') return v.name .. v.n`, "box3"},
		{"array", `local v = __builtin.json_decode('[10, 20]') return tostring(v[2])`, "20"},
		{"repaired", `local v = __builtin.json_decode("{'name': 'fix',}") return v.name`, "fix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval(t, rt, tt.src); got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestJSONDecodeBadArgument(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.Interpreter().Exec("test.lua", `return __builtin.json_decode(42)`, 1)
	if !errors.Is(err, luabind.ErrBadArgument) {
		t.Errorf("error = %v, want ErrBadArgument", err)
	}
}

// =============================================================================
// jq
// =============================================================================

func TestJQ(t *testing.T) {
	rt := newRuntime(t)
	got := eval(t, rt, `
local r = __builtin.jq(".items[] | .n", {items = {{n = 1}, {n = 2}}})
return #r .. ":" .. (r[1] + r[2])
`)
	if got.Str() != "2:3" {
		t.Errorf("jq = %s, want 2:3", got)
	}
}

func TestJQInvalidExpression(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.Interpreter().Exec("test.lua", `return __builtin.jq(".[", {})`, 1)
	if err == nil || !strings.Contains(err.Error(), "invalid jq expression") {
		t.Errorf("error = %v, want invalid jq expression", err)
	}
}

// =============================================================================
// KVS
// =============================================================================

func TestKVS(t *testing.T) {
	store := kv.NewMemory(nil)
	rt := newRuntime(t, WithKV(store))

	eval(t, rt, `
__builtin.kvs_set("lesson:character:health", 28)
__builtin.kvs_set("lesson:character:name", "hero")
__builtin.kvs_set("lesson:unit:stats", {damage = 7, tags = {"a", "b"}})
`)
	if store.Len() != 3 {
		t.Fatalf("store.Len() = %d, want 3", store.Len())
	}

	if got := eval(t, rt, `return __builtin.kvs_get("lesson:character:health")`); got.Int() != 28 {
		t.Errorf("kvs_get health = %s, want 28", got)
	}
	if got := eval(t, rt, `local s = __builtin.kvs_get("lesson:unit:stats") return s.damage .. s.tags[2]`); got.Str() != "7b" {
		t.Errorf("kvs_get stats = %s, want 7b", got)
	}
	if got := eval(t, rt, `return __builtin.kvs_get("lesson:missing")`); !got.IsNil() {
		t.Errorf("kvs_get missing = %s, want nil", got)
	}

	got := eval(t, rt, `
local n = 0
for k, v in pairs(__builtin.kvs_list("lesson:character")) do n = n + 1 end
return n
`)
	if got.Int() != 2 {
		t.Errorf("kvs_list count = %s, want 2", got)
	}

	eval(t, rt, `__builtin.kvs_del("lesson:character:name") __builtin.kvs_set("lesson:character:health", nil)`)
	if store.Len() != 1 {
		t.Errorf("store.Len() after delete = %d, want 1", store.Len())
	}
}

func TestKVSInvalidKey(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.Interpreter().Exec("test.lua", `__builtin.kvs_set("a::b", 1)`, 0)
	if !errors.Is(err, kv.ErrInvalidKey) {
		t.Errorf("error = %v, want ErrInvalidKey", err)
	}
}

// =============================================================================
// Misc
// =============================================================================

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rt := newRuntime(t, WithLogger(logger))

	eval(t, rt, `__builtin.log("hello", 42) __builtin.log_error("bad", true)`)
	out := buf.String()
	if !strings.Contains(out, `level=INFO msg="hello 42"`) {
		t.Errorf("log output missing info line: %s", out)
	}
	if !strings.Contains(out, `level=ERROR msg="bad true"`) {
		t.Errorf("log output missing error line: %s", out)
	}
}

func TestUUIDEnvNow(t *testing.T) {
	t.Setenv("LUABIND_TEST_VAR", "on")
	rt := newRuntime(t)

	if got := eval(t, rt, `return __builtin.uuid()`); len(got.Str()) != 36 {
		t.Errorf("uuid = %q", got)
	}
	if got := eval(t, rt, `return __builtin.uuid() ~= __builtin.uuid()`); !got.Truthy() {
		t.Error("uuid should not repeat")
	}
	if got := eval(t, rt, `return __builtin.env("LUABIND_TEST_VAR")`); got.Str() != "on" {
		t.Errorf("env = %s, want on", got)
	}
	if got := eval(t, rt, `return __builtin.env("LUABIND_TEST_UNSET_VAR")`); !got.IsNil() {
		t.Errorf("env unset = %s, want nil", got)
	}
	if got := eval(t, rt, `return __builtin.now()`); got.Float() < 1.6e12 {
		t.Errorf("now = %s, want unix milliseconds", got)
	}
}

// =============================================================================
// require
// =============================================================================

func moduleStore() storage.FileStore {
	return storage.NewFS(fstest.MapFS{
		"util/math.lua": {Data: []byte(`
local M = {}
function M.add(a, b) return a + b end
return M
`)},
		"counter.lua": {Data: []byte(`
loads = (loads or 0) + 1
return {n = loads}
`)},
		"sideeffect.lua": {Data: []byte(`marker = "set"`)},
		"cycle_a.lua":    {Data: []byte(`return require("cycle_b")`)},
		"cycle_b.lua":    {Data: []byte(`return require("cycle_a")`)},
		"broken.lua":     {Data: []byte(`return {`)},
	})
}

func TestRequire(t *testing.T) {
	rt := newRuntime(t, WithStore(moduleStore()))

	if got := eval(t, rt, `return require("util.math").add(2, 3)`); got.Int() != 5 {
		t.Errorf("util.math.add = %s, want 5", got)
	}
	if !rt.Loaded("util.math") {
		t.Error("util.math should be cached")
	}

	got := eval(t, rt, `
local a = require("counter")
local b = require("counter")
return a == b and loads == 1 and a.n == 1
`)
	if !got.Truthy() {
		t.Error("module should run once and return the cached table")
	}

	if got := eval(t, rt, `return require("sideeffect") == true and marker == "set"`); !got.Truthy() {
		t.Error("module without return value should cache true")
	}
}

func TestRequireErrors(t *testing.T) {
	rt := newRuntime(t, WithStore(moduleStore()))
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing", `require("nope")`, `module "nope" not found`},
		{"traversal", `require("../secret")`, "path traversal"},
		{"absolute", `require("/etc/passwd")`, "path separator"},
		{"empty", `require("")`, "cannot be empty"},
		{"circular", `require("cycle_a")`, "circular dependency"},
		{"compile", `require("broken")`, "broken.lua"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rt.Interpreter().Exec("test.lua", tt.src, 0)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
	if rt.Loaded("cycle_a") || rt.Loaded("broken") {
		t.Error("failed modules must not be cached")
	}
}

func TestRequireNoStore(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.Interpreter().Exec("test.lua", `require("x")`, 0)
	if !errors.Is(err, ErrNoStore) {
		t.Errorf("error = %v, want ErrNoStore", err)
	}
}
