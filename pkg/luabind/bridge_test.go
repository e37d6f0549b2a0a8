package luabind

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const unitScript = `
function applyDamage(a, b)
  b.dealtDamage(a.getDamage())
end

function colonDamage(a, b)
  b:dealtDamage(a:getDamage())
end

function both(u)
  return u:getDamage(), u.getDamage()
end

function hit(u)
  return u.getDamage()
end

function ident(x)
  return x
end

function same(a, b)
  return rawequal(a, b)
end

function handlesEqual(a, b)
  return a == b
end
`

// unitOf recovers the Unit part of a Unit or Character receiver.
func unitOf(in *Interpreter, recv Value) (*unit, error) {
	ref, tag, ok := in.TryUnwrap(recv, "Character", "Unit")
	if !ok {
		return nil, ErrTypeMismatch
	}
	if tag == "Character" {
		return &ref.(*character).unit, nil
	}
	return ref.(*unit), nil
}

func registerUnit(t *testing.T, in *Interpreter) {
	t.Helper()
	err := in.Registry().RegisterMethods("Unit", map[string]Callback{
		"getDamage": func(in *Interpreter, recv Value, _ []Value) ([]Value, error) {
			u, err := unitOf(in, recv)
			if err != nil {
				return nil, err
			}
			return []Value{Int(u.damage)}, nil
		},
		"dealtDamage": func(in *Interpreter, recv Value, args []Value) ([]Value, error) {
			u, err := unitOf(in, recv)
			if err != nil {
				return nil, err
			}
			n, err := ArgInt(args, 1)
			if err != nil {
				return nil, err
			}
			u.health -= n
			return nil, nil
		},
		"health": func(in *Interpreter, recv Value, args []Value) ([]Value, error) {
			u, err := unitOf(in, recv)
			if err != nil {
				return nil, err
			}
			if len(args) > 0 {
				n, err := ArgInt(args, 1)
				if err != nil {
					return nil, err
				}
				u.health = n
			}
			return []Value{Int(u.health)}, nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterMethods failed: %v", err)
	}
}

func newUnitInterp(t *testing.T, opts ...Option) *Interpreter {
	t.Helper()
	in := newTestInterp(t, opts...)
	registerUnit(t, in)
	if err := in.LoadString("unit.lua", unitScript); err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	return in
}

// =============================================================================
// Host -> Script
// =============================================================================

func TestCallMultipleReturns(t *testing.T) {
	in := newTestInterp(t)
	err := in.LoadString("functions.lua", `
function multi(x, y, z)
  return x + y, y + z, x + z
end
function one() return 1 end
function many() return 1, 2, 3, 4 end
`)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}

	rets, err := in.Call("multi", 3, Int(1), Int(3), Int(5))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	want := []int{4, 8, 6}
	if len(rets) != len(want) {
		t.Fatalf("got %d results, want %d", len(rets), len(want))
	}
	for i, w := range want {
		if rets[i].Int() != w {
			t.Errorf("result %d = %v, want %d", i, rets[i], w)
		}
	}

	tests := []struct {
		name string
		fn   string
		nret int
		want []string
	}{
		{"pad with nil", "one", 3, []string{"1", "nil", "nil"}},
		{"truncate", "many", 2, []string{"1", "2"}},
		{"multret", "many", MultRet, []string{"1", "2", "3", "4"}},
		{"no results", "many", 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rets, err := in.Call(tt.fn, tt.nret)
			if err != nil {
				t.Fatalf("Call failed: %v", err)
			}
			got := make([]string, len(rets))
			for i, r := range rets {
				got[i] = r.String()
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Call(%s, %d) = %v, want %v", tt.fn, tt.nret, got, tt.want)
			}
		})
	}

	if _, err := in.Call("many", -5); !errors.Is(err, ErrBadArgument) {
		t.Errorf("negative nret error = %v, want ErrBadArgument", err)
	}
	if top := in.State().GetTop(); top != 0 {
		t.Errorf("stack top = %d after calls, want 0", top)
	}
}

func TestCallDottedPath(t *testing.T) {
	in := newTestInterp(t)
	err := in.LoadString("nested.lua", `
functions = {
  computation = {
    compute = function(x) return x * 2 end,
  },
}
`)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}

	rets, err := in.Call("functions.computation.compute", 1, Int(21))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if rets[0].Int() != 42 {
		t.Errorf("compute(21) = %v, want 42", rets[0])
	}

	for _, name := range []string{"functions.computation", "functions.missing.compute", "functions..compute", ""} {
		if _, err := in.Call(name, 1); !errors.Is(err, ErrNotCallable) {
			t.Errorf("Call(%q) error = %v, want ErrNotCallable", name, err)
		}
	}
}

func TestCallNotFound(t *testing.T) {
	in := newUnitInterp(t)
	a := &unit{damage: 12, health: 30}
	if err := in.Expose("hero", a, "Unit"); err != nil {
		t.Fatalf("Expose failed: %v", err)
	}
	if err := in.LoadString("globals.lua", `x = 5`); err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}

	for _, name := range []string{"doesNotExist", "x", "x.y", "hero"} {
		rets, err := in.Call(name, 1, in.Wrap(a, "Unit"))
		if !errors.Is(err, ErrNotCallable) {
			t.Errorf("Call(%q) error = %v, want ErrNotCallable", name, err)
		}
		if rets != nil {
			t.Errorf("Call(%q) returned %v", name, rets)
		}
	}
	if a.health != 30 || a.damage != 12 {
		t.Errorf("unit changed: %+v", *a)
	}
	if in.IsCallable("doesNotExist") || !in.IsCallable("applyDamage") {
		t.Error("IsCallable reported wrong result")
	}
}

func TestCallScriptError(t *testing.T) {
	in := newTestInterp(t)
	err := in.LoadString("broken.lua", `
function broken(x)
  return x.field
end
function raises()
  error("boom")
end
`)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}

	_, err = in.Call("broken", 1, Int(3))
	var se *ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("Call error = %v (%T), want *ScriptError", err, err)
	}
	if !errors.Is(err, ErrScriptRuntime) {
		t.Error("ScriptError should match ErrScriptRuntime")
	}
	if se.Func != "broken" || se.Message == "" {
		t.Errorf("ScriptError = %+v", se)
	}

	_, err = in.Call("raises", 0)
	if !errors.As(err, &se) || !strings.Contains(se.Message, "boom") {
		t.Errorf("Call(raises) error = %v", err)
	}

	// The interpreter stays usable.
	rets, err := in.Exec("after.lua", "return 1 + 1", 1)
	if err != nil || rets[0].Int() != 2 {
		t.Errorf("Exec after error = %v, %v", rets, err)
	}
}

// =============================================================================
// Script -> Host
// =============================================================================

func TestApplyDamage(t *testing.T) {
	for _, fn := range []string{"applyDamage", "colonDamage"} {
		t.Run(fn, func(t *testing.T) {
			in := newUnitInterp(t)
			a := &unit{damage: 12, health: 30}
			b := &unit{damage: 7, health: 40}

			if _, err := in.Call(fn, 0, in.Wrap(a, "Unit"), in.Wrap(b, "Unit")); err != nil {
				t.Fatalf("Call failed: %v", err)
			}
			if b.health != 28 {
				t.Errorf("b.health = %d, want 28", b.health)
			}
			if a.health != 30 {
				t.Errorf("a.health = %d, want 30", a.health)
			}
		})
	}
}

func TestDotAndColonCalls(t *testing.T) {
	in := newUnitInterp(t)
	rets, err := in.Call("both", 2, in.Wrap(&unit{damage: 12}, "Unit"))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if rets[0].Int() != 12 || rets[1].Int() != 12 {
		t.Errorf("both = %v, %v, want 12, 12", rets[0], rets[1])
	}
}

func TestReceiverAsFirstArgument(t *testing.T) {
	in := newTestInterp(t)
	var got [][]Value
	in.Register("Unit", "record", func(_ *Interpreter, _ Value, args []Value) ([]Value, error) {
		got = append(got, args)
		return nil, nil
	})
	in.LoadString("self.lua", `
function calls(a, b)
  a.record(a)
  a.record(b)
  a:record(a)
end
`)
	a := in.Wrap(&unit{}, "Unit")
	b := in.Wrap(&unit{}, "Unit")
	if _, err := in.Call("calls", 0, a, b); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	// Passing the receiver itself first reads as a colon call, so it is
	// not repeated in args. A different handle of the same tag is kept.
	wantLens := []int{0, 1, 1}
	if len(got) != len(wantLens) {
		t.Fatalf("got %d calls, want %d", len(got), len(wantLens))
	}
	for i, n := range wantLens {
		if len(got[i]) != n {
			t.Errorf("call %d: %d args, want %d", i, len(got[i]), n)
		}
	}
}

func TestFallbackDispatch(t *testing.T) {
	in := newUnitInterp(t)
	if err := in.SetFallback("Character", "Unit"); err != nil {
		t.Fatalf("SetFallback failed: %v", err)
	}
	in.Register("Character", "name", func(in *Interpreter, recv Value, _ []Value) ([]Value, error) {
		c, err := UnwrapAs[*character](in, recv, "Character")
		if err != nil {
			return nil, err
		}
		return []Value{String(c.name)}, nil
	})

	_, owner, err := in.Registry().Resolve("Character", "getDamage")
	if err != nil || owner != "Unit" {
		t.Fatalf("Resolve(Character, getDamage) = %q, %v", owner, err)
	}

	c := &character{unit: unit{damage: 9, health: 50}, name: "knight"}
	b := &unit{damage: 1, health: 20}
	if _, err := in.Call("applyDamage", 0, in.Wrap(c, "Character"), in.Wrap(b, "Unit")); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if b.health != 11 {
		t.Errorf("b.health = %d, want 11", b.health)
	}

	if err := in.SetGlobal("knight", in.Wrap(c, "Character")); err != nil {
		t.Fatalf("SetGlobal failed: %v", err)
	}
	rets, err := in.Exec("name.lua", "return knight:name(), knight:health()", 2)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if rets[0].Str() != "knight" || rets[1].Int() != 50 {
		t.Errorf("knight = %v, %v", rets[0], rets[1])
	}

	// A plain Unit does not inherit Character methods.
	in.SetGlobal("grunt", in.Wrap(b, "Unit"))
	if _, err := in.Exec("grunt.lua", "return grunt:name()", 1); !errors.Is(err, ErrMethodNotFound) {
		t.Errorf("Unit:name() error = %v, want ErrMethodNotFound", err)
	}
}

func TestHostInvoke(t *testing.T) {
	in := newUnitInterp(t)
	in.SetFallback("Character", "Unit")
	c := &character{unit: unit{damage: 4, health: 10}}

	rets, err := in.Invoke(in.Wrap(c, "Character"), "health", Int(99))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if rets[0].Int() != 99 || c.health != 99 {
		t.Errorf("health = %v, c.health = %d", rets[0], c.health)
	}
	if _, err := in.Invoke(in.Wrap(c, "Character"), "fly"); !errors.Is(err, ErrMethodNotFound) {
		t.Errorf("Invoke(fly) error = %v, want ErrMethodNotFound", err)
	}
	if _, err := in.Invoke(Int(1), "health"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Invoke on number error = %v, want ErrTypeMismatch", err)
	}
}

func TestHandleRoundTrip(t *testing.T) {
	in := newUnitInterp(t)
	u := &unit{damage: 3}
	v := in.Wrap(u, "Unit")

	rets, err := in.Call("ident", 1, v)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	ref, err := in.Unwrap(rets[0], "Unit")
	if err != nil {
		t.Fatalf("Unwrap failed: %v", err)
	}
	if ref.(*unit) != u {
		t.Error("handle did not survive the round trip")
	}

	// A value read back from the script is the same script object.
	rets2, err := in.Call("same", 1, rets[0], rets[0])
	if err != nil || !rets2[0].Truthy() {
		t.Errorf("same(x, x) = %v, %v", rets2, err)
	}

	// Separately wrapped handles to one object compare equal.
	rets3, err := in.Call("handlesEqual", 1, in.Wrap(u, "Unit"), in.Wrap(u, "Unit"))
	if err != nil || !rets3[0].Truthy() {
		t.Errorf("handlesEqual = %v, %v", rets3, err)
	}
	rets4, err := in.Call("handlesEqual", 1, in.Wrap(u, "Unit"), in.Wrap(&unit{}, "Unit"))
	if err != nil || rets4[0].Truthy() {
		t.Errorf("handlesEqual(different) = %v, %v", rets4, err)
	}
}

func TestCallbackErrorCause(t *testing.T) {
	in := newUnitInterp(t)

	// getDamage on a string receiver fails inside the callback.
	in.SetGlobal("fake", String("not a unit"))
	err := in.RegisterFunc("damageOf", func(in *Interpreter, _ Value, args []Value) ([]Value, error) {
		u, err := unitOf(in, Arg(args, 1))
		if err != nil {
			return nil, err
		}
		return []Value{Int(u.damage)}, nil
	})
	if err != nil {
		t.Fatalf("RegisterFunc failed: %v", err)
	}

	_, err = in.Exec("cause.lua", "return damageOf(fake)", 1)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("error = %v, want ErrTypeMismatch cause", err)
	}
	if !errors.Is(err, ErrScriptRuntime) {
		t.Errorf("error = %v, want ErrScriptRuntime", err)
	}

	// pcall catches callback errors inside the script.
	rets, err := in.Exec("pcall.lua", `
local ok, msg = pcall(damageOf, fake)
return ok, msg
`, 2)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if rets[0].Truthy() || !strings.Contains(rets[1].Str(), "wrong handle type") {
		t.Errorf("pcall = %v, %v", rets[0], rets[1])
	}
}

func TestMethodNotFoundInScript(t *testing.T) {
	in := newUnitInterp(t)
	in.SetGlobal("u", in.Wrap(&unit{}, "Unit"))

	_, err := in.Exec("missing.lua", "return u.fly()", 1)
	if !errors.Is(err, ErrMethodNotFound) {
		t.Errorf("error = %v, want ErrMethodNotFound", err)
	}
	var le *LoadError
	if !errors.As(err, &le) || le.Stage != StageRun {
		t.Errorf("error = %v, want run-stage LoadError", err)
	}
}

func TestCallbackPanic(t *testing.T) {
	in := newTestInterp(t)
	in.RegisterFunc("explode", func(*Interpreter, Value, []Value) ([]Value, error) {
		panic("kaboom")
	})
	in.LoadString("panic.lua", `function run() explode() end`)

	_, err := in.Call("run", 0)
	var se *ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *ScriptError", err)
	}
	if !strings.Contains(se.Message, "kaboom") {
		t.Errorf("Message = %q", se.Message)
	}
	if in.Depth() != 0 {
		t.Errorf("Depth = %d after panic, want 0", in.Depth())
	}
}

func TestReentrantCalls(t *testing.T) {
	in := newTestInterp(t)
	var seenDepth int
	err := in.RegisterFunc("twice", func(in *Interpreter, _ Value, args []Value) ([]Value, error) {
		seenDepth = in.Depth()
		r1, err := in.Call("inc", 1, Arg(args, 1))
		if err != nil {
			return nil, err
		}
		return in.Call("inc", 1, r1[0])
	})
	if err != nil {
		t.Fatalf("RegisterFunc failed: %v", err)
	}
	in.LoadString("reentry.lua", `
function inc(x) return x + 1 end
function outer(x) return twice(x) * 10 end
`)

	rets, err := in.Call("outer", 1, Int(1))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if rets[0].Int() != 30 {
		t.Errorf("outer(1) = %v, want 30", rets[0])
	}
	if seenDepth != 2 {
		t.Errorf("callback depth = %d, want 2", seenDepth)
	}
	if in.Depth() != 0 {
		t.Errorf("Depth = %d after call, want 0", in.Depth())
	}
}

func TestReentrantCallFromCoroutine(t *testing.T) {
	in := newTestInterp(t)
	onMain := true
	in.RegisterFunc("bump", func(in *Interpreter, _ Value, args []Value) ([]Value, error) {
		onMain = in.State() == in.L
		return in.Call("inc", 1, Arg(args, 1))
	})
	in.LoadString("co.lua", `
function inc(x) return x + 1 end
function run(n)
  local co = coroutine.create(function(v)
    local a = bump(v)
    coroutine.yield(a)
    return bump(a)
  end)
  local _, first = coroutine.resume(co, n)
  local _, second = coroutine.resume(co)
  return first, second
end
`)

	rets, err := in.Call("run", 2, Int(1))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if rets[0].Int() != 2 || rets[1].Int() != 3 {
		t.Errorf("run(1) = %v, %v, want 2, 3", rets[0], rets[1])
	}
	if onMain {
		t.Error("callback inside a coroutine ran on the main thread")
	}
}

func TestNestedScriptErrorInCallback(t *testing.T) {
	in := newTestInterp(t)
	in.RegisterFunc("relay", func(in *Interpreter, _ Value, _ []Value) ([]Value, error) {
		return in.Call("inner", 0)
	})
	in.LoadString("nested.lua", `
function inner() error("deep") end
function outer() relay() end
`)

	_, err := in.Call("outer", 0)
	var se *ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *ScriptError", err)
	}
	if !strings.Contains(se.Message, "deep") {
		t.Errorf("Message = %q", se.Message)
	}
	var inner *ScriptError
	if !errors.As(se.Cause, &inner) || inner.Func != "inner" {
		t.Errorf("Cause = %v, want the inner ScriptError", se.Cause)
	}
}

func TestReleasedHandleInScript(t *testing.T) {
	in := newUnitInterp(t, WithLivenessCheck(true))
	u := &unit{damage: 5}
	v := in.Wrap(u, "Unit")
	in.Release(u)

	if _, err := in.Call("hit", 1, v); !errors.Is(err, ErrHandleReleased) {
		t.Errorf("error = %v, want ErrHandleReleased", err)
	}
	rets, err := in.Call("hit", 1, in.Wrap(u, "Unit"))
	if err != nil || rets[0].Int() != 5 {
		t.Errorf("hit(fresh) = %v, %v", rets, err)
	}
}

// =============================================================================
// Globals and values
// =============================================================================

func TestGlobals(t *testing.T) {
	in := newTestInterp(t)
	if err := in.SetGlobal("config.limits.max", Int(10)); err != nil {
		t.Fatalf("SetGlobal failed: %v", err)
	}
	if got := in.Global("config.limits.max"); got.Int() != 10 {
		t.Errorf("Global = %v, want 10", got)
	}
	if got := in.Global("config.nothing"); !got.IsNil() {
		t.Errorf("Global(missing) = %v, want nil", got)
	}

	in.SetGlobal("n", Int(1))
	if err := in.SetGlobal("n.x", Int(2)); !errors.Is(err, ErrBadArgument) {
		t.Errorf("SetGlobal through number error = %v, want ErrBadArgument", err)
	}
	if err := in.SetGlobal("", Int(2)); !errors.Is(err, ErrBadArgument) {
		t.Errorf("SetGlobal(\"\") error = %v, want ErrBadArgument", err)
	}
}

func TestTableValues(t *testing.T) {
	in := newTestInterp(t)
	in.LoadString("tables.lua", `
function sum(t)
  local s = 0
  for _, v in ipairs(t) do s = s + v end
  return s
end
function make()
  return { 1, 2, name = "box", inner = { ok = true } }
end
`)

	rets, err := in.Call("sum", 1, Array(Int(1), Int(2), Int(3)))
	if err != nil || rets[0].Int() != 6 {
		t.Fatalf("sum = %v, %v", rets, err)
	}

	rets, err = in.Call("make", 1)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	tbl, ok := rets[0].AsTable()
	if !ok {
		t.Fatalf("make() kind = %v, want table", rets[0].Kind())
	}
	if tbl.Index(2).Int() != 2 || tbl.Get("name").Str() != "box" {
		t.Errorf("table = %v", tbl)
	}
	inner, _ := tbl.Get("inner").AsTable()
	if !inner.Get("ok").Truthy() {
		t.Errorf("inner = %v", inner)
	}
}

func TestFunctionValues(t *testing.T) {
	in := newTestInterp(t)
	in.LoadString("fn.lua", `function adder(n) return function(x) return x + n end end`)

	rets, err := in.Call("adder", 1, Int(10))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if rets[0].Kind() != KindFunction {
		t.Fatalf("adder kind = %v", rets[0].Kind())
	}
	out, err := in.CallValue(rets[0], 1, Int(5))
	if err != nil || out[0].Int() != 15 {
		t.Errorf("CallValue = %v, %v", out, err)
	}
	if _, err := in.CallValue(Int(1), 1); !errors.Is(err, ErrNotCallable) {
		t.Errorf("CallValue(number) error = %v, want ErrNotCallable", err)
	}

	greet := in.NewFunction("greet", func(_ *Interpreter, _ Value, args []Value) ([]Value, error) {
		name, err := OptString(args, 1, "world")
		if err != nil {
			return nil, err
		}
		return []Value{String("hello " + name)}, nil
	})
	in.SetGlobal("greet", greet)
	rets, err = in.Exec("greet.lua", `return greet(), greet("lua")`, 2)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if rets[0].Str() != "hello world" || rets[1].Str() != "hello lua" {
		t.Errorf("greet = %v, %v", rets[0], rets[1])
	}
}

func TestHandleToString(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterp(t, WithStdout(&out))
	in.SetGlobal("u", in.Wrap(&unit{}, "Unit"))
	if err := in.LoadString("tostring.lua", `print(tostring(u):sub(1, 5))`); err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	if got := out.String(); got != "Unit:\n" {
		t.Errorf("print = %q, want %q", got, "Unit:\n")
	}
}
