package luabind

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// =============================================================================
// Host -> Script
// =============================================================================

// Call invokes the script function at name with args and returns exactly
// nret results, padded with Nil when the function returns fewer. Pass
// MultRet to receive every result.
//
// name may be a dotted path through nested tables ("utils.math.add"). A
// missing or non-callable target returns ErrNotCallable and nothing runs.
// A failure inside the script returns a *ScriptError.
func (in *Interpreter) Call(name string, nret int, args ...Value) ([]Value, error) {
	if in.L == nil {
		return nil, ErrClosed
	}
	if nret < 0 && nret != MultRet {
		return nil, fmt.Errorf("%w: result count %d", ErrBadArgument, nret)
	}
	fn, err := in.resolveCallable(name)
	if err != nil {
		return nil, err
	}
	return in.callLua(fn, name, nret, args)
}

// CallValue invokes a function value previously received from the script.
func (in *Interpreter) CallValue(fn Value, nret int, args ...Value) ([]Value, error) {
	if in.L == nil {
		return nil, ErrClosed
	}
	if nret < 0 && nret != MultRet {
		return nil, fmt.Errorf("%w: result count %d", ErrBadArgument, nret)
	}
	if fn.lv == nil || !in.callable(fn.lv) {
		return nil, fmt.Errorf("%w: %s value", ErrNotCallable, fn.Kind())
	}
	return in.callLua(fn.lv, "", nret, args)
}

// IsCallable reports whether name resolves to something Call can invoke.
func (in *Interpreter) IsCallable(name string) bool {
	if in.L == nil {
		return false
	}
	_, err := in.resolveCallable(name)
	return err == nil
}

func (in *Interpreter) resolveCallable(name string) (lua.LValue, error) {
	lv, ok := in.lookupPath(name)
	if !ok || !in.callable(lv) {
		return nil, fmt.Errorf("%w: %s", ErrNotCallable, name)
	}
	return lv, nil
}

func (in *Interpreter) callable(lv lua.LValue) bool {
	if _, ok := lv.(*lua.LFunction); ok {
		return true
	}
	switch lv.(type) {
	case *lua.LTable, *lua.LUserData:
		return in.state().GetMetaField(lv, "__call") != lua.LNil
	}
	return false
}

// lookupPath walks a dotted name from the global table without invoking
// metamethods.
func (in *Interpreter) lookupPath(name string) (lua.LValue, bool) {
	if name == "" {
		return lua.LNil, false
	}
	parts := strings.Split(name, ".")
	L := in.state()
	cur := L.GetGlobal(parts[0])
	for _, part := range parts[1:] {
		tbl, ok := cur.(*lua.LTable)
		if !ok || part == "" {
			return lua.LNil, false
		}
		cur = tbl.RawGetString(part)
	}
	return cur, cur != lua.LNil
}

func (in *Interpreter) callLua(fn lua.LValue, name string, nret int, args []Value) ([]Value, error) {
	L := in.state()
	top := L.GetTop()
	L.Push(fn)
	for _, arg := range args {
		L.Push(in.toLua(L, arg))
	}

	in.depth++
	slot := in.trace.add(Crossing{Dir: HostToScript, Name: name, Depth: in.depth, Args: len(args)})
	in.logger.Debug("call script", "func", name, "args", len(args), "depth", in.depth)
	err := L.PCall(len(args), nret, nil)
	in.depth--

	if err != nil {
		L.SetTop(top)
		serr := in.scriptError(name, err)
		if in.depth == 0 {
			in.raised = in.raised[:0]
		}
		in.trace.fail(slot, serr)
		in.logger.Debug("script call failed", "func", name, "error", serr.Message)
		return nil, serr
	}
	if in.depth == 0 {
		in.raised = in.raised[:0]
	}

	n := L.GetTop() - top
	rets := make([]Value, n)
	for i := 0; i < n; i++ {
		rets[i] = fromLua(L.Get(top + 1 + i))
	}
	L.SetTop(top)
	return rets, nil
}

func (in *Interpreter) scriptError(name string, err error) *ScriptError {
	se := &ScriptError{Func: name, Message: err.Error()}
	if apiErr, ok := err.(*lua.ApiError); ok {
		if apiErr.Object != nil && apiErr.Object != lua.LNil {
			se.Message = apiErr.Object.String()
		}
		se.Traceback = apiErr.StackTrace
		se.Cause = apiErr.Cause
	}
	if se.Cause == nil {
		se.Cause = in.raisedCause(se.Message)
	}
	return se
}

// raisedCause finds the host error whose text ended up as msg.
func (in *Interpreter) raisedCause(msg string) error {
	for i := len(in.raised) - 1; i >= 0; i-- {
		if strings.HasSuffix(msg, in.raised[i].msg) {
			return in.raised[i].err
		}
	}
	return nil
}

// =============================================================================
// Globals
// =============================================================================

// Global reads the value at a dotted name. Missing names read as Nil.
func (in *Interpreter) Global(name string) Value {
	if in.L == nil {
		return Nil
	}
	lv, _ := in.lookupPath(name)
	return fromLua(lv)
}

// SetGlobal assigns v at a dotted name, creating intermediate tables as
// needed. An intermediate that exists but is not a table is an error.
func (in *Interpreter) SetGlobal(name string, v Value) error {
	if in.L == nil {
		return ErrClosed
	}
	if name == "" {
		return fmt.Errorf("%w: empty global name", ErrBadArgument)
	}
	L := in.state()
	parts := strings.Split(name, ".")
	if len(parts) == 1 {
		L.SetGlobal(name, in.toLua(L, v))
		return nil
	}

	cur := L.GetGlobal(parts[0])
	if cur == lua.LNil {
		cur = L.NewTable()
		L.SetGlobal(parts[0], cur)
	}
	for i, part := range parts[1:] {
		tbl, ok := cur.(*lua.LTable)
		if !ok || part == "" {
			return fmt.Errorf("%w: %s is not a table", ErrBadArgument, strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-2 {
			tbl.RawSetString(part, in.toLua(L, v))
			return nil
		}
		next := tbl.RawGetString(part)
		if next == lua.LNil {
			next = L.NewTable()
			tbl.RawSetString(part, next)
		}
		cur = next
	}
	return nil
}

// Expose wraps ref with tag and stores the handle at a dotted global name.
func (in *Interpreter) Expose(name string, ref any, tag string) error {
	return in.SetGlobal(name, in.Wrap(ref, tag))
}

// =============================================================================
// Script -> Host
// =============================================================================

// NewFunction returns a script function value that runs cb with a Nil
// receiver. name is used in traces and logs.
func (in *Interpreter) NewFunction(name string, cb Callback) Value {
	fn := in.L.NewFunction(func(L *lua.LState) int {
		return in.invoke(L, name, cb, Nil, in.args(L, 1))
	})
	return Value{kind: KindFunction, lv: fn}
}

// RegisterFunc exposes cb as a script function at a dotted global name.
func (in *Interpreter) RegisterFunc(name string, cb Callback) error {
	if in.L == nil {
		return ErrClosed
	}
	if cb == nil {
		return fmt.Errorf("%w: nil callback for %s", ErrBadArgument, name)
	}
	return in.SetGlobal(name, in.NewFunction(name, cb))
}

// Invoke runs method on the handle in recv from the host side, using the
// same dispatch and fallback lookup a script call would.
func (in *Interpreter) Invoke(recv Value, method string, args ...Value) ([]Value, error) {
	h, ok := recv.AsHandle()
	if !ok {
		return nil, fmt.Errorf("%w: handle expected, got %s", ErrTypeMismatch, recv.Kind())
	}
	if err := in.checkAlive(h); err != nil {
		return nil, err
	}
	cb, err := in.reg.Lookup(h.tag, method)
	if err != nil {
		return nil, err
	}
	return in.runCallback(in.state(), cb, recv, args)
}

// State returns the interpreter thread currently running. Inside a callback
// this is the calling thread.
func (in *Interpreter) State() *lua.LState { return in.state() }

func (in *Interpreter) args(L *lua.LState, first int) []Value {
	top := L.GetTop()
	if top < first {
		return nil
	}
	out := make([]Value, 0, top-first+1)
	for i := first; i <= top; i++ {
		out = append(out, fromLua(L.Get(i)))
	}
	return out
}

// invoke runs a callback for a script caller and pushes its results. A
// callback error is raised into the script.
func (in *Interpreter) invoke(L *lua.LState, name string, cb Callback, recv Value, args []Value) int {
	slot := in.trace.add(Crossing{Dir: ScriptToHost, Name: name, Depth: in.depth + 1, Args: len(args)})
	in.logger.Debug("call host", "func", name, "args", len(args), "depth", in.depth+1)

	rets, err := in.runCallback(L, cb, recv, args)
	if err != nil {
		in.trace.fail(slot, err)
		in.logger.Debug("host call failed", "func", name, "error", err)
		in.raise(L, err)
		return 0
	}
	for _, r := range rets {
		L.Push(in.toLua(L, r))
	}
	return len(rets)
}

func (in *Interpreter) runCallback(L *lua.LState, cb Callback, recv Value, args []Value) (rets []Value, err error) {
	prev := in.cur
	in.cur = L
	in.depth++
	defer func() {
		in.depth--
		in.cur = prev
		if r := recover(); r != nil {
			if apiErr, ok := r.(*lua.ApiError); ok {
				panic(apiErr)
			}
			rets = nil
			err = fmt.Errorf("luabind: callback panic: %v", r)
		}
	}()
	return cb(in, recv, args)
}

// raise turns a host error into a script error and does not return.
func (in *Interpreter) raise(L *lua.LState, err error) {
	msg := err.Error()
	in.raised = append(in.raised, raisedError{msg: msg, err: err})
	if len(in.raised) > maxRaised {
		in.raised = in.raised[len(in.raised)-maxRaised:]
	}
	L.RaiseError("%s", msg)
}

// =============================================================================
// Handles on the script side
// =============================================================================

func (in *Interpreter) metatable(L *lua.LState, tag string) *lua.LTable {
	if mt, ok := in.metatables[tag]; ok {
		return mt
	}
	mt := L.NewTable()
	mt.RawSetString("__index", in.indexFn)
	mt.RawSetString("__tostring", L.NewFunction(handleToString))
	mt.RawSetString("__eq", L.NewFunction(handleEqual))
	mt.RawSetString("__name", lua.LString(tag))
	mt.RawSetString("__metatable", lua.LString(tag))
	in.metatables[tag] = mt
	return mt
}

// indexHandle resolves obj.method through the registry and returns a
// function bound to obj. Both obj.method(...) and obj:method(...) work.
func (in *Interpreter) indexHandle(L *lua.LState) int {
	ud := L.CheckUserData(1)
	key := L.CheckString(2)
	h, ok := ud.Value.(*Handle)
	if !ok {
		L.ArgError(1, "handle expected")
		return 0
	}
	cb, err := in.reg.Lookup(h.tag, key)
	if err != nil {
		in.raise(L, err)
		return 0
	}
	L.Push(in.boundMethod(L, ud, h, key, cb))
	return 1
}

func (in *Interpreter) boundMethod(L *lua.LState, ud *lua.LUserData, h *Handle, method string, cb Callback) *lua.LFunction {
	name := h.tag + "." + method
	return L.NewFunction(func(L *lua.LState) int {
		first := 1
		if L.GetTop() >= 1 && L.Get(1) == lua.LValue(ud) {
			first = 2
		}
		if err := in.checkAlive(h); err != nil {
			in.raise(L, err)
			return 0
		}
		recv := Value{kind: KindHandle, h: h, lv: ud}
		return in.invoke(L, name, cb, recv, in.args(L, first))
	})
}

func handleToString(L *lua.LState) int {
	ud := L.CheckUserData(1)
	if h, ok := ud.Value.(*Handle); ok {
		L.Push(lua.LString(h.String()))
	} else {
		L.Push(lua.LString("userdata"))
	}
	return 1
}

// handleEqual compares handles by the identity of their host references.
func handleEqual(L *lua.LState) int {
	a, aok := L.Get(1).(*lua.LUserData)
	b, bok := L.Get(2).(*lua.LUserData)
	if !aok || !bok {
		L.Push(lua.LFalse)
		return 1
	}
	ha, aok := a.Value.(*Handle)
	hb, bok := b.Value.(*Handle)
	if !aok || !bok {
		L.Push(lua.LBool(a == b))
		return 1
	}
	L.Push(lua.LBool(sameRef(ha, hb)))
	return 1
}

func sameRef(a, b *Handle) bool {
	if a == b {
		return true
	}
	if a.tag != b.tag || !trackable(a.ref) || !trackable(b.ref) {
		return false
	}
	return a.ref == b.ref
}

// toLua converts v for pushing onto L. Values read from the script convert
// back to the very same script object. A host-built table that is reached
// twice becomes one script table.
func (in *Interpreter) toLua(L *lua.LState, v Value) lua.LValue {
	c := luaConverter{in: in, L: L}
	return c.value(v)
}

type luaConverter struct {
	in   *Interpreter
	L    *lua.LState
	seen map[*Table]*lua.LTable
}

func (c *luaConverter) value(v Value) lua.LValue {
	switch v.kind {
	case KindNil:
		return lua.LNil
	case KindBoolean:
		return lua.LBool(v.b)
	case KindNumber:
		return lua.LNumber(v.n)
	case KindString:
		return lua.LString(v.s)
	case KindHandle:
		if v.lv != nil {
			return v.lv
		}
		ud := c.L.NewUserData()
		ud.Value = v.h
		c.L.SetMetatable(ud, c.in.metatable(c.L, v.h.tag))
		return ud
	case KindTable:
		if v.lv != nil {
			return v.lv
		}
		if v.t == nil {
			return c.L.NewTable()
		}
		if tbl, ok := c.seen[v.t]; ok {
			return tbl
		}
		if c.seen == nil {
			c.seen = make(map[*Table]*lua.LTable)
		}
		tbl := c.L.CreateTable(len(v.t.Array), len(v.t.Fields))
		c.seen[v.t] = tbl
		for i, item := range v.t.Array {
			tbl.RawSetInt(i+1, c.value(item))
		}
		for k, item := range v.t.Fields {
			tbl.RawSetString(k, c.value(item))
		}
		return tbl
	default:
		if v.lv != nil {
			return v.lv
		}
		return lua.LNil
	}
}
