package luabind

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Kind identifies what a Value holds.
type Kind uint8

const (
	KindNil Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindFunction
	KindHandle
	KindTable
	KindOpaque
)

// String returns the kind name as scripts would see it.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindFunction:
		return "function"
	case KindHandle:
		return "handle"
	case KindTable:
		return "table"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// MultRet asks Call to return every value the script function returned.
const MultRet = lua.MultRet

// maxTableDepth bounds the nesting of distinct tables in one snapshot.
const maxTableDepth = 64

// Value is a value crossing the host/script boundary.
//
// The zero Value is nil. Values are immutable; Table values are snapshots of
// script tables and keep a reference to the original so that handing one back
// to the script yields the same table.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	t    *Table
	h    *Handle

	// lv is the script-side value this Value was read from, if any.
	lv lua.LValue
}

// Table is the host view of a script table: the sequence part in Array and
// every other key, stringified, in Fields.
type Table struct {
	Array  []Value
	Fields map[string]Value
}

// Nil is the nil Value.
var Nil = Value{}

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

// Number returns a number Value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int returns a number Value holding an integer.
func Int(n int) Value { return Value{kind: KindNumber, n: float64(n)} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns a table Value with only a sequence part.
func Array(items ...Value) Value {
	return Value{kind: KindTable, t: &Table{Array: items}}
}

// Record returns a table Value with only string keys.
func Record(fields map[string]Value) Value {
	return Value{kind: KindTable, t: &Table{Fields: fields}}
}

// Kind reports what v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether v is nil.
func (v Value) IsNil() bool { return v.kind == KindNil }

// Truthy follows script truthiness: only nil and false are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBoolean:
		return v.b
	default:
		return true
	}
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBoolean }

// AsNumber returns the number held by v. Numeric strings are not coerced.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsTable returns the table snapshot held by v.
func (v Value) AsTable() (*Table, bool) { return v.t, v.kind == KindTable }

// AsHandle returns the handle held by v.
func (v Value) AsHandle() (*Handle, bool) { return v.h, v.kind == KindHandle }

// Float returns v as a float64, or 0 if v is not a number.
func (v Value) Float() float64 {
	if v.kind != KindNumber {
		return 0
	}
	return v.n
}

// Int returns v truncated to an int, or 0 if v is not a number.
func (v Value) Int() int {
	if v.kind != KindNumber {
		return 0
	}
	return int(v.n)
}

// Str returns the string held by v, or "" if v is not a string.
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.s
}

// String formats v the way a script print would.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return formatNumber(v.n)
	case KindString:
		return v.s
	case KindHandle:
		return v.h.String()
	case KindTable:
		return v.t.String()
	case KindFunction:
		return fmt.Sprintf("function: %p", v.lv)
	default:
		if v.lv != nil {
			return v.lv.String()
		}
		return "opaque"
	}
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', 14, 64)
}

// Len returns the number of entries in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Array) + len(t.Fields)
}

// Get returns the field named key.
func (t *Table) Get(key string) Value {
	if t == nil {
		return Nil
	}
	return t.Fields[key]
}

// Index returns the 1-based sequence element i.
func (t *Table) Index(i int) Value {
	if t == nil || i < 1 || i > len(t.Array) {
		return Nil
	}
	return t.Array[i-1]
}

// String formats t like a script table constructor. Each table is printed
// once; later occurrences, including a table inside itself, print as {...}.
func (t *Table) String() string {
	p := tablePrinter{}
	return p.table(t)
}

type tablePrinter struct {
	printed map[*Table]bool
}

func (p *tablePrinter) table(t *Table) string {
	if t == nil {
		return "{}"
	}
	if p.printed[t] {
		return "{...}"
	}
	if p.printed == nil {
		p.printed = make(map[*Table]bool)
	}
	p.printed[t] = true

	parts := make([]string, 0, t.Len())
	for _, item := range t.Array {
		parts = append(parts, p.value(item))
	}
	keys := make([]string, 0, len(t.Fields))
	for k := range t.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+" = "+p.value(t.Fields[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (p *tablePrinter) value(v Value) string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.s)
	case KindTable:
		return p.table(v.t)
	default:
		return v.String()
	}
}

// GoValue converts v into plain Go data: nil, bool, float64, string,
// []any, map[string]any. Handles yield their host reference; functions and
// opaque values yield their printed form. A table reached again while it is
// still being converted (a cycle) converts to nil; a table shared between
// several fields converts once and is shared in the result.
func (v Value) GoValue() any {
	c := goConverter{}
	return c.value(v)
}

type goConverter struct {
	active map[*Table]bool
	done   map[*Table]any
}

func (c *goConverter) value(v Value) any {
	switch v.kind {
	case KindNil:
		return nil
	case KindBoolean:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindHandle:
		return v.h.ref
	case KindTable:
		return c.table(v.t)
	default:
		return v.String()
	}
}

func (c *goConverter) table(t *Table) any {
	if t == nil {
		return map[string]any{}
	}
	if c.active[t] {
		return nil
	}
	if out, ok := c.done[t]; ok {
		return out
	}
	if c.active == nil {
		c.active = make(map[*Table]bool)
		c.done = make(map[*Table]any)
	}
	c.active[t] = true
	defer delete(c.active, t)

	var out any
	if len(t.Fields) == 0 && len(t.Array) > 0 {
		items := make([]any, len(t.Array))
		for i, item := range t.Array {
			items[i] = c.value(item)
		}
		out = items
	} else {
		fields := make(map[string]any, t.Len())
		for i, item := range t.Array {
			fields[strconv.Itoa(i+1)] = c.value(item)
		}
		for k, item := range t.Fields {
			fields[k] = c.value(item)
		}
		out = fields
	}
	c.done[t] = out
	return out
}

// FromGo converts plain Go data into a Value. Supported inputs are nil,
// bool, every integer and float type, string, []byte, Value, []Value,
// map[string]Value, []any and map[string]any (recursively). Anything else
// is an ErrBadArgument.
func FromGo(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Nil, nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case []byte:
		return String(string(v)), nil
	case int:
		return Number(float64(v)), nil
	case int8:
		return Number(float64(v)), nil
	case int16:
		return Number(float64(v)), nil
	case int32:
		return Number(float64(v)), nil
	case int64:
		return Number(float64(v)), nil
	case uint:
		return Number(float64(v)), nil
	case uint8:
		return Number(float64(v)), nil
	case uint16:
		return Number(float64(v)), nil
	case uint32:
		return Number(float64(v)), nil
	case uint64:
		return Number(float64(v)), nil
	case float32:
		return Number(float64(v)), nil
	case float64:
		return Number(v), nil
	case []Value:
		return Array(v...), nil
	case map[string]Value:
		return Record(v), nil
	case []any:
		items := make([]Value, len(v))
		for i, item := range v {
			cv, err := FromGo(item)
			if err != nil {
				return Nil, err
			}
			items[i] = cv
		}
		return Array(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(v))
		for k, item := range v {
			cv, err := FromGo(item)
			if err != nil {
				return Nil, err
			}
			fields[k] = cv
		}
		return Record(fields), nil
	case map[any]any:
		fields := make(map[string]Value, len(v))
		for k, item := range v {
			cv, err := FromGo(item)
			if err != nil {
				return Nil, err
			}
			fields[fmt.Sprint(k)] = cv
		}
		return Record(fields), nil
	default:
		return Nil, fmt.Errorf("%w: cannot convert %T", ErrBadArgument, x)
	}
}

// fromLua reads a script value. Tables are snapshotted recursively; a
// script table reached more than once during one conversion maps to the
// same *Table, so shared and cyclic tables cost one copy each.
func fromLua(lv lua.LValue) Value {
	s := snapshotter{}
	return s.value(lv, 0)
}

type snapshotter struct {
	seen map[*lua.LTable]*Table
}

func (s *snapshotter) value(lv lua.LValue, depth int) Value {
	switch x := lv.(type) {
	case *lua.LNilType:
		return Nil
	case lua.LBool:
		return Bool(bool(x))
	case lua.LNumber:
		return Number(float64(x))
	case lua.LString:
		return String(string(x))
	case *lua.LFunction:
		return Value{kind: KindFunction, lv: x}
	case *lua.LUserData:
		if h, ok := x.Value.(*Handle); ok {
			return Value{kind: KindHandle, h: h, lv: x}
		}
		return Value{kind: KindOpaque, lv: x}
	case *lua.LTable:
		if t, ok := s.seen[x]; ok {
			return Value{kind: KindTable, t: t, lv: x}
		}
		if depth >= maxTableDepth {
			return Value{kind: KindOpaque, lv: x}
		}
		if s.seen == nil {
			s.seen = make(map[*lua.LTable]*Table)
		}
		t := &Table{}
		s.seen[x] = t
		s.fill(t, x, depth+1)
		return Value{kind: KindTable, t: t, lv: x}
	case nil:
		return Nil
	default:
		return Value{kind: KindOpaque, lv: lv}
	}
}

func (s *snapshotter) fill(t *Table, lt *lua.LTable, depth int) {
	n := lt.Len()
	for i := 1; i <= n; i++ {
		t.Array = append(t.Array, s.value(lt.RawGetInt(i), depth))
	}
	lt.ForEach(func(k, v lua.LValue) {
		if num, ok := k.(lua.LNumber); ok {
			i := int(num)
			if float64(i) == float64(num) && i >= 1 && i <= n {
				return
			}
		}
		if t.Fields == nil {
			t.Fields = make(map[string]Value)
		}
		t.Fields[k.String()] = s.value(v, depth)
	})
}
