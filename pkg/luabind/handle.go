package luabind

import (
	"fmt"
	"reflect"
)

// Handle is the script-visible wrapper around a host object reference.
//
// A handle does not own its referent. The host must keep the object alive
// for as long as scripts can reach any handle created from it; with liveness
// checking enabled, Release marks the object dead and every older handle
// fails to unwrap.
type Handle struct {
	ref any
	tag string
	gen uint64
}

// Tag returns the type tag the handle was wrapped with.
func (h *Handle) Tag() string { return h.tag }

// Ref returns the host reference without any tag check.
func (h *Handle) Ref() any { return h.ref }

func (h *Handle) String() string {
	return fmt.Sprintf("%s: %p", h.tag, h)
}

// liveness tracks a generation per host reference. Only references whose
// dynamic value is comparable are tracked; others are always considered
// alive.
type liveness struct {
	gens map[any]uint64
}

func newLiveness() *liveness {
	return &liveness{gens: make(map[any]uint64)}
}

// trackable reports whether ref can be used as a map key. A comparable
// struct type can still hold an interface field set to a slice, so the
// value is checked, not the type.
func trackable(ref any) bool {
	return ref != nil && reflect.ValueOf(ref).Comparable()
}

func (l *liveness) current(ref any) uint64 {
	if l == nil || !trackable(ref) {
		return 0
	}
	return l.gens[ref]
}

func (l *liveness) release(ref any) {
	if l == nil || !trackable(ref) {
		return
	}
	l.gens[ref]++
}

// Wrap returns a Value carrying a handle to ref tagged with tag. No copy of
// ref is made. A nil ref wraps to Nil.
func (in *Interpreter) Wrap(ref any, tag string) Value {
	if ref == nil {
		return Nil
	}
	h := &Handle{ref: ref, tag: tag, gen: in.live.current(ref)}
	return Value{kind: KindHandle, h: h}
}

// Unwrap recovers the host reference from v, checking that it was wrapped
// with tag. A non-handle value or a different tag yields ErrTypeMismatch.
func (in *Interpreter) Unwrap(v Value, tag string) (any, error) {
	h, ok := v.AsHandle()
	if !ok {
		return nil, fmt.Errorf("%w: %s expected, got %s", ErrTypeMismatch, tag, v.Kind())
	}
	if h.tag != tag {
		return nil, fmt.Errorf("%w: %s expected, got %s", ErrTypeMismatch, tag, h.tag)
	}
	if err := in.checkAlive(h); err != nil {
		return nil, err
	}
	return h.ref, nil
}

// TryUnwrap checks v against each candidate tag in order and returns the
// reference and the first tag that matches. List the most derived tag first.
func (in *Interpreter) TryUnwrap(v Value, tags ...string) (ref any, matched string, ok bool) {
	h, isHandle := v.AsHandle()
	if !isHandle {
		return nil, "", false
	}
	for _, tag := range tags {
		if h.tag != tag {
			continue
		}
		if in.checkAlive(h) != nil {
			return nil, "", false
		}
		return h.ref, tag, true
	}
	return nil, "", false
}

// Release marks ref as destroyed on the host side. It only has an effect
// when liveness checking is enabled.
func (in *Interpreter) Release(ref any) {
	in.live.release(ref)
}

func (in *Interpreter) checkAlive(h *Handle) error {
	if in.live == nil {
		return nil
	}
	if in.live.current(h.ref) != h.gen {
		return fmt.Errorf("%w: %s", ErrHandleReleased, h.tag)
	}
	return nil
}

// UnwrapAs is Unwrap followed by a type assertion to T.
func UnwrapAs[T any](in *Interpreter, v Value, tag string) (T, error) {
	var zero T
	ref, err := in.Unwrap(v, tag)
	if err != nil {
		return zero, err
	}
	out, ok := ref.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrTypeMismatch, tag, ref)
	}
	return out, nil
}
