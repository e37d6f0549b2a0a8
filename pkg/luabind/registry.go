package luabind

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultMaxFallbackDepth is the number of fallback edges a lookup may
// follow before the chain is treated as cyclic.
const DefaultMaxFallbackDepth = 64

// Callback is a host function reachable from scripts. recv is the handle the
// method was invoked on, or Nil for plain functions. For methods, args never
// starts with the receiver itself: obj:m(x) and obj.m(x) both deliver [x],
// and obj.m(obj) delivers no arguments. The returned values are handed back
// to the script in order; a non-nil error is raised as a script error.
type Callback func(in *Interpreter, recv Value, args []Value) ([]Value, error)

// dispatchTable holds the methods of one type tag.
type dispatchTable struct {
	methods   map[string]Callback
	parent    string
	hasParent bool
}

// Registry maps type tags to dispatch tables. It is not safe for concurrent
// use; each Interpreter owns its own.
type Registry struct {
	tables   map[string]*dispatchTable
	maxDepth int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tables:   make(map[string]*dispatchTable),
		maxDepth: DefaultMaxFallbackDepth,
	}
}

// SetMaxDepth changes the fallback traversal bound. Values below 1 restore
// the default.
func (r *Registry) SetMaxDepth(n int) {
	if n < 1 {
		n = DefaultMaxFallbackDepth
	}
	r.maxDepth = n
}

func (r *Registry) table(tag string) *dispatchTable {
	t, ok := r.tables[tag]
	if !ok {
		t = &dispatchTable{methods: make(map[string]Callback)}
		r.tables[tag] = t
	}
	return t
}

// Register binds method on tag to cb. Registering the same pair again
// replaces the previous callback.
func (r *Registry) Register(tag, method string, cb Callback) error {
	if tag == "" || method == "" {
		return errors.New("luabind: empty tag or method name")
	}
	if cb == nil {
		return fmt.Errorf("luabind: nil callback for %s.%s", tag, method)
	}
	r.table(tag).methods[method] = cb
	return nil
}

// RegisterMethods registers every entry of methods on tag.
func (r *Registry) RegisterMethods(tag string, methods map[string]Callback) error {
	for name, cb := range methods {
		if err := r.Register(tag, name, cb); err != nil {
			return err
		}
	}
	return nil
}

// SetFallback makes parent the table consulted when a method is missing on
// tag. A second call replaces the edge. Neither tag needs methods yet.
func (r *Registry) SetFallback(tag, parent string) error {
	if tag == "" || parent == "" {
		return errors.New("luabind: empty tag in fallback")
	}
	t := r.table(tag)
	t.parent = parent
	t.hasParent = true
	return nil
}

// ClearFallback removes the fallback edge of tag.
func (r *Registry) ClearFallback(tag string) {
	if t, ok := r.tables[tag]; ok {
		t.parent = ""
		t.hasParent = false
	}
}

// Fallback returns the parent of tag, if any.
func (r *Registry) Fallback(tag string) (string, bool) {
	t, ok := r.tables[tag]
	if !ok || !t.hasParent {
		return "", false
	}
	return t.parent, true
}

// Has reports whether tag has a dispatch table.
func (r *Registry) Has(tag string) bool {
	_, ok := r.tables[tag]
	return ok
}

// Lookup finds method for tag, following fallback edges on a miss.
func (r *Registry) Lookup(tag, method string) (Callback, error) {
	cb, _, err := r.Resolve(tag, method)
	return cb, err
}

// Resolve is Lookup that also reports which tag's table supplied the
// callback.
func (r *Registry) Resolve(tag, method string) (Callback, string, error) {
	cur := tag
	for depth := 0; ; depth++ {
		if depth > r.maxDepth {
			return nil, "", fmt.Errorf("%w: %s.%s after %d tables", ErrFallbackCycle, tag, method, depth)
		}
		t, ok := r.tables[cur]
		if !ok {
			break
		}
		if cb, ok := t.methods[method]; ok {
			return cb, cur, nil
		}
		if !t.hasParent {
			break
		}
		cur = t.parent
	}
	return nil, "", fmt.Errorf("%w: %s.%s", ErrMethodNotFound, tag, method)
}

// Chain returns tag followed by its fallback ancestors, nearest first.
func (r *Registry) Chain(tag string) ([]string, error) {
	chain := []string{tag}
	cur := tag
	for {
		parent, ok := r.Fallback(cur)
		if !ok {
			return chain, nil
		}
		if len(chain) > r.maxDepth {
			return chain, fmt.Errorf("%w: %s", ErrFallbackCycle, tag)
		}
		chain = append(chain, parent)
		cur = parent
	}
}

// Methods returns the sorted method names defined directly on tag.
func (r *Registry) Methods(tag string) []string {
	t, ok := r.tables[tag]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(t.methods))
	for name := range t.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tags returns every tag with a dispatch table, sorted.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.tables))
	for tag := range r.tables {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
