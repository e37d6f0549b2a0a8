// Package kv persists script state under hierarchical keys.
//
// Keys are string paths such as ["lesson", "character", "health"] and are
// encoded with a separator byte (':' by default). Scripts address keys with
// the same colon form, parsed by ParseKey.
//
// Memory keeps everything in process; Badger stores entries on disk.
package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: not found")

	// ErrInvalidKey is returned for empty keys and segments that contain
	// the separator.
	ErrInvalidKey = errors.New("kv: invalid key")
)

// Key is a hierarchical path of string segments.
type Key []string

// String joins the segments with ':'.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Child returns a new key with segs appended to k.
func (k Key) Child(segs ...string) Key {
	out := make(Key, 0, len(k)+len(segs))
	out = append(out, k...)
	return append(out, segs...)
}

// HasPrefix reports whether prefix is a leading run of whole segments of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, seg := range prefix {
		if k[i] != seg {
			return false
		}
	}
	return true
}

// ParseKey splits a colon-separated key such as "user:profile:1". Empty
// segments are rejected.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	k := Key(strings.Split(s, ":"))
	for _, seg := range k {
		if seg == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidKey, s)
		}
	}
	return k, nil
}

// Entry is one key-value pair yielded by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-based keys.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// List yields every entry below prefix in lexicographic key order. An
	// empty prefix lists everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// Close releases the store.
	Close() error
}

// DefaultSeparator joins key segments in storage.
const DefaultSeparator byte = ':'

// Options configures key encoding.
type Options struct {
	// Separator joins key segments. Zero means DefaultSeparator.
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

// encode joins k with the separator, rejecting segments that contain it.
func (o *Options) encode(k Key) ([]byte, error) {
	s := o.sep()
	var b strings.Builder
	for i, seg := range k {
		if strings.IndexByte(seg, s) >= 0 {
			return nil, fmt.Errorf("%w: segment %q contains separator %q", ErrInvalidKey, seg, s)
		}
		if i > 0 {
			b.WriteByte(s)
		}
		b.WriteString(seg)
	}
	return []byte(b.String()), nil
}

// encodeKey is encode for a non-empty key.
func (o *Options) encodeKey(k Key) ([]byte, error) {
	if len(k) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	return o.encode(k)
}

// listPrefix is the byte prefix matching every key below prefix.
func (o *Options) listPrefix(prefix Key) ([]byte, error) {
	p, err := o.encode(prefix)
	if err != nil || len(p) == 0 {
		return nil, err
	}
	return append(p, o.sep()), nil
}

func (o *Options) decode(b []byte) Key {
	return Key(strings.Split(string(b), string(o.sep())))
}

// errSeq yields a single error.
func errSeq(err error) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		yield(Entry{}, err)
	}
}

// scoped confines a store to the keys below a fixed prefix.
type scoped struct {
	base   Store
	prefix Key
}

// Scoped returns a Store whose keys all live below prefix in base. Listed
// keys have the prefix stripped. Closing the scoped store does not close
// base.
func Scoped(base Store, prefix Key) Store {
	return &scoped{base: base, prefix: prefix}
}

func (s *scoped) Get(ctx context.Context, key Key) ([]byte, error) {
	return s.base.Get(ctx, s.prefix.Child(key...))
}

func (s *scoped) Set(ctx context.Context, key Key, value []byte) error {
	return s.base.Set(ctx, s.prefix.Child(key...), value)
}

func (s *scoped) Delete(ctx context.Context, key Key) error {
	return s.base.Delete(ctx, s.prefix.Child(key...))
}

func (s *scoped) List(ctx context.Context, prefix Key) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for e, err := range s.base.List(ctx, s.prefix.Child(prefix...)) {
			if err == nil {
				e.Key = e.Key[len(s.prefix):]
			}
			if !yield(e, err) {
				return
			}
		}
	}
}

func (s *scoped) Close() error { return nil }
