// Package storage locates script sources. A FileStore answers reads by
// slash-separated path relative to its root, whether the root is a local
// directory, an embedded file system, or an S3 prefix.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
)

// ErrInvalidPath is returned for absolute paths and paths that escape the
// store root.
var ErrInvalidPath = errors.New("storage: invalid path")

// FileStore is a read-only source of files.
//
// Implementations must be safe for concurrent use. A missing file yields an
// error wrapping os.ErrNotExist.
type FileStore interface {
	// Read opens the named file. The caller closes the reader.
	Read(ctx context.Context, name string) (io.ReadCloser, error)

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, name string) (bool, error)
}

// ReadFile reads the whole named file from s.
func ReadFile(ctx context.Context, s FileStore, name string) ([]byte, error) {
	r, err := s.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// cleanPath normalizes name and rejects paths outside the root.
func cleanPath(name string) (string, error) {
	if name == "" || path.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	p := path.Clean(name)
	if p == ".." || len(p) > 2 && p[:3] == "../" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return p, nil
}

// Chain tries each store in order and reads from the first one that has
// the file. A store that fails for any reason other than a missing file
// does not stop the search; its error is returned only when no later store
// has the file either.
type Chain []FileStore

func (c Chain) Read(ctx context.Context, name string) (io.ReadCloser, error) {
	var firstErr error
	for _, s := range c {
		r, err := s.Read(ctx, name)
		if err == nil {
			return r, nil
		}
		if firstErr == nil && !errors.Is(err, os.ErrNotExist) {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, firstErr)
	}
	return nil, fmt.Errorf("storage: read %s: %w", name, os.ErrNotExist)
}

func (c Chain) Exists(ctx context.Context, name string) (bool, error) {
	var firstErr error
	for _, s := range c {
		ok, err := s.Exists(ctx, name)
		if ok {
			return true, nil
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return false, firstErr
}
