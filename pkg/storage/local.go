package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local reads files below a directory on disk.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir. The directory must exist.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: abs, Err: errors.New("not a directory")}
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string { return l.root }

func (l *Local) resolve(name string) (string, error) {
	p, err := cleanPath(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(p)), nil
}

func (l *Local) Read(_ context.Context, name string) (io.ReadCloser, error) {
	full, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (l *Local) Exists(_ context.Context, name string) (bool, error) {
	full, err := l.resolve(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// FS reads from an fs.FS, typically an embed.FS of bundled scripts.
type FS struct {
	fsys fs.FS
}

// NewFS wraps fsys. Use fs.Sub to root it at a subdirectory.
func NewFS(fsys fs.FS) *FS {
	return &FS{fsys: fsys}
}

func (f *FS) Read(_ context.Context, name string) (io.ReadCloser, error) {
	p, err := cleanPath(name)
	if err != nil {
		return nil, err
	}
	return f.fsys.Open(p)
}

func (f *FS) Exists(_ context.Context, name string) (bool, error) {
	p, err := cleanPath(name)
	if err != nil {
		return false, err
	}
	_, err = fs.Stat(f.fsys, p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

var (
	_ FileStore = (*Local)(nil)
	_ FileStore = (*FS)(nil)
	_ FileStore = Chain(nil)
)
