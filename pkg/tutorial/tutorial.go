// Package tutorial holds the guided lessons for luabind.
//
// Every lesson creates a fresh Interpreter, registers its host bindings,
// loads one script from the lesson store and makes a few demonstrative
// calls, reporting what happens on a cli.Console. The scripts ship embedded
// in the binary; a directory or S3 prefix placed in front of them through
// Env.Store overrides individual files.
package tutorial

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"

	"github.com/haivivi/luabind/pkg/cli"
	"github.com/haivivi/luabind/pkg/kv"
	"github.com/haivivi/luabind/pkg/luabind"
	"github.com/haivivi/luabind/pkg/luabind/runtime"
	"github.com/haivivi/luabind/pkg/storage"
)

//go:embed scripts/*.lua
var embedded embed.FS

// ErrUnknownLesson is returned by Lookup for names that are not registered.
var ErrUnknownLesson = errors.New("tutorial: unknown lesson")

// Scripts returns the embedded lesson scripts, rooted at the script names.
func Scripts() fs.FS {
	sub, err := fs.Sub(embedded, "scripts")
	if err != nil {
		panic(err)
	}
	return sub
}

// DefaultStore serves the embedded lesson scripts.
func DefaultStore() storage.FileStore {
	return storage.NewFS(Scripts())
}

// Env is what a lesson runs against.
type Env struct {
	// Store supplies the lesson scripts. Defaults to DefaultStore.
	Store storage.FileStore

	// Console receives lesson output and script print output.
	Console *cli.Console

	// Logger is passed to the interpreter. Defaults to slog.Default().
	Logger *slog.Logger

	// KV backs the kvs_* builtins. Defaults to a fresh in-memory store.
	KV kv.Store

	// Options are applied to every interpreter after the defaults.
	Options []luabind.Option

	// AfterRun, if set, sees each interpreter right before it is closed.
	AfterRun func(in *luabind.Interpreter)
}

func (env *Env) store() storage.FileStore {
	if env.Store != nil {
		return env.Store
	}
	return DefaultStore()
}

func (env *Env) logger() *slog.Logger {
	if env.Logger != nil {
		return env.Logger
	}
	return slog.Default()
}

// Interpreter creates an interpreter with print routed to the console and
// the runtime builtins installed. The caller closes it.
func (env *Env) Interpreter(ctx context.Context) (*luabind.Interpreter, error) {
	opts := []luabind.Option{
		luabind.WithLogger(env.logger()),
		luabind.WithStdout(env.Console.Writer()),
	}
	in, err := luabind.New(append(opts, env.Options...)...)
	if err != nil {
		return nil, err
	}
	rt := runtime.New(in,
		runtime.WithContext(ctx),
		runtime.WithStore(env.store()),
		runtime.WithKV(env.KV),
		runtime.WithLogger(env.logger()),
	)
	if err := rt.RegisterBuiltins(); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

// Release runs AfterRun and closes in.
func (env *Env) Release(in *luabind.Interpreter) {
	if env.AfterRun != nil {
		env.AfterRun(in)
	}
	in.Close()
}

// Load reads the named script from the store and runs it in in.
func (env *Env) Load(ctx context.Context, in *luabind.Interpreter, name string) error {
	src, err := storage.ReadFile(ctx, env.store(), name)
	if err != nil {
		return &luabind.LoadError{Name: name, Stage: luabind.StageRead, Message: err.Error(), Err: err}
	}
	if err := in.LoadString(name, string(src)); err != nil {
		return err
	}
	env.Console.Success("script loaded: %s", name)
	return nil
}

// Lesson is one runnable tutorial step.
type Lesson struct {
	// Name is the command-line name, e.g. "character".
	Name string

	// Short is a one-line description.
	Short string

	// Script is the script the lesson loads.
	Script string

	// Run executes the lesson.
	Run func(ctx context.Context, env *Env) error
}

// Exec prints the lesson heading and runs it.
func (l *Lesson) Exec(ctx context.Context, env *Env) error {
	env.Console.Heading(fmt.Sprintf("%s: %s", l.Name, l.Short))
	if err := l.Run(ctx, env); err != nil {
		return fmt.Errorf("lesson %s: %w", l.Name, err)
	}
	return nil
}

var lessons = []*Lesson{
	helloLesson,
	functionsLesson,
	hostFuncLesson,
	damageLesson,
	unitsLesson,
	characterLesson,
	inheritLesson,
	nestedLesson,
}

// Lessons returns every lesson in teaching order.
func Lessons() []*Lesson {
	return slices.Clone(lessons)
}

// Lookup finds a lesson by name.
func Lookup(name string) (*Lesson, error) {
	for _, l := range lessons {
		if l.Name == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLesson, name)
}
