package luabind

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Lib names a standard script library that can be opened in an Interpreter.
type Lib string

const (
	LibBase      Lib = "base"
	LibPackage   Lib = "package"
	LibTable     Lib = "table"
	LibString    Lib = "string"
	LibMath      Lib = "math"
	LibIO        Lib = "io"
	LibOS        Lib = "os"
	LibCoroutine Lib = "coroutine"
	LibDebug     Lib = "debug"
)

var libOpeners = map[Lib]struct {
	name string
	fn   lua.LGFunction
}{
	LibBase:      {lua.BaseLibName, lua.OpenBase},
	LibPackage:   {lua.LoadLibName, lua.OpenPackage},
	LibTable:     {lua.TabLibName, lua.OpenTable},
	LibString:    {lua.StringLibName, lua.OpenString},
	LibMath:      {lua.MathLibName, lua.OpenMath},
	LibIO:        {lua.IoLibName, lua.OpenIo},
	LibOS:        {lua.OsLibName, lua.OpenOs},
	LibCoroutine: {lua.CoroutineLibName, lua.OpenCoroutine},
	LibDebug:     {lua.DebugLibName, lua.OpenDebug},
}

// DefaultLibs is opened when no WithLibs option is given.
var DefaultLibs = []Lib{LibBase, LibPackage, LibTable, LibString, LibMath, LibIO, LibOS, LibCoroutine}

// Interpreter is one embedded script interpreter together with its dispatch
// registry and call bridge.
//
// Lifecycle: New, register bindings, load scripts, call, Close. An
// Interpreter must only be used from one goroutine at a time.
type Interpreter struct {
	L      *lua.LState
	reg    *Registry
	logger *slog.Logger

	libs     []Lib
	stdout   io.Writer
	maxDepth int

	live  *liveness
	trace *traceRing

	metatables map[string]*lua.LTable
	indexFn    *lua.LFunction

	// cur is the thread running the innermost host callback, so that nested
	// calls made by a callback run on the caller's thread.
	cur   *lua.LState
	depth int

	raised []raisedError
}

type raisedError struct {
	msg string
	err error
}

// maxRaised bounds the host errors remembered for ScriptError.Cause.
const maxRaised = 16

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger for boundary crossings. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(in *Interpreter) {
		in.logger = logger
	}
}

// WithRegistry uses reg instead of a fresh registry. The registry must not
// be shared with another Interpreter.
func WithRegistry(reg *Registry) Option {
	return func(in *Interpreter) {
		in.reg = reg
	}
}

// WithLibs selects the standard libraries to open.
func WithLibs(libs ...Lib) Option {
	return func(in *Interpreter) {
		in.libs = libs
	}
}

// WithStdout redirects the script print function to w.
func WithStdout(w io.Writer) Option {
	return func(in *Interpreter) {
		in.stdout = w
	}
}

// WithLivenessCheck turns on handle generation tracking, so that handles
// to objects passed to Release fail to unwrap.
func WithLivenessCheck(enabled bool) Option {
	return func(in *Interpreter) {
		if enabled {
			in.live = newLiveness()
		} else {
			in.live = nil
		}
	}
}

// WithMaxFallbackDepth bounds fallback chain traversal.
func WithMaxFallbackDepth(n int) Option {
	return func(in *Interpreter) {
		in.maxDepth = n
	}
}

// WithTrace keeps the last n boundary crossings, readable through Trace.
func WithTrace(n int) Option {
	return func(in *Interpreter) {
		in.trace = newTraceRing(n)
	}
}

// New creates an Interpreter with the selected libraries opened.
func New(opts ...Option) (*Interpreter, error) {
	in := &Interpreter{
		libs:       DefaultLibs,
		metatables: make(map[string]*lua.LTable),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.reg == nil {
		in.reg = NewRegistry()
	}
	if in.maxDepth > 0 {
		in.reg.SetMaxDepth(in.maxDepth)
	}
	if in.logger == nil {
		in.logger = slog.Default()
	}

	in.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range in.libs {
		if err := in.openLib(lib); err != nil {
			in.L.Close()
			return nil, err
		}
	}
	if in.stdout != nil {
		in.L.SetGlobal("print", in.L.NewFunction(in.print))
	}
	in.indexFn = in.L.NewFunction(in.indexHandle)
	return in, nil
}

func (in *Interpreter) openLib(lib Lib) error {
	opener, ok := libOpeners[lib]
	if !ok {
		return fmt.Errorf("luabind: unknown library %q", lib)
	}
	return in.L.CallByParam(lua.P{
		Fn:      in.L.NewFunction(opener.fn),
		NRet:    0,
		Protect: true,
	}, lua.LString(opener.name))
}

// print mirrors the base library print but writes to the configured writer.
func (in *Interpreter) print(L *lua.LState) int {
	var buf bytes.Buffer
	for i := 1; i <= L.GetTop(); i++ {
		if i > 1 {
			buf.WriteByte('\t')
		}
		buf.WriteString(L.ToStringMeta(L.Get(i)).String())
	}
	buf.WriteByte('\n')
	_, _ = in.stdout.Write(buf.Bytes())
	return 0
}

// Close releases the interpreter. It is safe to call more than once.
func (in *Interpreter) Close() {
	if in.L == nil {
		return
	}
	in.L.Close()
	in.L = nil
	in.metatables = nil
}

// Registry returns the dispatch registry of this interpreter.
func (in *Interpreter) Registry() *Registry { return in.reg }

// Logger returns the interpreter logger.
func (in *Interpreter) Logger() *slog.Logger { return in.logger }

// Depth returns how many boundary calls are currently nested.
func (in *Interpreter) Depth() int { return in.depth }

// Trace returns the recorded crossings, oldest first. It is empty unless
// WithTrace was given.
func (in *Interpreter) Trace() []Crossing { return in.trace.items() }

// Register binds a host callback to method on tag. It is shorthand for
// Registry().Register.
func (in *Interpreter) Register(tag, method string, cb Callback) error {
	return in.reg.Register(tag, method, cb)
}

// SetFallback is shorthand for Registry().SetFallback.
func (in *Interpreter) SetFallback(tag, parent string) error {
	return in.reg.SetFallback(tag, parent)
}

// state returns the thread host calls should run on.
func (in *Interpreter) state() *lua.LState {
	if in.cur != nil {
		return in.cur
	}
	return in.L
}

// LoadString compiles src as a chunk called name and runs it.
func (in *Interpreter) LoadString(name, src string) error {
	_, err := in.Exec(name, src, 0)
	return err
}

// LoadFile reads, compiles and runs the script at path.
func (in *Interpreter) LoadFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{Name: path, Stage: StageRead, Message: err.Error(), Err: err}
	}
	return in.LoadString(filepath.Base(path), string(src))
}

// LoadReader reads a whole script from r and runs it as chunk name.
func (in *Interpreter) LoadReader(name string, r io.Reader) error {
	src, err := io.ReadAll(r)
	if err != nil {
		return &LoadError{Name: name, Stage: StageRead, Message: err.Error(), Err: err}
	}
	return in.LoadString(name, string(src))
}

// Exec compiles src as chunk name, runs it, and returns nret of its results
// (all of them with MultRet). Compile and run failures are LoadErrors.
func (in *Interpreter) Exec(name, src string, nret int) ([]Value, error) {
	if in.L == nil {
		return nil, ErrClosed
	}
	L := in.state()
	fn, err := L.Load(strings.NewReader(src), name)
	if err != nil {
		in.logger.Debug("script compile failed", "name", name, "error", err)
		return nil, &LoadError{Name: name, Stage: StageCompile, Message: apiMessage(err), Err: err}
	}
	in.logger.Debug("script loaded", "name", name, "bytes", len(src))
	rets, err := in.callLua(fn, name, nret, nil)
	if err != nil {
		msg := err.Error()
		if se, ok := err.(*ScriptError); ok {
			msg = se.Message
		}
		return nil, &LoadError{Name: name, Stage: StageRun, Message: msg, Err: err}
	}
	return rets, nil
}

func apiMessage(err error) string {
	if apiErr, ok := err.(*lua.ApiError); ok && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return err.Error()
}
