package luabind

import (
	"errors"
	"fmt"
)

// Error types returned by binding operations.
var (
	ErrScriptLoad     = errors.New("luabind: script load error")
	ErrNotCallable    = errors.New("luabind: not callable")
	ErrTypeMismatch   = errors.New("luabind: wrong handle type")
	ErrMethodNotFound = errors.New("luabind: no such method")
	ErrScriptRuntime  = errors.New("luabind: runtime error")
	ErrFallbackCycle  = errors.New("luabind: fallback chain too deep")
	ErrHandleReleased = errors.New("luabind: handle used after release")
	ErrBadArgument    = errors.New("luabind: bad argument")
	ErrClosed         = errors.New("luabind: interpreter closed")
)

// LoadStage tells which half of loading a script failed.
type LoadStage string

const (
	StageRead    LoadStage = "read"
	StageCompile LoadStage = "compile"
	StageRun     LoadStage = "run"
)

// LoadError is returned when a script cannot be read, compiled or run as a
// chunk. It matches ErrScriptLoad with errors.Is.
type LoadError struct {
	Name    string
	Stage   LoadStage
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("luabind: load %s (%s): %s", e.Name, e.Stage, e.Message)
}

func (e *LoadError) Is(target error) bool { return target == ErrScriptLoad }

func (e *LoadError) Unwrap() error { return e.Err }

// ScriptError carries the message of a failure raised inside script code
// while the host was calling into it. It matches ErrScriptRuntime.
type ScriptError struct {
	// Func is the name of the called function ("" for anonymous values).
	Func string

	// Message is the script-side error text, including the position prefix
	// added by the interpreter.
	Message string

	// Traceback is the interpreter stack trace, if one was captured.
	Traceback string

	// Cause is the host error raised by a callback, when the failure started
	// on the host side of a nested call.
	Cause error
}

func (e *ScriptError) Error() string {
	if e.Func == "" {
		return fmt.Sprintf("%v: %s", ErrScriptRuntime, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", ErrScriptRuntime, e.Func, e.Message)
}

func (e *ScriptError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrScriptRuntime, e.Cause}
	}
	return []error{ErrScriptRuntime}
}
