package script

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineInit reports a script source that could not be read or parsed.
	ErrEngineInit = errors.New("script engine init failed")
	// ErrEngineFatal reports an unexpected failure inside the embedding.
	ErrEngineFatal = errors.New("script engine fatal error")
)

// EngineError is returned by New. It matches both its Kind
// (ErrEngineInit or ErrEngineFatal) and the underlying cause with errors.Is.
type EngineError struct {
	Source string
	Kind   error
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Source, e.Kind, e.Err)
}

func (e *EngineError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// RuntimeError describes a failure while running a module's chunk or one of
// its event handlers. It never leaves the module; it is logged and the module
// is deactivated.
type RuntimeError struct {
	Module string
	Event  string
	Err    error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("module %s: event %q: %v", e.Module, e.Event, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }
