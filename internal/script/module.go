// Package script binds one Lua source file to its own embedded Lua state
// and exposes the small surface the orchestrator drives: Execute once,
// then InvokeEvent by name until the module goes inactive.
package script

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Shopify/go-lua"

	"github.com/tldr-it-stepankutaj/lunapad/internal/device"
	"github.com/tldr-it-stepankutaj/lunapad/internal/xinput"
)

// chunkKey is the registry slot holding the loaded, not yet executed chunk.
const chunkKey = "lunapad.chunk"

// Module is one Lua source bound to one Lua state. It is not safe for
// concurrent use.
type Module struct {
	name      string
	libraries Libraries
	state     *lua.State
	logger    *slog.Logger
	driver    device.Driver
	now       func() time.Time
	started   time.Time

	snapshot xinput.Capabilities
	pad      device.Controller

	active   bool
	executed bool
	closed   bool
	err      *RuntimeError
	fatal    error // set when the device panicked under a host call
}

// Option configures a Module.
type Option func(*Module)

// WithDriver sets the virtual-controller driver used by controller.submit.
func WithDriver(d device.Driver) Option {
	return func(m *Module) { m.driver = d }
}

// WithLogger sets the logger for runtime errors and host.log output.
func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the time source behind host.clock.
func WithClock(now func() time.Time) Option {
	return func(m *Module) { m.now = now }
}

// New creates a Lua state with the library groups selected by libraries,
// registers the host bridge and parses source. When autoExecute is set the
// top-level chunk also runs before New returns; a failure there leaves an
// inactive module rather than an error.
//
// The returned error is an *EngineError matching ErrEngineInit when the
// source cannot be read or parsed, and ErrEngineFatal for anything that
// escapes the embedding, including a device panic during autoExecute.
func New(source string, autoExecute bool, libraries Libraries, opts ...Option) (m *Module, err error) {
	m = &Module{
		name:      source,
		libraries: libraries,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		snapshot:  xinput.Default(),
		active:    true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.started = m.now()

	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = &EngineError{Source: source, Kind: ErrEngineFatal, Err: fmt.Errorf("%v", r)}
		}
	}()

	l := lua.NewState()
	openLibraries(l, libraries)
	m.registerHost(l)
	if libraries&LibController != 0 {
		m.registerController(l)
	}
	if err := lua.LoadFile(l, source, ""); err != nil {
		return nil, &EngineError{Source: source, Kind: ErrEngineInit, Err: err}
	}
	l.SetField(lua.RegistryIndex, chunkKey)
	m.state = l

	if autoExecute {
		m.Execute()
		if m.err != nil && errors.Is(m.err, ErrEngineFatal) {
			cause := m.err.Err
			if cerr := m.Close(); cerr != nil {
				m.logger.Warn("close module after fatal error", "module", source, "error", cerr)
			}
			return nil, &EngineError{Source: source, Kind: ErrEngineFatal, Err: cause}
		}
	}
	return m, nil
}

func (m *Module) Name() string { return m.name }

// Libraries returns the mask the module was constructed with.
func (m *Module) Libraries() Libraries { return m.libraries }

// Active reports whether the module is still usable: false after a runtime
// error, after the script called host.exit, or after Close.
func (m *Module) Active() bool { return m.active && !m.closed }

// Snapshot returns a copy of the module's controller state.
func (m *Module) Snapshot() xinput.Capabilities { return m.snapshot }

// Execute runs the top-level chunk. Only the first call does anything.
func (m *Module) Execute() {
	if m.executed || m.closed || m.state == nil {
		return
	}
	m.executed = true
	if !m.active {
		return
	}
	l := m.state
	l.Field(lua.RegistryIndex, chunkKey)
	l.PushNil()
	l.SetField(lua.RegistryIndex, chunkKey)
	m.call("<chunk>")
}

// InvokeEvent calls the global function called name, if there is one.
// A missing handler is not an error. A failing handler deactivates the
// module.
func (m *Module) InvokeEvent(name string) {
	if m.closed || m.state == nil {
		return
	}
	l := m.state
	l.Global(name)
	if !l.IsFunction(-1) {
		l.Pop(1)
		return
	}
	m.call(name)
}

// call runs the function on top of the stack with no arguments. A panic
// that escapes the Lua state leaves it unusable, so the state is dropped
// and later events are ignored.
func (m *Module) call(event string) {
	top := m.state.Top() - 1
	defer func() {
		if r := recover(); r != nil {
			m.state = nil
			m.fail(event, fmt.Errorf("%w: %v", ErrEngineFatal, r))
		}
	}()
	if err := m.state.ProtectedCall(0, 0, 0); err != nil {
		m.state.SetTop(top)
		if m.fatal != nil {
			err = m.fatal
		}
		m.fail(event, err)
	}
}

func (m *Module) fail(event string, err error) {
	m.active = false
	m.err = &RuntimeError{Module: m.name, Event: event, Err: err}
	m.logger.Warn("module deactivated", "module", m.name, "event", event, "error", err)
}

// Err returns the runtime error that deactivated the module, if any.
func (m *Module) Err() error {
	if m.err == nil {
		return nil
	}
	return m.err
}

// Close unplugs the module's controller and drops its Lua state.
func (m *Module) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.active = false
	m.state = nil
	if m.pad != nil {
		pad := m.pad
		m.pad = nil
		if err := pad.Unplug(); err != nil {
			return fmt.Errorf("unplug controller of %s: %w", m.name, err)
		}
	}
	return nil
}
