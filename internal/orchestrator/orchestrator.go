// Package orchestrator drives loaded modules through their lifecycle:
// load, execute, init, a fixed-cadence tick loop, exit and teardown.
//
// Everything here runs on one goroutine. The only suspension point is the
// sleep between tick passes; a module that blocks in a handler stalls the
// whole loop. Modules leave the loop by going inactive, which is observed
// at pass boundaries, and are removed only after the pass that noticed it
// has finished iterating.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tldr-it-stepankutaj/lunapad/internal/modules"
	"github.com/tldr-it-stepankutaj/lunapad/internal/script"
	"github.com/tldr-it-stepankutaj/lunapad/internal/xinput"
)

// Event names delivered to modules.
const (
	EventInit = "init"
	EventTick = "tick"
	EventExit = "exit"
)

// DefaultInterval is the pause between two tick passes.
const DefaultInterval = 5 * time.Millisecond

// ErrNilModule is reported when a factory returns neither a module nor an error.
var ErrNilModule = errors.New("factory returned no module")

// Factory constructs a module from a source identifier with the library
// mask current at the time of the call.
type Factory func(source string, autoExecute bool, libraries script.Libraries) (modules.Module, error)

// LoadError reports a module that could not be constructed. It aborted the
// rest of its load batch.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load module %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Snapshotter is implemented by modules that drive a controller.
type Snapshotter interface {
	Snapshot() xinput.Capabilities
}

// Orchestrator owns the module registry and the polling loop.
type Orchestrator struct {
	registry    *modules.Registry
	factory     Factory
	libraries   script.Libraries
	autoExecute bool
	interval    time.Duration
	logger      *slog.Logger
	observers   []Observer
	sleep       func(context.Context, time.Duration) error
	now         func() time.Time

	phase Phase
	pass  int
	ticks map[string]int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLibraries sets the initial library mask.
func WithLibraries(l script.Libraries) Option {
	return func(o *Orchestrator) { o.libraries = l }
}

// WithAutoExecute makes the factory run each chunk at construction.
func WithAutoExecute(v bool) Option {
	return func(o *Orchestrator) { o.autoExecute = v }
}

// WithInterval sets the pause between tick passes. Zero disables it.
func WithInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.interval = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver subscribes obs to lifecycle events.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs) }
}

// WithSleep replaces the inter-pass sleep.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

func New(factory Factory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:  modules.NewRegistry(),
		factory:   factory,
		libraries: script.LibRecommended,
		interval:  DefaultInterval,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		sleep:     sleepContext,
		now:       time.Now,
		phase:     PhaseConfiguring,
		ticks:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Registry() *modules.Registry { return o.registry }
func (o *Orchestrator) Phase() Phase                { return o.phase }
func (o *Orchestrator) Libraries() script.Libraries { return o.libraries }

// Passes returns how many tick passes have run.
func (o *Orchestrator) Passes() int { return o.pass }

// SetLibraries changes the mask used by every later Load.
func (o *Orchestrator) SetLibraries(l script.Libraries) {
	o.libraries = l
	o.logger.Debug("library mask changed", "libraries", l.String())
	o.emit(Event{Kind: EventLibraries, Libraries: l})
}

// Load constructs and registers each source that is not registered yet,
// in order. Modules that come back inactive are closed and skipped. The
// first construction error stops the batch and is returned as a
// *LoadError; modules registered before it stay.
func (o *Orchestrator) Load(sources ...string) error {
	o.setPhase(PhaseLoading)
	defer o.setPhase(PhaseConfiguring)

	for _, src := range sources {
		if o.registry.Has(src) {
			o.logger.Debug("module already loaded", "module", src)
			continue
		}
		m, err := o.factory(src, o.autoExecute, o.libraries)
		if err == nil && m == nil {
			err = ErrNilModule
		}
		if err != nil {
			lerr := &LoadError{Source: src, Err: err}
			o.logger.Error("module load failed", "module", src, "error", err)
			o.emit(Event{Kind: EventRejected, Module: src, Err: lerr})
			return lerr
		}
		if !m.Active() {
			o.logger.Warn("module inactive after load, discarded", "module", src)
			if err := m.Close(); err != nil {
				o.logger.Warn("close discarded module", "module", src, "error", err)
			}
			o.emit(Event{Kind: EventDiscarded, Module: src})
			continue
		}
		o.registry.Insert(m)
		o.logger.Info("module loaded", "module", src, "libraries", o.libraries.String())
		o.emit(Event{Kind: EventLoaded, Module: src, Libraries: o.libraries})
	}
	return nil
}

// Reset closes and forgets every registered module without delivering
// exit. Used when the configuration turns out to be invalid before the
// loop starts. Each module is reported as removed with ReasonReset.
func (o *Orchestrator) Reset() error {
	all := o.registry.All()
	var errs []error
	for _, m := range all {
		o.registry.Remove(m.Name())
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close module %s: %w", m.Name(), err))
		}
		o.emit(Event{Kind: EventRemoved, Module: m.Name(), Reason: ReasonReset})
		delete(o.ticks, m.Name())
	}
	if len(all) > 0 {
		o.logger.Info("modules cleared", "count", len(all))
	}
	return errors.Join(errs...)
}

// Run drives the registered modules until none is left or ctx is done,
// then delivers exit to whatever remains and tears everything down. The
// returned error only reports failures to close modules.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.setPhase(PhaseInit)
	o.registry.ForEach(func(m modules.Module) { m.Execute() })
	o.registry.ForEach(func(m modules.Module) { m.InvokeEvent(EventInit) })

	o.setPhase(PhaseTick)
	var closeErrs []error
	for !o.registry.Empty() {
		if ctx.Err() != nil {
			o.logger.Info("stopping tick loop", "reason", ctx.Err(), "remaining", o.registry.Len())
			break
		}
		closeErrs = append(closeErrs, o.tick()...)
		if o.registry.Empty() {
			break
		}
		if err := o.sleep(ctx, o.interval); err != nil {
			o.logger.Info("stopping tick loop", "reason", err, "remaining", o.registry.Len())
			break
		}
	}

	o.setPhase(PhaseExit)
	for _, m := range o.registry.All() {
		if err := o.retire(m, ReasonDrained); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}

	o.setPhase(PhaseDrained)
	if err := o.registry.Clear(); err != nil {
		closeErrs = append(closeErrs, err)
	}
	return errors.Join(closeErrs...)
}

// tick runs one pass: dispatch to every active module, collect the ones
// that are or became inactive, and only then remove them.
func (o *Orchestrator) tick() []error {
	o.pass++
	var disabled []modules.Module
	o.registry.ForEach(func(m modules.Module) {
		if !m.Active() {
			disabled = append(disabled, m)
			return
		}
		m.InvokeEvent(EventTick)
		o.ticks[m.Name()]++
		if !m.Active() {
			disabled = append(disabled, m)
		}
	})

	var errs []error
	for _, m := range disabled {
		if err := o.retire(m, removalReason(m)); err != nil {
			errs = append(errs, err)
		}
	}
	o.emitPass()
	return errs
}

// retire delivers exit, removes the module and closes it.
func (o *Orchestrator) retire(m modules.Module, reason Reason) error {
	m.InvokeEvent(EventExit)
	o.registry.Remove(m.Name())
	err := m.Close()
	o.logger.Info("module removed", "module", m.Name(), "reason", reason, "pass", o.pass)
	o.emit(Event{Kind: EventRemoved, Module: m.Name(), Reason: reason, Err: moduleErr(m), Ticks: o.ticks[m.Name()]})
	delete(o.ticks, m.Name())
	if err != nil {
		return fmt.Errorf("close module %s: %w", m.Name(), err)
	}
	return nil
}

func (o *Orchestrator) emitPass() {
	if len(o.observers) == 0 {
		return
	}
	ev := Event{Kind: EventPass, Remaining: o.registry.Names()}
	o.registry.ForEach(func(m modules.Module) {
		if s, ok := m.(Snapshotter); ok {
			if ev.Snapshots == nil {
				ev.Snapshots = make(map[string]xinput.Capabilities)
			}
			ev.Snapshots[m.Name()] = s.Snapshot()
		}
	})
	o.emit(ev)
}

func (o *Orchestrator) setPhase(p Phase) {
	if o.phase == p {
		return
	}
	o.phase = p
	o.logger.Debug("phase", "phase", p.String())
	o.emit(Event{Kind: EventPhase})
}

func (o *Orchestrator) emit(ev Event) {
	if len(o.observers) == 0 {
		return
	}
	ev.Phase = o.phase
	ev.Pass = o.pass
	ev.At = o.now()
	for _, obs := range o.observers {
		obs.Observe(ev)
	}
}

func removalReason(m modules.Module) Reason {
	if moduleErr(m) != nil {
		return ReasonError
	}
	return ReasonInactive
}

func moduleErr(m modules.Module) error {
	if e, ok := m.(interface{ Err() error }); ok {
		return e.Err()
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
