// Package modulestest provides a scriptable in-memory module for tests of
// code that drives modules.Module values.
package modulestest

import "fmt"

// Call is one recorded interaction with a fake module.
type Call struct {
	Module string
	Op     string // "execute", "close" or "event:<name>"
}

func (c Call) String() string { return c.Module + " " + c.Op }

// Journal records calls across several fakes in the order they happened.
type Journal struct {
	Calls []Call
}

func (j *Journal) record(module, op string) {
	if j != nil {
		j.Calls = append(j.Calls, Call{Module: module, Op: op})
	}
}

// Count returns how often module saw op.
func (j *Journal) Count(module, op string) int {
	n := 0
	for _, c := range j.Calls {
		if c.Module == module && c.Op == op {
			n++
		}
	}
	return n
}

// Index returns the position of the first call matching module and op, or -1.
// An empty module matches any module.
func (j *Journal) Index(module, op string) int {
	for i, c := range j.Calls {
		if (module == "" || c.Module == module) && c.Op == op {
			return i
		}
	}
	return -1
}

// LastIndex returns the position of the last call matching module and op, or -1.
func (j *Journal) LastIndex(module, op string) int {
	for i := len(j.Calls) - 1; i >= 0; i-- {
		c := j.Calls[i]
		if (module == "" || c.Module == module) && c.Op == op {
			return i
		}
	}
	return -1
}

// Fake implements modules.Module.
type Fake struct {
	name    string
	journal *Journal
	active  bool
	closed  bool
	counts  map[string]int

	// OnEvent runs after an event is recorded; n is how many times the
	// event has been delivered so far, this one included.
	OnEvent func(f *Fake, event string, n int)
	// CloseErr is returned by Close.
	CloseErr error
}

func New(name string, journal *Journal) *Fake {
	return &Fake{name: name, journal: journal, active: true, counts: make(map[string]int)}
}

func (f *Fake) Name() string { return f.name }
func (f *Fake) Active() bool { return f.active && !f.closed }

func (f *Fake) Execute() {
	f.journal.record(f.name, "execute")
	f.counts["execute"]++
}

func (f *Fake) InvokeEvent(name string) {
	if f.closed {
		panic(fmt.Sprintf("event %q delivered to closed module %s", name, f.name))
	}
	f.journal.record(f.name, "event:"+name)
	f.counts[name]++
	if f.OnEvent != nil {
		f.OnEvent(f, name, f.counts[name])
	}
}

func (f *Fake) Close() error {
	f.journal.record(f.name, "close")
	f.closed = true
	return f.CloseErr
}

// Deactivate makes Active return false, like a script calling host.exit.
func (f *Fake) Deactivate() { f.active = false }

// Count returns how often the event (or "execute") was delivered.
func (f *Fake) Count(event string) int { return f.counts[event] }

func (f *Fake) Closed() bool { return f.closed }

// DeactivateOn returns an OnEvent hook that deactivates the module on the
// nth delivery of event.
func DeactivateOn(event string, nth int) func(*Fake, string, int) {
	return func(f *Fake, e string, n int) {
		if e == event && n == nth {
			f.Deactivate()
		}
	}
}
