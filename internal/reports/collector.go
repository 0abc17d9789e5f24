package reports

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tldr-it-stepankutaj/lunapad/internal/orchestrator"
)

// Collector observes an orchestrator and accumulates what a Report needs.
// It is safe to read from another goroutine while the session runs.
type Collector struct {
	id      string
	started time.Time

	mu         sync.Mutex
	modules    map[string]*ModuleSummary
	order      []string
	rejections []Rejection
	passes     int
	title      string
}

// NewCollector creates a collector with a fresh session ID.
func NewCollector() *Collector {
	return &Collector{
		id:      uuid.NewString(),
		started: time.Now(),
		modules: make(map[string]*ModuleSummary),
	}
}

// ID is the session ID the report will carry.
func (c *Collector) ID() string { return c.id }

// SetTitle names the report. The default title is derived from the ID.
func (c *Collector) SetTitle(title string) {
	c.mu.Lock()
	c.title = title
	c.mu.Unlock()
}

// Observe implements orchestrator.Observer.
func (c *Collector) Observe(ev orchestrator.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case orchestrator.EventLoaded:
		if _, seen := c.modules[ev.Module]; !seen {
			c.order = append(c.order, ev.Module)
		}
		c.modules[ev.Module] = &ModuleSummary{
			Name:         ev.Module,
			Libraries:    uint32(ev.Libraries),
			LibraryNames: ev.Libraries.Names(),
			LoadedAt:     ev.At,
		}
	case orchestrator.EventRejected, orchestrator.EventDiscarded:
		rej := Rejection{Module: ev.Module, Kind: ev.Kind.String(), At: ev.At}
		if ev.Err != nil {
			rej.Error = ev.Err.Error()
		}
		c.rejections = append(c.rejections, rej)
	case orchestrator.EventPass:
		c.passes = ev.Pass
		for name, state := range ev.Snapshots {
			if m, ok := c.modules[name]; ok {
				s := state
				m.LastState = &s
			}
		}
	case orchestrator.EventRemoved:
		m, ok := c.modules[ev.Module]
		if !ok {
			return
		}
		if ev.Reason == orchestrator.ReasonReset {
			c.forget(ev.Module)
			return
		}
		at := ev.At
		m.RemovedAt = &at
		m.RemovedPass = ev.Pass
		m.Ticks = ev.Ticks
		m.Reason = string(ev.Reason)
		m.ExitDelivered = true
		if ev.Err != nil {
			m.Error = ev.Err.Error()
		}
	}
}

// forget drops a module that never ran. c.mu must be held.
func (c *Collector) forget(name string) {
	delete(c.modules, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Modules returns a copy of the per-module summaries in load order.
func (c *Collector) Modules() []ModuleSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ModuleSummary, 0, len(c.order))
	for _, name := range c.order {
		if m, ok := c.modules[name]; ok {
			out = append(out, *m)
		}
	}
	return out
}

// Report builds the session report with meta.
func (c *Collector) Report(meta Metadata) *Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	if meta.StartedAt.IsZero() {
		meta.StartedAt = c.started
	}
	b := NewBuilder().SetID(c.id).SetPasses(c.passes).SetMetadata(meta)
	if c.title != "" {
		b.SetTitle(c.title)
	}
	for _, name := range c.order {
		if m, ok := c.modules[name]; ok {
			b.AddModule(*m)
		}
	}
	for _, rej := range c.rejections {
		b.AddRejection(rej)
	}
	return b.Build()
}
