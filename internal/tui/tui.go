package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tldr-it-stepankutaj/lunapad/internal/app"
	"github.com/tldr-it-stepankutaj/lunapad/internal/orchestrator"
	"github.com/tldr-it-stepankutaj/lunapad/internal/xinput"
)

// SessionFunc runs one orchestrator session, reporting to obs, until it
// drains or ctx is cancelled.
type SessionFunc func(ctx context.Context, obs orchestrator.Observer) error

type eventMsg orchestrator.Event

type doneMsg struct{ err error }

const maxLog = 8

type row struct {
	name      string
	libraries string
	state     xinput.Capabilities
	hasState  bool
	removed   bool
	reason    orchestrator.Reason
	ticks     int
}

// model is a minimal Bubble Tea model. No icons, plain text only.
type model struct {
	cancel   context.CancelFunc
	phase    orchestrator.Phase
	pass     int
	rows     map[string]*row
	order    []string
	log      []string
	stopping bool
	done     bool
	err      error
}

func newModel(cancel context.CancelFunc) model {
	return model{cancel: cancel, rows: make(map[string]*row)}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc":
			if m.done || m.stopping {
				return m, tea.Quit
			}
			m.stopping = true
			m.addLog("stopping, delivering exit to remaining modules")
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		case "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case eventMsg:
		m.apply(orchestrator.Event(msg))
	case doneMsg:
		m.done = true
		m.err = msg.err
		if msg.err != nil {
			m.addLog("session ended with error: " + msg.err.Error())
		} else {
			m.addLog("session drained")
		}
	}
	return m, nil
}

func (m *model) apply(ev orchestrator.Event) {
	m.phase = ev.Phase
	m.pass = ev.Pass
	switch ev.Kind {
	case orchestrator.EventLoaded:
		if _, ok := m.rows[ev.Module]; !ok {
			m.order = append(m.order, ev.Module)
		}
		m.rows[ev.Module] = &row{name: ev.Module, libraries: ev.Libraries.String()}
		m.addLog("loaded " + ev.Module)
	case orchestrator.EventRejected, orchestrator.EventDiscarded:
		line := fmt.Sprintf("%s %s", ev.Kind, ev.Module)
		if ev.Err != nil {
			line += ": " + ev.Err.Error()
		}
		m.addLog(line)
	case orchestrator.EventPass:
		for name, state := range ev.Snapshots {
			if r, ok := m.rows[name]; ok {
				r.state = state
				r.hasState = true
			}
		}
	case orchestrator.EventRemoved:
		if r, ok := m.rows[ev.Module]; ok {
			r.removed = true
			r.reason = ev.Reason
			r.ticks = ev.Ticks
		}
		line := fmt.Sprintf("removed %s (%s) in pass %d", ev.Module, ev.Reason, ev.Pass)
		if ev.Err != nil {
			line += ": " + ev.Err.Error()
		}
		m.addLog(line)
	}
}

func (m *model) addLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxLog {
		m.log = m.log[len(m.log)-maxLog:]
	}
}

func (m model) active() int {
	n := 0
	for _, r := range m.rows {
		if !r.removed {
			n++
		}
	}
	return n
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString("lunapad monitor (press 'q' to stop, twice to quit)\n")
	fmt.Fprintf(&b, "Phase: %s  Pass: %d  Active: %d\n\n", m.phase, m.pass, m.active())

	names := append([]string(nil), m.order...)
	sort.SliceStable(names, func(i, j int) bool {
		return !m.rows[names[i]].removed && m.rows[names[j]].removed
	})
	for _, name := range names {
		r := m.rows[name]
		status := "running"
		if r.removed {
			status = fmt.Sprintf("%s after %d ticks", r.reason, r.ticks)
		}
		fmt.Fprintf(&b, "%-24s %-20s %s\n", r.name, status, r.libraries)
		if r.hasState {
			fmt.Fprintf(&b, "    %s\n", r.state)
		}
	}

	if len(m.log) > 0 {
		b.WriteString("\n")
		for _, line := range m.log {
			b.WriteString("  " + line + "\n")
		}
	}
	if m.done {
		b.WriteString("\nStatus: done, press 'q' to quit.\n")
	}
	return b.String()
}

// Run starts the TUI and runs session on its own goroutine. Events reach the
// model as messages, so the orchestrator never touches the model directly.
func Run(appCtx app.Context, session SessionFunc) error {
	parent := appCtx.Ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	p := tea.NewProgram(newModel(cancel))
	result := make(chan error, 1)
	go func() {
		err := session(ctx, orchestrator.ObserverFunc(func(ev orchestrator.Event) {
			p.Send(eventMsg(ev))
		}))
		result <- err
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		return err
	}
	cancel()
	return <-result
}
