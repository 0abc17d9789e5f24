// Package dispatch maps command-line flags to handler functions.
//
// A token starting with "-" is a flag; every token after it up to the next
// flag is passed to its handler. A handler returning false stops the rest
// of the command line. An unknown flag, or a first token that is not a flag,
// is a *ConfigError.
package dispatch

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Handler consumes the positional arguments that follow its flag.
type Handler func(args []string) bool

// Command is one entry of a Table.
type Command struct {
	Handler Handler
	Help    string
	// Canonical marks the form listed in help; aliases leave it false.
	Canonical bool
}

// Result tells how far Dispatch got.
type Result int

const (
	// Completed means every flag was handled.
	Completed Result = iota
	// Stopped means a handler returned false.
	Stopped
	// Rejected means the command line was malformed.
	Rejected
)

func (r Result) String() string {
	switch r {
	case Completed:
		return "completed"
	case Stopped:
		return "stopped"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// ConfigError reports a malformed command line.
type ConfigError struct {
	Token  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Token == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.Token)
}

// Table is a flag → command lookup table.
type Table struct {
	title    string
	commands map[string]Command
}

// NewTable creates an empty table; title heads the rendered help.
func NewTable(title string) *Table {
	return &Table{title: title, commands: make(map[string]Command)}
}

// Register adds a canonical flag.
func (t *Table) Register(flag string, h Handler, help string) {
	t.commands[flag] = Command{Handler: h, Help: help, Canonical: true}
}

// Alias makes alias run the handler of flag. It is left out of help.
func (t *Table) Alias(alias, flag string) {
	cmd, ok := t.commands[flag]
	if !ok {
		panic(fmt.Sprintf("dispatch: alias %s for unknown flag %s", alias, flag))
	}
	t.commands[alias] = Command{Handler: cmd.Handler}
}

func (t *Table) Lookup(flag string) (Command, bool) {
	cmd, ok := t.commands[flag]
	return cmd, ok
}

// Flags lists every registered flag, aliases included, in sorted order.
func (t *Table) Flags() []string {
	flags := make([]string, 0, len(t.commands))
	for f := range t.commands {
		flags = append(flags, f)
	}
	sort.Strings(flags)
	return flags
}

// RenderHelp writes the canonical flags and their help text.
func (t *Table) RenderHelp(w io.Writer) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s help:\n", t.title)
	for _, flag := range t.Flags() {
		cmd := t.commands[flag]
		if !cmd.Canonical {
			continue
		}
		fmt.Fprintf(&b, "\t%s\n\t\t%s\n", flag, cmd.Help)
	}
	b.WriteString("End of help topic\n")
	_, _ = io.WriteString(w, b.String())
}

// Dispatch walks args and runs the handler of every flag in order.
func (t *Table) Dispatch(args []string) (Result, error) {
	for i := 0; i < len(args); {
		tok := args[i]
		if !isFlag(tok) {
			return Rejected, &ConfigError{Token: tok, Reason: "expected a flag"}
		}
		cmd, ok := t.commands[tok]
		if !ok {
			return Rejected, &ConfigError{Token: tok, Reason: "unknown flag"}
		}
		j := i + 1
		for j < len(args) && !isFlag(args[j]) {
			j++
		}
		if !cmd.Handler(args[i+1 : j : j]) {
			return Stopped, nil
		}
		i = j
	}
	return Completed, nil
}

func isFlag(tok string) bool {
	return strings.HasPrefix(tok, "-")
}
