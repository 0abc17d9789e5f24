// Package session binds the command-line flags to an orchestrator and runs
// one configure-then-loop session.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tldr-it-stepankutaj/lunapad/internal/dispatch"
	"github.com/tldr-it-stepankutaj/lunapad/internal/orchestrator"
	"github.com/tldr-it-stepankutaj/lunapad/internal/script"
)

// Title heads the rendered help.
const Title = "lunapad"

// Session owns the flag table and the orchestrator it configures.
type Session struct {
	orch   *orchestrator.Orchestrator
	table  *dispatch.Table
	out    io.Writer
	logger *slog.Logger

	cfgErr error
}

// New builds a session around orch. Help is written to out.
func New(orch *orchestrator.Orchestrator, out io.Writer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Session{orch: orch, out: out, logger: logger}
	s.table = dispatch.NewTable(Title)
	s.table.Register("-h", s.help, "Show this help")
	s.table.Alias("--help", "-h")
	s.table.Register("-m", s.loadModules, "Load the given module scripts (-m a.lua b.lua ...)")
	s.table.Alias("--modules", "-m")
	s.table.Register("-l", s.setLibraries,
		fmt.Sprintf("Set the library mask for modules loaded after it (default %d)", uint32(script.LibRecommended)))
	s.table.Alias("--libraries", "-l")
	return s
}

func (s *Session) Orchestrator() *orchestrator.Orchestrator { return s.orch }
func (s *Session) Table() *dispatch.Table                   { return s.table }

// Configure dispatches args. An empty command line renders help. A
// malformed one renders help, clears every module loaded so far and is
// returned as a *dispatch.ConfigError.
func (s *Session) Configure(args []string) error {
	s.cfgErr = nil
	if len(args) == 0 {
		s.table.RenderHelp(s.out)
		return nil
	}
	res, err := s.table.Dispatch(args)
	if err != nil {
		s.reject(err)
	}
	s.logger.Debug("command line dispatched", "result", res.String(), "modules", s.orch.Registry().Len())
	return s.cfgErr
}

// Run configures the session and runs the orchestrator loop. Configuration
// problems end in help and an empty loop; only teardown failures are
// returned.
func (s *Session) Run(ctx context.Context, args []string) error {
	_ = s.Configure(args)
	return s.orch.Run(ctx)
}

func (s *Session) help([]string) bool {
	s.table.RenderHelp(s.out)
	return false
}

func (s *Session) loadModules(args []string) bool {
	if len(args) == 0 {
		s.reject(&dispatch.ConfigError{Token: "-m", Reason: "no module given"})
		return false
	}
	// A failed batch is already logged and leaves earlier modules in place.
	if err := s.orch.Load(args...); err != nil {
		var lerr *orchestrator.LoadError
		if !errors.As(err, &lerr) {
			s.logger.Error("load modules", "error", err)
		}
	}
	return true
}

func (s *Session) setLibraries(args []string) bool {
	if len(args) != 1 {
		s.reject(&dispatch.ConfigError{Token: "-l", Reason: "expected exactly one library mask"})
		return false
	}
	libs, err := script.ParseLibraries(args[0])
	if err != nil {
		s.reject(&dispatch.ConfigError{Token: args[0], Reason: "invalid library mask"})
		return false
	}
	s.orch.SetLibraries(libs)
	return true
}

func (s *Session) reject(err error) {
	s.cfgErr = err
	s.logger.Warn("invalid command line", "error", err)
	s.table.RenderHelp(s.out)
	if cerr := s.orch.Reset(); cerr != nil {
		s.logger.Warn("clear modules", "error", cerr)
	}
}
