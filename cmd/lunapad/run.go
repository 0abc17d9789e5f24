package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/tldr-it-stepankutaj/lunapad/internal/app"
	"github.com/tldr-it-stepankutaj/lunapad/internal/device"
	"github.com/tldr-it-stepankutaj/lunapad/internal/logging"
	"github.com/tldr-it-stepankutaj/lunapad/internal/orchestrator"
	"github.com/tldr-it-stepankutaj/lunapad/internal/reports"
	"github.com/tldr-it-stepankutaj/lunapad/internal/session"
	"github.com/tldr-it-stepankutaj/lunapad/internal/workspace"
	"github.com/tldr-it-stepankutaj/lunapad/pkg/version"
)

type logTarget int

const (
	logToStderr logTarget = iota
	logToFileOnly
)

// loadConfig reads the optional config file and validates the result.
func loadConfig() (app.Config, error) {
	v := viper.GetViper()
	if err := app.ReadConfigFile(v); err != nil {
		return app.Config{}, err
	}
	cfg := app.LoadConfig(v)
	if err := cfg.Validate(); err != nil {
		return app.Config{}, err
	}
	return cfg, nil
}

// Helper to create app context
func createAppContext(target logTarget) (app.Context, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return app.Context{}, nil, err
	}
	ws := workspace.Handle{Root: cfg.Workspace}
	needWorkspace := cfg.Device == app.DeviceRecord || cfg.Report || cfg.LogFile || target == logToFileOnly
	if needWorkspace {
		if ws, err = workspace.Ensure(cfg.Workspace); err != nil {
			return app.Context{}, nil, err
		}
	}

	var out io.Writer = os.Stderr
	cleanup := func() {}
	if cfg.LogFile || target == logToFileOnly {
		f, err := logging.OpenFile(ws.Path(workspace.DirLogs, "lunapad.log"))
		if err != nil {
			return app.Context{}, nil, fmt.Errorf("open log file: %w", err)
		}
		cleanup = func() { _ = f.Close() }
		if target == logToFileOnly {
			out = f
		} else {
			out = io.MultiWriter(os.Stderr, f)
		}
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: out}, version.Version)
	return app.Context{
		Ctx:       context.Background(),
		Config:    cfg,
		Workspace: ws,
		Logger:    logger,
		Now:       time.Now(),
	}, cleanup, nil
}

// openDriver builds the device driver the configuration asks for.
func openDriver(appCtx app.Context, sessionID string) (device.Driver, string, error) {
	switch appCtx.Config.Device {
	case app.DeviceRecord:
		ws, ok := appCtx.Workspace.(workspace.Handle)
		if !ok {
			return nil, "", errors.New("recording needs a workspace")
		}
		path := ws.SessionFile(workspace.DirRecordings, sessionID, "cbor", appCtx.Now)
		rec, err := device.NewRecorder(path)
		if err != nil {
			return nil, "", err
		}
		return rec, path, nil
	default:
		return device.Null{}, "", nil
	}
}

// runSession configures and runs one orchestrator session with args as the
// dispatch command line. Help goes to out. Invalid command lines are not
// errors: they render help and run an empty loop. The report is returned
// when modules were involved; title names it, or the session ID does when
// title is empty.
func runSession(appCtx app.Context, title string, args []string, out io.Writer, observers ...orchestrator.Observer) (*reports.Report, error) {
	cfg := appCtx.Config
	logger := appCtx.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	collector := reports.NewCollector()
	collector.SetTitle(title)
	logger = logger.With("session", collector.ID())

	drv, recording, err := openDriver(appCtx, collector.ID())
	if err != nil {
		return nil, err
	}
	if recording != "" {
		logger.Info("recording controller frames", "path", recording)
	}

	opts := []orchestrator.Option{
		orchestrator.WithLibraries(cfg.Libraries),
		orchestrator.WithAutoExecute(cfg.AutoExecute),
		orchestrator.WithInterval(cfg.TickInterval),
		orchestrator.WithLogger(logger.With("component", "orchestrator").Logger),
		orchestrator.WithObserver(collector),
	}
	for _, obs := range observers {
		opts = append(opts, orchestrator.WithObserver(obs))
	}
	orch := orchestrator.New(orchestrator.ScriptFactory(drv, logger.With("component", "script").Logger), opts...)
	s := session.New(orch, out, logger.Logger)

	ctx, stop := signal.NotifyContext(appCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Run(ctx, args); err != nil {
		logger.Warn("module teardown failed", "error", err)
	}
	if err := drv.Close(); err != nil {
		logger.Warn("close device", "error", err)
	}

	ws, hasWorkspace := appCtx.Workspace.(workspace.Handle)
	report := collector.Report(reports.Metadata{
		StartedAt:     appCtx.Now,
		ToolVersion:   version.Version,
		WorkspacePath: ws.Root,
		Device:        cfg.Device,
		Arguments:     args,
	})
	if len(report.Modules) == 0 && len(report.Rejections) == 0 {
		return nil, nil
	}
	logger.Info("session finished", "modules", report.Statistics.Loaded, "passes", report.Statistics.Passes)

	if cfg.Report && hasWorkspace {
		path := ws.SessionFile(workspace.DirReports, report.ID, cfg.ReportFormat, appCtx.Now)
		if err := report.Export(cfg.ReportFormat, path); err != nil {
			logger.Warn("write session report", "error", err)
		} else {
			logger.Info("session report written", "path", path)
		}
	}
	return report, nil
}
