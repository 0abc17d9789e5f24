package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tldr-it-stepankutaj/lunapad/internal/app"
	"github.com/tldr-it-stepankutaj/lunapad/internal/device"
	"github.com/tldr-it-stepankutaj/lunapad/internal/logging"
	"github.com/tldr-it-stepankutaj/lunapad/internal/profile"
	"github.com/tldr-it-stepankutaj/lunapad/internal/script"
	"github.com/tldr-it-stepankutaj/lunapad/internal/workspace"
)

func testContext(t *testing.T, cfg app.Config) app.Context {
	t.Helper()
	ws, err := workspace.Ensure(filepath.Join(t.TempDir(), "work"))
	require.NoError(t, err)
	cfg.Workspace = ws.Root
	return app.Context{
		Ctx:       context.Background(),
		Config:    cfg,
		Workspace: ws,
		Logger:    logging.Discard(),
		Now:       time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
	}
}

func baseConfig() app.Config {
	return app.Config{
		Libraries:    script.LibRecommended,
		Device:       app.DeviceNull,
		ReportFormat: app.ReportJSON,
	}
}

func TestRunSessionWithoutArgumentsPrintsHelp(t *testing.T) {
	var out bytes.Buffer
	report, err := runSession(testContext(t, baseConfig()), "", nil, &out)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Contains(t, out.String(), "lunapad help:")
}

func TestRunSessionRecordsAndReports(t *testing.T) {
	cfg := baseConfig()
	cfg.Device = app.DeviceRecord
	cfg.Report = true
	cfg.ReportFormat = app.ReportMarkdown
	appCtx := testContext(t, cfg)
	ws := appCtx.Workspace.(workspace.Handle)

	pad := ws.Path(workspace.DirScripts, "pad.lua")
	require.NoError(t, os.WriteFile(pad, []byte(`
n = 0
function tick()
  n = n + 1
  controller.press(controller.B)
  controller.submit()
  if n == 2 then host.exit() end
end
`), 0o644))

	var out bytes.Buffer
	report, err := runSession(appCtx, "", []string{"-m", pad}, &out)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Empty(t, out.String())
	require.Len(t, report.Modules, 1)
	assert.Equal(t, 2, report.Modules[0].Ticks)

	recording := ws.SessionFile(workspace.DirRecordings, report.ID, "cbor", appCtx.Now)
	frames, err := device.ReadRecording(recording, pad)
	require.NoError(t, err)
	require.Len(t, frames, 4, "plug, two updates, unplug")
	assert.Equal(t, device.FramePlug, frames[0].Kind)
	assert.Equal(t, device.FrameUnplug, frames[3].Kind)

	assert.FileExists(t, ws.SessionFile(workspace.DirReports, report.ID, "md", appCtx.Now))
}

func TestRunSessionInvalidArgumentsIsNotAnError(t *testing.T) {
	var out bytes.Buffer
	report, err := runSession(testContext(t, baseConfig()), "", []string{"-x"}, &out)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Contains(t, out.String(), "End of help topic")
}

func TestRunSessionInvalidArgumentsDropLoadedModules(t *testing.T) {
	cfg := baseConfig()
	cfg.Report = true
	appCtx := testContext(t, cfg)
	ws := appCtx.Workspace.(workspace.Handle)
	pad := ws.Path(workspace.DirScripts, "pad.lua")
	require.NoError(t, os.WriteFile(pad, []byte(starterScript), 0o644))

	var out bytes.Buffer
	report, err := runSession(appCtx, "", []string{"-m", pad, "-x"}, &out)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Contains(t, out.String(), "End of help topic")

	written, err := filepath.Glob(ws.Path(workspace.DirReports, "*"))
	require.NoError(t, err)
	assert.Empty(t, written)
}

func TestStarterProfileRuns(t *testing.T) {
	cfg := baseConfig()
	appCtx := testContext(t, cfg)
	ws := appCtx.Workspace.(workspace.Handle)
	require.NoError(t, os.WriteFile(ws.Path(workspace.DirScripts, "pad.lua"), []byte(starterScript), 0o644))
	profPath := ws.Path(workspace.DirScripts, "profile.yaml")
	require.NoError(t, profile.Save(profile.Template("starter"), profPath))

	p, err := profile.Load(profPath)
	require.NoError(t, err)
	report, err := runSession(appCtx, p.Name, p.Args(), &bytes.Buffer{})
	require.NoError(t, err)
	require.NotNil(t, report)
	require.Len(t, report.Modules, 1)
	assert.Equal(t, 500, report.Modules[0].Ticks)
	assert.Equal(t, "inactive", report.Modules[0].Reason)
	assert.Equal(t, "starter", report.Title)
}
