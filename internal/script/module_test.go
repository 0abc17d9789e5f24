package script

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tldr-it-stepankutaj/lunapad/internal/device"
	"github.com/tldr-it-stepankutaj/lunapad/internal/xinput"
)

func writeScript(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestNewMissingSourceIsInitError(t *testing.T) {
	m, err := New(filepath.Join(t.TempDir(), "missing.lua"), false, LibRecommended)
	require.Error(t, err)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrEngineInit)

	var engErr *EngineError
	require.True(t, errors.As(err, &engErr))
	assert.Contains(t, engErr.Source, "missing.lua")
}

func TestNewSyntaxErrorIsInitError(t *testing.T) {
	path := writeScript(t, "broken.lua", "function tick(\n")
	_, err := New(path, false, LibRecommended)
	assert.ErrorIs(t, err, ErrEngineInit)
}

func TestExecuteRunsChunkOnce(t *testing.T) {
	path := writeScript(t, "count.lua", `
runs = (runs or 0) + 1
function check()
  if runs ~= 1 then error("chunk ran " .. runs .. " times") end
end
`)
	m, err := New(path, false, LibRecommended)
	require.NoError(t, err)
	defer m.Close()

	m.Execute()
	m.Execute()
	m.InvokeEvent("check")
	assert.True(t, m.Active())
	assert.NoError(t, m.Err())
}

func TestAutoExecuteRunsChunkDuringNew(t *testing.T) {
	path := writeScript(t, "auto.lua", `
loaded = true
function check()
  if not loaded then error("not executed") end
end
`)
	m, err := New(path, true, LibRecommended)
	require.NoError(t, err)
	defer m.Close()

	m.Execute() // no-op after auto execution
	m.InvokeEvent("check")
	assert.True(t, m.Active())
}

func TestAutoExecuteFailureLeavesInactiveModule(t *testing.T) {
	path := writeScript(t, "boom.lua", `error("boom")`)
	m, err := New(path, true, LibRecommended)
	require.NoError(t, err)
	defer m.Close()

	assert.False(t, m.Active())
	var rerr *RuntimeError
	require.ErrorAs(t, m.Err(), &rerr)
	assert.Equal(t, "<chunk>", rerr.Event)
}

func TestInvokeMissingEventIsNoop(t *testing.T) {
	path := writeScript(t, "empty.lua", `x = 1`)
	m, err := New(path, false, LibRecommended)
	require.NoError(t, err)
	defer m.Close()

	m.Execute()
	m.InvokeEvent("tick")
	m.InvokeEvent("x") // not a function
	assert.True(t, m.Active())
}

func TestRuntimeErrorDeactivates(t *testing.T) {
	path := writeScript(t, "faulty.lua", `
function tick()
  local t = nil
  return t.field
end
`)
	m, err := New(path, false, LibRecommended)
	require.NoError(t, err)
	defer m.Close()

	m.Execute()
	require.True(t, m.Active())
	m.InvokeEvent("tick")
	assert.False(t, m.Active())

	var rerr *RuntimeError
	require.ErrorAs(t, m.Err(), &rerr)
	assert.Equal(t, "tick", rerr.Event)
	assert.Equal(t, path, rerr.Module)
}

func TestHostExitDeactivatesButStillReceivesEvents(t *testing.T) {
	path := writeScript(t, "exit.lua", `
ticks = 0
exited = false
function tick()
  ticks = ticks + 1
  if ticks == 2 then host.exit() end
end
function exit()
  exited = true
end
function check()
  if not exited then error("exit handler did not run") end
  if host.name() == "" then error("empty name") end
end
`)
	m, err := New(path, false, LibRecommended)
	require.NoError(t, err)
	defer m.Close()

	m.Execute()
	m.InvokeEvent("tick")
	assert.True(t, m.Active())
	m.InvokeEvent("tick")
	assert.False(t, m.Active())
	assert.NoError(t, m.Err())

	m.InvokeEvent("exit")
	m.InvokeEvent("check")
	assert.NoError(t, m.Err())
}

func TestLibraryMaskLimitsGlobals(t *testing.T) {
	src := `
function check()
  if string ~= nil then error("string library leaked") end
  if controller ~= nil then error("controller library leaked") end
  if host == nil then error("host library missing") end
end
`
	path := writeScript(t, "sandbox.lua", src)
	m, err := New(path, false, LibBase)
	require.NoError(t, err)
	defer m.Close()

	m.Execute()
	m.InvokeEvent("check")
	assert.True(t, m.Active(), "%v", m.Err())
	assert.Equal(t, LibBase, m.Libraries())
}

func TestControllerSubmitReachesDriver(t *testing.T) {
	path := writeScript(t, "pad.lua", `
function tick()
  controller.press(controller.A)
  controller.press(controller.START)
  controller.release(controller.START)
  controller.set_triggers(0.5, 1)
  controller.set_left_thumb(-1, 0.25)
  controller.set_right_thumb(0, -0.5)
  controller.submit()
end
function check()
  local left, right = controller.rumble()
  if left ~= 0.5 or right ~= 0.25 then error("unexpected rumble") end
  local s = controller.state()
  if s.buttons ~= controller.A then error("unexpected buttons") end
end
`)
	drv := device.NewMemory()
	m, err := New(path, false, LibRecommended, WithDriver(drv))
	require.NoError(t, err)

	m.Execute()
	m.InvokeEvent("tick") // plugs on first submit
	drv.SetFeedback(path, 0.5, 0.25)
	m.InvokeEvent("tick")
	m.InvokeEvent("check")
	require.True(t, m.Active(), "%v", m.Err())

	pad, ok := drv.Controller(path)
	require.True(t, ok)
	want := xinput.Default()
	want.Buttons = xinput.ButtonA
	want.LeftTrigger, want.RightTrigger = 0.5, 1
	want.ThumbLX, want.ThumbLY = -1, 0.25
	want.ThumbRY = -0.5
	assert.Equal(t, want, pad.State())
	assert.Equal(t, 2, pad.Updates())

	snap := m.Snapshot()
	assert.Equal(t, float32(0.5), snap.LeftMotor)
	assert.Equal(t, float32(0.25), snap.RightMotor)

	require.NoError(t, m.Close())
	assert.False(t, pad.Plugged())
	assert.False(t, m.Active())
}

func TestSubmitWithoutDriverDeactivates(t *testing.T) {
	path := writeScript(t, "nodrv.lua", `function tick() controller.submit() end`)
	m, err := New(path, false, LibRecommended)
	require.NoError(t, err)
	defer m.Close()

	m.Execute()
	m.InvokeEvent("tick")
	assert.False(t, m.Active())
}

func TestHostClockUsesInjectedTime(t *testing.T) {
	start := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	now := start
	path := writeScript(t, "clock.lua", `
function check()
  if host.clock() < 1.5 then error("clock did not advance") end
end
`)
	m, err := New(path, false, LibRecommended, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	defer m.Close()

	now = start.Add(2 * time.Second)
	m.Execute()
	m.InvokeEvent("check")
	assert.True(t, m.Active(), "%v", m.Err())
}

func TestParseLibraries(t *testing.T) {
	libs, err := ParseLibraries("7")
	require.NoError(t, err)
	assert.Equal(t, LibBase|LibPackage|LibString, libs)
	assert.Equal(t, []string{"base", "package", "string"}, libs.Names())

	_, err = ParseLibraries("seven")
	assert.Error(t, err)
	_, err = ParseLibraries("-1")
	assert.Error(t, err)
}
