package script

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tldr-it-stepankutaj/lunapad/internal/device"
	"github.com/tldr-it-stepankutaj/lunapad/internal/xinput"
)

// panickyDriver hands out controllers whose Update panics with value.
type panickyDriver struct {
	value     any
	plugPanic bool
	pads      []*panickyPad
}

func (d *panickyDriver) Plug(string) (device.Controller, error) {
	if d.plugPanic {
		panic(d.value)
	}
	p := &panickyPad{value: d.value}
	d.pads = append(d.pads, p)
	return p, nil
}

func (d *panickyDriver) Close() error { return nil }

type panickyPad struct {
	value   any
	unplugs int
}

func (p *panickyPad) Update(xinput.Capabilities) error { panic(p.value) }
func (p *panickyPad) Feedback() (float32, float32) { return 0, 0 }

func (p *panickyPad) Unplug() error {
	p.unplugs++
	return nil
}

// panickyHandler panics with a plain string when the message matches.
type panickyHandler struct{ on string }

func (h panickyHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h panickyHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h panickyHandler) WithGroup(string) slog.Handler { return h }
func (h panickyHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Message == h.on {
		panic("log sink gone")
	}
	return nil
}

const submitOnLoad = `
controller.press(controller.A)
controller.submit()
`

func TestDevicePanicDuringAutoExecuteIsFatal(t *testing.T) {
	for name, drv := range map[string]*panickyDriver{
		"update string": {value: "usb stall"},
		"update error":  {value: errors.New("usb stall")},
		"plug string":   {value: "no bus", plugPanic: true},
	} {
		t.Run(name, func(t *testing.T) {
			path := writeScript(t, "pad.lua", submitOnLoad)
			m, err := New(path, true, LibRecommended, WithDriver(drv))
			require.Error(t, err)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, ErrEngineFatal)

			var engErr *EngineError
			require.ErrorAs(t, err, &engErr)
			assert.Equal(t, path, engErr.Source)
			for _, p := range drv.pads {
				assert.Equal(t, 1, p.unplugs, "controller released")
			}
		})
	}
}

func TestDevicePanicDuringSubmitDeactivates(t *testing.T) {
	path := writeScript(t, "pad.lua", `
function tick()
  controller.submit()
end
function exit()
  exited = true
end
`)
	drv := &panickyDriver{value: errors.New("usb stall")}
	m, err := New(path, false, LibRecommended, WithDriver(drv))
	require.NoError(t, err)

	m.Execute()
	m.InvokeEvent("tick")
	assert.False(t, m.Active())

	var rtErr *RuntimeError
	require.ErrorAs(t, m.Err(), &rtErr)
	assert.Equal(t, "tick", rtErr.Event)
	assert.ErrorIs(t, m.Err(), ErrEngineFatal)
	assert.Contains(t, m.Err().Error(), "usb stall")

	assert.NotPanics(t, func() { m.InvokeEvent("exit") })
	require.NoError(t, m.Close())
	require.Len(t, drv.pads, 1)
	assert.Equal(t, 1, drv.pads[0].unplugs)
}

func TestPanicEscapingLuaStateDropsIt(t *testing.T) {
	path := writeScript(t, "log.lua", `
function tick()
  host.log("boom")
end
`)
	m, err := New(path, false, LibRecommended, WithLogger(slog.New(panickyHandler{on: "boom"})))
	require.NoError(t, err)

	m.Execute()
	m.InvokeEvent("tick")
	assert.False(t, m.Active())
	assert.ErrorIs(t, m.Err(), ErrEngineFatal)

	assert.NotPanics(t, func() { m.InvokeEvent("exit") })
	assert.NoError(t, m.Close())
}
