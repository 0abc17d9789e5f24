package script

import (
	"fmt"

	"github.com/Shopify/go-lua"

	"github.com/tldr-it-stepankutaj/lunapad/internal/device"
	"github.com/tldr-it-stepankutaj/lunapad/internal/xinput"
)

func (m *Module) registerHost(l *lua.State) {
	lua.NewLibrary(l, []lua.RegistryFunction{
		{Name: "exit", Function: m.hostExit},
		{Name: "name", Function: m.hostName},
		{Name: "log", Function: m.hostLog},
		{Name: "clock", Function: m.hostClock},
		{Name: "libraries", Function: m.hostLibraries},
	})
	l.SetGlobal("host")
}

// hostExit marks the module for removal. The running handler still returns
// normally; the orchestrator notices at the end of the pass.
func (m *Module) hostExit(l *lua.State) int {
	m.active = false
	return 0
}

func (m *Module) hostName(l *lua.State) int {
	l.PushString(m.name)
	return 1
}

func (m *Module) hostLog(l *lua.State) int {
	msg := lua.CheckString(l, 1)
	m.logger.Info(msg, "module", m.name)
	return 0
}

func (m *Module) hostClock(l *lua.State) int {
	l.PushNumber(m.now().Sub(m.started).Seconds())
	return 1
}

func (m *Module) hostLibraries(l *lua.State) int {
	l.PushInteger(int(m.libraries))
	return 1
}

func (m *Module) registerController(l *lua.State) {
	lua.NewLibrary(l, []lua.RegistryFunction{
		{Name: "get_buttons", Function: m.padGetButtons},
		{Name: "set_buttons", Function: m.padSetButtons},
		{Name: "press", Function: m.padPress},
		{Name: "release", Function: m.padRelease},
		{Name: "set_triggers", Function: m.padSetTriggers},
		{Name: "set_left_thumb", Function: m.padSetLeftThumb},
		{Name: "set_right_thumb", Function: m.padSetRightThumb},
		{Name: "set_subtype", Function: m.padSetSubType},
		{Name: "set_features", Function: m.padSetFeatures},
		{Name: "rumble", Function: m.padRumble},
		{Name: "state", Function: m.padState},
		{Name: "submit", Function: m.padSubmit},
		{Name: "unplug", Function: m.padUnplug},
	})
	for name, bit := range xinput.ButtonNames {
		l.PushInteger(int(bit))
		l.SetField(-2, name)
	}
	l.SetGlobal("controller")
}

func (m *Module) padGetButtons(l *lua.State) int {
	l.PushInteger(int(m.snapshot.Buttons))
	return 1
}

func (m *Module) padSetButtons(l *lua.State) int {
	m.snapshot.Buttons = xinput.Buttons(lua.CheckInteger(l, 1))
	return 0
}

func (m *Module) padPress(l *lua.State) int {
	m.snapshot.Buttons = m.snapshot.Buttons.Set(xinput.Buttons(lua.CheckInteger(l, 1)))
	return 0
}

func (m *Module) padRelease(l *lua.State) int {
	m.snapshot.Buttons = m.snapshot.Buttons.Clear(xinput.Buttons(lua.CheckInteger(l, 1)))
	return 0
}

func (m *Module) padSetTriggers(l *lua.State) int {
	m.snapshot.LeftTrigger = float32(lua.CheckNumber(l, 1))
	m.snapshot.RightTrigger = float32(lua.CheckNumber(l, 2))
	return 0
}

func (m *Module) padSetLeftThumb(l *lua.State) int {
	m.snapshot.ThumbLX = float32(lua.CheckNumber(l, 1))
	m.snapshot.ThumbLY = float32(lua.CheckNumber(l, 2))
	return 0
}

func (m *Module) padSetRightThumb(l *lua.State) int {
	m.snapshot.ThumbRX = float32(lua.CheckNumber(l, 1))
	m.snapshot.ThumbRY = float32(lua.CheckNumber(l, 2))
	return 0
}

func (m *Module) padSetSubType(l *lua.State) int {
	m.snapshot.DeviceSubType = xinput.DeviceSubType(lua.CheckInteger(l, 1))
	return 0
}

func (m *Module) padSetFeatures(l *lua.State) int {
	m.snapshot.DeviceFeatures = xinput.DeviceFeatures(lua.CheckInteger(l, 1))
	return 0
}

// padRumble refreshes the motor levels from the plugged controller and
// returns them.
func (m *Module) padRumble(l *lua.State) int {
	if m.pad != nil {
		left, right := m.pad.Feedback()
		m.snapshot.LeftMotor, m.snapshot.RightMotor = left, right
	}
	l.PushNumber(float64(m.snapshot.LeftMotor))
	l.PushNumber(float64(m.snapshot.RightMotor))
	return 2
}

func (m *Module) padState(l *lua.State) int {
	s := m.snapshot
	l.CreateTable(0, 12)
	for _, f := range []struct {
		key   string
		value float64
	}{
		{"device_type", float64(s.DeviceType)},
		{"device_sub_type", float64(s.DeviceSubType)},
		{"device_features", float64(s.DeviceFeatures)},
		{"buttons", float64(s.Buttons)},
		{"left_trigger", float64(s.LeftTrigger)},
		{"right_trigger", float64(s.RightTrigger)},
		{"thumb_lx", float64(s.ThumbLX)},
		{"thumb_ly", float64(s.ThumbLY)},
		{"thumb_rx", float64(s.ThumbRX)},
		{"thumb_ry", float64(s.ThumbRY)},
		{"left_motor", float64(s.LeftMotor)},
		{"right_motor", float64(s.RightMotor)},
	} {
		l.PushNumber(f.value)
		l.SetField(-2, f.key)
	}
	return 1
}

// padSubmit presents the snapshot on the module's virtual controller,
// plugging one in on first use.
func (m *Module) padSubmit(l *lua.State) int {
	if m.pad == nil {
		if m.driver == nil {
			lua.Errorf(l, "no virtual controller driver configured")
			return 0
		}
		var pad device.Controller
		m.deviceCall(l, "plug controller", func() (err error) {
			pad, err = m.driver.Plug(m.name)
			return err
		})
		m.pad = pad
	}
	m.deviceCall(l, "update controller", func() error { return m.pad.Update(m.snapshot) })
	m.snapshot.LeftMotor, m.snapshot.RightMotor = m.pad.Feedback()
	return 0
}

func (m *Module) padUnplug(l *lua.State) int {
	if m.pad == nil {
		return 0
	}
	pad := m.pad
	m.pad = nil
	m.deviceCall(l, "unplug controller", pad.Unplug)
	return 0
}

// deviceCall runs fn against the driver and raises its error in Lua. A
// panic in the driver is kept as the module's fatal error and raised as a
// Lua error so the state unwinds normally.
func (m *Module) deviceCall(l *lua.State, what string, fn func() error) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				m.fatal = fmt.Errorf("%w: %s: %v", ErrEngineFatal, what, r)
			}
		}()
		err = fn()
	}()
	if m.fatal != nil {
		lua.Errorf(l, "%s", m.fatal.Error())
	}
	if err != nil {
		lua.Errorf(l, "%s: %s", what, err.Error())
	}
}
