// Package device defines the virtual-controller collaborator that script
// modules report their state to.
//
// Presenting a gamepad to the operating system is the job of a platform
// driver; lunapad only needs the contract. A Driver hands out one
// Controller per module. Drivers in this package:
//
//   - Null discards every update.
//   - Memory keeps the last snapshot of every controller (tests, monitor).
//   - Recorder appends every update as a CBOR frame to a file.
//
// Mapping several modules onto one physical device is not arbitrated here.
package device

import (
	"errors"

	"github.com/tldr-it-stepankutaj/lunapad/internal/xinput"
)

// ErrUnplugged is returned when a controller is used after Unplug.
var ErrUnplugged = errors.New("controller unplugged")

// Driver creates virtual controllers.
type Driver interface {
	// Plug presents a new virtual controller owned by the named module.
	Plug(owner string) (Controller, error)
	// Close releases the driver. Controllers must be unplugged first.
	Close() error
}

// Controller is one virtual gamepad.
type Controller interface {
	// Update presents the snapshot as the controller's current state.
	Update(state xinput.Capabilities) error
	// Feedback returns the rumble motor levels requested by the host.
	Feedback() (left, right float32)
	// Unplug removes the controller. Further calls return ErrUnplugged.
	Unplug() error
}

// Null is a driver whose controllers accept and drop every update.
type Null struct{}

func (Null) Plug(string) (Controller, error) { return &nullController{}, nil }
func (Null) Close() error                    { return nil }

type nullController struct {
	unplugged bool
}

func (c *nullController) Update(xinput.Capabilities) error {
	if c.unplugged {
		return ErrUnplugged
	}
	return nil
}

func (c *nullController) Feedback() (float32, float32) { return 0, 0 }

func (c *nullController) Unplug() error {
	c.unplugged = true
	return nil
}
