package device

import (
	"sync"

	"github.com/tldr-it-stepankutaj/lunapad/internal/xinput"
)

// Memory keeps the latest state of every controller it plugged. Rumble
// feedback can be injected with SetFeedback. Safe for concurrent readers.
type Memory struct {
	mu          sync.Mutex
	controllers map[string]*MemoryController
}

func NewMemory() *Memory {
	return &Memory{controllers: make(map[string]*MemoryController)}
}

func (m *Memory) Plug(owner string) (Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &MemoryController{owner: owner, state: xinput.Default()}
	m.controllers[owner] = c
	return c, nil
}

func (m *Memory) Close() error { return nil }

// Controller returns the controller plugged for owner, if any.
func (m *Memory) Controller(owner string) (*MemoryController, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controllers[owner]
	return c, ok
}

// SetFeedback sets the rumble levels the owner's controller reports.
func (m *Memory) SetFeedback(owner string, left, right float32) {
	if c, ok := m.Controller(owner); ok {
		c.mu.Lock()
		c.left, c.right = left, right
		c.mu.Unlock()
	}
}

// MemoryController is a controller of the Memory driver.
type MemoryController struct {
	owner string

	mu          sync.Mutex
	state       xinput.Capabilities
	updates     int
	left, right float32
	unplugged   bool
}

func (c *MemoryController) Update(state xinput.Capabilities) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unplugged {
		return ErrUnplugged
	}
	c.state = state
	c.updates++
	return nil
}

func (c *MemoryController) Feedback() (float32, float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.left, c.right
}

func (c *MemoryController) Unplug() error {
	c.mu.Lock()
	c.unplugged = true
	c.mu.Unlock()
	return nil
}

// State returns the last presented snapshot.
func (c *MemoryController) State() xinput.Capabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Updates returns how many snapshots were presented.
func (c *MemoryController) Updates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates
}

// Plugged reports whether the controller is still present.
func (c *MemoryController) Plugged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.unplugged
}

// Owner returns the module name the controller was plugged for.
func (c *MemoryController) Owner() string { return c.owner }
