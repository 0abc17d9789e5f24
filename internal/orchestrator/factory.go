package orchestrator

import (
	"log/slog"

	"github.com/tldr-it-stepankutaj/lunapad/internal/device"
	"github.com/tldr-it-stepankutaj/lunapad/internal/modules"
	"github.com/tldr-it-stepankutaj/lunapad/internal/script"
)

// ScriptFactory builds Lua modules whose controllers are plugged into driver.
func ScriptFactory(driver device.Driver, logger *slog.Logger) Factory {
	return func(source string, autoExecute bool, libraries script.Libraries) (modules.Module, error) {
		m, err := script.New(source, autoExecute, libraries,
			script.WithDriver(driver),
			script.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}
