package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tldr-it-stepankutaj/lunapad/internal/script"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg := LoadConfig(v)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "./work", cfg.Workspace)
	assert.Equal(t, 5*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, script.LibRecommended, cfg.Libraries)
	assert.False(t, cfg.AutoExecute)
	assert.Equal(t, DeviceNull, cfg.Device)
	assert.Equal(t, ReportJSON, cfg.ReportFormat)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("LUNAPAD_TICK_INTERVAL", "20ms")
	t.Setenv("LUNAPAD_DEVICE", "RECORD")
	t.Setenv("LUNAPAD_LIBRARIES", "7")

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("LUNAPAD")
	v.AutomaticEnv()
	cfg := LoadConfig(v)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, DeviceRecord, cfg.Device)
	assert.Equal(t, script.Libraries(7), cfg.Libraries)
}

func TestReadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lunapad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workspace: /tmp/pads\nreport: true\nreport_format: md\n"), 0o644))

	v := viper.New()
	SetDefaults(v)
	v.Set("config", path)
	require.NoError(t, ReadConfigFile(v))
	cfg := LoadConfig(v)

	assert.Equal(t, "/tmp/pads", cfg.Workspace)
	assert.True(t, cfg.Report)
	assert.Equal(t, ReportMarkdown, cfg.ReportFormat)
}

func TestReadConfigFileMissingDefaultIsFine(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	v := viper.New()
	assert.NoError(t, ReadConfigFile(v))
}

func TestValidate(t *testing.T) {
	base := Config{Workspace: "w", Device: DeviceNull, ReportFormat: ReportJSON}
	require.NoError(t, base.Validate())

	tests := map[string]func(*Config){
		"empty workspace": func(c *Config) { c.Workspace = "" },
		"negative tick":   func(c *Config) { c.TickInterval = -time.Second },
		"unknown device":  func(c *Config) { c.Device = "usb" },
		"unknown report":  func(c *Config) { c.ReportFormat = "html" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
