package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tldr-it-stepankutaj/lunapad/internal/script"
)

// Device drivers selectable with the "device" key.
const (
	DeviceNull   = "null"
	DeviceRecord = "record"
)

// Report formats selectable with the "report_format" key.
const (
	ReportJSON     = "json"
	ReportMarkdown = "md"
)

// Config contains global runtime configuration.
type Config struct {
	Workspace    string
	LogLevel     string
	LogFormat    string
	LogFile      bool
	TickInterval time.Duration
	Libraries    script.Libraries
	AutoExecute  bool
	Device       string
	Report       bool
	ReportFormat string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workspace", "./work")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", false)
	v.SetDefault("tick_interval", 5*time.Millisecond)
	v.SetDefault("libraries", uint32(script.LibRecommended))
	v.SetDefault("auto_execute", false)
	v.SetDefault("device", DeviceNull)
	v.SetDefault("report", false)
	v.SetDefault("report_format", ReportJSON)
}

// ReadConfigFile loads an optional lunapad.yaml from the working directory
// or ~/.config/lunapad, or the file named by the "config" key. A missing
// default file is not an error.
func ReadConfigFile(v *viper.Viper) error {
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("lunapad")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "lunapad"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// LoadConfig builds Config from v. It does not validate.
func LoadConfig(v *viper.Viper) Config {
	return Config{
		Workspace:    v.GetString("workspace"),
		LogLevel:     v.GetString("log_level"),
		LogFormat:    v.GetString("log_format"),
		LogFile:      v.GetBool("log_file"),
		TickInterval: v.GetDuration("tick_interval"),
		Libraries:    script.Libraries(v.GetUint32("libraries")),
		AutoExecute:  v.GetBool("auto_execute"),
		Device:       strings.ToLower(v.GetString("device")),
		Report:       v.GetBool("report"),
		ReportFormat: strings.ToLower(v.GetString("report_format")),
	}
}

// Validate returns error if configuration is invalid.
func (c Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace cannot be empty")
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("tick_interval cannot be negative: %s", c.TickInterval)
	}
	switch c.Device {
	case DeviceNull, DeviceRecord:
	default:
		return fmt.Errorf("unknown device %q (want %s or %s)", c.Device, DeviceNull, DeviceRecord)
	}
	switch c.ReportFormat {
	case ReportJSON, ReportMarkdown:
	default:
		return fmt.Errorf("unknown report_format %q (want %s or %s)", c.ReportFormat, ReportJSON, ReportMarkdown)
	}
	return nil
}
