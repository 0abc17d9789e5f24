package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tldr-it-stepankutaj/lunapad/internal/app"
	"github.com/tldr-it-stepankutaj/lunapad/pkg/version"
)

// settingsHelp is shared by the commands that keep their own flag grammar.
const settingsHelp = "Global settings come from LUNAPAD_* environment variables (LUNAPAD_DEVICE,\n" +
	"LUNAPAD_WORKSPACE, LUNAPAD_REPORT, ...) or from lunapad.yaml in the current\n" +
	"directory or ~/.config/lunapad. The --workspace, --device and other global\n" +
	"flags are only read by the profile, recording and init subcommands."

// The root command keeps its own flag grammar (-h, -m, -l), so cobra does
// not parse flags for it.
var rootCmd = &cobra.Command{
	Use:   "lunapad [-l mask] [-m module.lua ...] ...",
	Short: "lunapad: Lua-scripted virtual game controllers",
	Long: "lunapad loads Lua modules that drive virtual game controllers and runs them\n" +
		"through init, a fixed-cadence tick loop and exit. Run without arguments for\n" +
		"the flag reference.\n\n" + settingsHelp,
	Args:               cobra.ArbitraryArgs,
	DisableFlagParsing: true,
	SilenceUsage:       true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoot(args)
	},
}

// runRoot runs a session from a root command line.
func runRoot(args []string) error {
	appCtx, cleanup, err := createAppContext(logToStderr)
	if err != nil {
		return err
	}
	defer cleanup()
	_, err = runSession(appCtx, "", args, os.Stdout)
	return err
}

// sessionCommandLine reports whether args is a root command line. Those
// start with a flag, and every later token belongs to that grammar even
// when it matches a subcommand name.
func sessionCommandLine(args []string) bool {
	return len(args) > 0 && strings.HasPrefix(args[0], "-")
}

func execute(args []string) error {
	if sessionCommandLine(args) {
		if err := runRoot(args); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return err
		}
		return nil
	}
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func init() {
	// Persistent flags (available to all subcommands).
	rootCmd.PersistentFlags().String("workspace", "./work", "Path to workspace root")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text|json)")
	rootCmd.PersistentFlags().Duration("tick-interval", 5*time.Millisecond, "Pause between tick passes")
	rootCmd.PersistentFlags().String("device", app.DeviceNull, "Controller device (null|record)")
	rootCmd.PersistentFlags().Bool("report", false, "Write a session report into the workspace")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./lunapad.yaml)")

	// Bind flags to Viper.
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("tick_interval", rootCmd.PersistentFlags().Lookup("tick-interval"))
	_ = viper.BindPFlag("device", rootCmd.PersistentFlags().Lookup("device"))
	_ = viper.BindPFlag("report", rootCmd.PersistentFlags().Lookup("report"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	// Env support: LUNAPAD_WORKSPACE, LUNAPAD_DEVICE, etc.
	app.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("LUNAPAD")
	viper.AutomaticEnv()

	// Register subcommands.
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(recordingCmd)
	rootCmd.AddCommand(versionCmd)
}

// `version` subcommand.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func Execute() {
	if err := execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
