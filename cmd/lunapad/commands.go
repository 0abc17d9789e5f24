package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tldr-it-stepankutaj/lunapad/internal/device"
	"github.com/tldr-it-stepankutaj/lunapad/internal/orchestrator"
	"github.com/tldr-it-stepankutaj/lunapad/internal/profile"
	"github.com/tldr-it-stepankutaj/lunapad/internal/tui"
	"github.com/tldr-it-stepankutaj/lunapad/internal/workspace"
)

const starterScript = `-- Starter pad: taps A every 50 ticks and stops after 500.
local ticks = 0

function init()
  host.log("starter pad ready with libraries " .. host.libraries())
end

function tick()
  ticks = ticks + 1
  if ticks % 50 == 0 then
    controller.press(controller.A)
  else
    controller.release(controller.A)
  end
  controller.submit()
  if ticks >= 500 then
    host.exit()
  end
end

function exit()
  controller.unplug()
end
`

// `init` subcommand to initialize/ensure workspace structure.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize workspace structure with a starter script and profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ws, err := workspace.Ensure(cfg.Workspace)
		if err != nil {
			return err
		}
		pad := ws.Path(workspace.DirScripts, "pad.lua")
		if _, err := os.Stat(pad); errors.Is(err, os.ErrNotExist) {
			if err := os.WriteFile(pad, []byte(starterScript), 0o644); err != nil {
				return err
			}
		}
		prof := ws.Path(workspace.DirScripts, "profile.yaml")
		if _, err := os.Stat(prof); errors.Is(err, os.ErrNotExist) {
			if err := profile.Save(profile.Template("starter"), prof); err != nil {
				return err
			}
		}
		fmt.Printf("Workspace ready at: %s\n", ws.Root)
		fmt.Printf("Try: lunapad profile run %s\n", prof)
		return nil
	},
}

// `monitor` subcommand: the root command line under a live view.
var monitorCmd = &cobra.Command{
	Use:                "monitor [-l mask] [-m module.lua ...] ...",
	Short:              "Run a session with a live terminal monitor",
	Long: "monitor takes the same command line as lunapad itself and shows the\n" +
		"session in a live terminal view. Logs go to the workspace log file.\n\n" + settingsHelp,
	Args:               cobra.ArbitraryArgs,
	DisableFlagParsing: true,
	SilenceUsage:       true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return monitor("", args)
	},
}

func monitor(title string, args []string) error {
	appCtx, cleanup, err := createAppContext(logToFileOnly)
	if err != nil {
		return err
	}
	defer cleanup()
	return tui.Run(appCtx, func(ctx context.Context, obs orchestrator.Observer) error {
		sessionCtx := appCtx
		sessionCtx.Ctx = ctx
		var help strings.Builder
		_, err := runSession(sessionCtx, title, args, &help, obs)
		if help.Len() > 0 {
			appCtx.Logger.Info("help rendered", "text", help.String())
		}
		return err
	})
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Run or check session profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var profileRunCmd = &cobra.Command{
	Use:   "run <profile.yaml>",
	Short: "Run a session from a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProfile(cmd, args[0])
		if err != nil {
			return err
		}
		if live, _ := cmd.Flags().GetBool("monitor"); live {
			return monitor(p.Name, p.Args())
		}
		appCtx, cleanup, err := createAppContext(logToStderr)
		if err != nil {
			return err
		}
		defer cleanup()
		appCtx.Logger.Info("running profile", "profile", p.Name, "steps", len(p.Steps))
		_, err = runSession(appCtx, p.Name, p.Args(), os.Stdout)
		return err
	},
}

var profileCheckCmd = &cobra.Command{
	Use:   "check <profile.yaml>",
	Short: "Validate a profile and print the command line it expands to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProfile(cmd, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Profile %q is valid (%d steps)\n", p.Name, len(p.Steps))
		fmt.Printf("  lunapad %s\n", strings.Join(p.Args(), " "))
		missing := 0
		for _, m := range p.Modules() {
			if _, err := os.Stat(m); err != nil {
				fmt.Printf("  warning: %s: %v\n", m, err)
				missing++
			}
		}
		if missing > 0 {
			fmt.Printf("  %d module file(s) not found\n", missing)
		}
		return nil
	},
}

func loadProfile(cmd *cobra.Command, path string) (*profile.Profile, error) {
	p, err := profile.Load(path)
	if err != nil {
		return nil, err
	}
	vars, _ := cmd.Flags().GetStringToString("var")
	p.Override(vars)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func init() {
	profileRunCmd.Flags().StringToString("var", nil, "Override profile variables (name=value)")
	profileRunCmd.Flags().Bool("monitor", false, "Show the live monitor")
	profileCheckCmd.Flags().StringToString("var", nil, "Override profile variables (name=value)")

	profileCmd.AddCommand(profileRunCmd)
	profileCmd.AddCommand(profileCheckCmd)
}

var recordingCmd = &cobra.Command{
	Use:   "recording",
	Short: "Inspect controller recordings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var recordingDumpCmd = &cobra.Command{
	Use:   "dump <recording.cbor>",
	Short: "Print the frames of a recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		format, _ := cmd.Flags().GetString("format")

		frames, err := device.ReadRecording(args[0], owner)
		if err != nil {
			return err
		}

		switch format {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(frames)
		case "text":
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tTIME\tOWNER\tKIND\tSTATE")
			for _, f := range frames {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", f.Seq, f.Timestamp.Format("15:04:05.000"), f.Owner, f.Kind, f.State)
			}
			return w.Flush()
		default:
			return fmt.Errorf("unsupported format: %s", format)
		}
	},
}

func init() {
	recordingDumpCmd.Flags().String("owner", "", "Only frames of this module")
	recordingDumpCmd.Flags().String("format", "text", "Output format (text|json)")

	recordingCmd.AddCommand(recordingDumpCmd)
}
