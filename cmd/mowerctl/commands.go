package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/muurk/mowerble/internal/command"
	"github.com/muurk/mowerble/internal/mower"
	"github.com/muurk/mowerble/internal/schema"
	"github.com/muurk/mowerble/internal/ui"
)

// Command flags
var (
	statusFormat  string
	commandFormat string
	taskFormat    string
	overrideHours float64
	assumeYes     bool
	listCommands  bool
)

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "panel", "Output format (panel, yaml)")
	commandCmd.Flags().StringVar(&commandFormat, "format", "text", "Output format (text, yaml)")
	commandCmd.Flags().BoolVar(&listCommands, "list", false, "List supported commands and their arguments")
	taskCmd.Flags().StringVar(&taskFormat, "format", "text", "Output format (text, yaml)")
	overrideCmd.Flags().Float64Var(&overrideHours, "hours", 3, "How long to mow, in hours")
	overrideCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation of long overrides")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(commandCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(parkCmd)
	rootCmd.AddCommand(setModeCmd)
	rootCmd.AddCommand(taskCmd)
}

// statusCmd shows a status snapshot
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mower status",
	Long: `Connect to the mower and show its model, state, activity, battery,
next scheduled start, lifetime statistics and last message.`,
	Example: `  # Status of the default mower
  mowerctl status

  # Status of a mower through a GATT proxy, as YAML
  mowerctl status --mower garden --proxy ws://garden-pi.local:8765/gatt --format yaml`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	e, err := setup(ctx)
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	if statusFormat != "yaml" {
		printer.PrintHeader("Status", "mowerctl status", e.headerParams())
	}
	var report *mower.Report
	err = e.session(ctx, func(ctx context.Context, m *mower.Mower) error {
		report, err = m.Report(ctx)
		return err
	})
	if err != nil {
		printer.PrintError("Status failed", err, nil)
		return err
	}

	if statusFormat == "yaml" {
		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(report)
	}
	return printer.PrintOnce(ui.RenderReport(report, printer.Width()))
}

// commandCmd runs one raw command
var commandCmd = &cobra.Command{
	Use:   "command NAME [field=value ...]",
	Short: "Run a single protocol command",
	Long: `Run one named protocol command and print its decoded response.

Request fields are given as field=value pairs. Fields with defaults may be
omitted. Integers accept 0x and 0b prefixes, timestamps accept RFC 3339 or
Unix seconds and weekdays accept a list such as Mon,Wed,Fri.`,
	Example: `  # List supported commands
  mowerctl command --list

  # Read the battery level
  mowerctl command GetBatteryLevel

  # Read the second schedule entry
  mowerctl command GetTask taskId=1`,
	RunE: runCommand,
}

func runCommand(cmd *cobra.Command, args []string) error {
	registry := schema.Default()
	if listCommands {
		printCommandList(cmd, registry)
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("command name required (see --list)")
	}

	name := schema.Name(args[0])
	entry, err := registry.Get(name)
	if err != nil {
		return err
	}
	fields, err := parseAssignments(entry, args[1:])
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	e, err := setup(ctx)
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	var result *mower.Result
	err = e.session(ctx, func(ctx context.Context, m *mower.Mower) error {
		result, err = m.Command(ctx, name, fields)
		return err
	})
	if err != nil {
		printer.PrintError(string(name)+" failed", err, nil)
		return err
	}

	if result.SoftFailed {
		printer.PrintWarning("Response failed validation", map[string]string{
			"Command": string(name),
			"Note":    "the mower may have rejected the request",
		})
	}

	if commandFormat == "yaml" {
		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(result.Fields)
	}
	printer.Println(formatValue(result.Value()))
	return nil
}

// parseAssignments turns field=value arguments into request fields
func parseAssignments(entry *schema.Entry, args []string) (command.Fields, error) {
	fields := make(command.Fields, len(args))
	for _, arg := range args {
		key, text, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("argument %q: expected field=value", arg)
		}
		spec, ok := entry.RequestField(key)
		if !ok {
			return nil, fmt.Errorf("%s has no request field %q", entry.Name, key)
		}
		v, err := command.ParseValue(spec, text)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		fields[key] = v
	}
	return fields, nil
}

// formatValue renders a result value for text output
func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "OK"
	case command.Fields:
		keys := v.Keys()
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("%s: %s", k, formatValue(v[k])))
		}
		return strings.Join(lines, "\n")
	case time.Time:
		if v.IsZero() {
			return "-"
		}
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func printCommandList(cmd *cobra.Command, registry *schema.Registry) {
	names := registry.Names()
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	out := cmd.OutOrStdout()
	for _, name := range names {
		entry, _ := registry.Get(name)
		args := make([]string, 0, len(entry.Request))
		for _, f := range entry.Request {
			arg := f.Name + "=<" + string(f.Type) + ">"
			if f.HasDefault() {
				arg = "[" + arg + "]"
			}
			args = append(args, arg)
		}
		fmt.Fprintf(out, "%-36s %s\n", name, strings.Join(args, " "))
	}
}

// overrideCmd starts mowing regardless of the schedule
var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Mow now, ignoring the schedule",
	Long: `Put the mower in AUTO mode, set a mowing override and start it.

The steps run in order and stop at the first failure. Steps that already
succeeded are not rolled back.`,
	Example: `  # Mow for three hours
  mowerctl override

  # Mow for 90 minutes on a PIN-protected mower
  mowerctl override --hours 1.5 --pin -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if overrideHours > ui.LongOverrideThreshold && !assumeYes {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("override of %.1f hours needs --yes when not interactive", overrideHours)
			}
			if !ui.ConfirmLongOverride(os.Stdin, cmd.OutOrStdout(), overrideHours) {
				return nil
			}
		}
		return runOperation(cmd, "Override",
			map[string]string{"Hours": strconv.FormatFloat(overrideHours, 'f', -1, 64)},
			func(ctx context.Context, m *mower.Mower) error { return m.Override(ctx, overrideHours) })
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Stop the mower where it is",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, "Pause", nil, func(ctx context.Context, m *mower.Mower) error { return m.Pause(ctx) })
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue after a pause",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, "Resume", nil, func(ctx context.Context, m *mower.Mower) error { return m.Resume(ctx) })
	},
}

var parkCmd = &cobra.Command{
	Use:   "park",
	Short: "Send the mower home until its next scheduled start",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, "Park", nil, func(ctx context.Context, m *mower.Mower) error { return m.Park(ctx) })
	},
}

var setModeCmd = &cobra.Command{
	Use:       "set-mode MODE",
	Short:     "Change the mode of operation (AUTO, MANUAL, HOME, DEMO, POI)",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"AUTO", "MANUAL", "HOME", "DEMO", "POI"},
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := mower.ParseMode(args[0])
		if err != nil {
			return err
		}
		return runOperation(cmd, "Set mode", map[string]string{"Mode": mode.String()},
			func(ctx context.Context, m *mower.Mower) error { return m.SetMode(ctx, mode) })
	},
}

// runOperation runs a composite operation with header, step list and result
func runOperation(cmd *cobra.Command, title string, details map[string]string, op func(ctx context.Context, m *mower.Mower) error) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   title,
		Command: cmd.CommandPath(),
		Output:  cmd.OutOrStdout(),
	})

	return runner.Run(func(onStep ui.StepCallback) (map[string]string, error) {
		e, err := setup(ctx, mower.WithProgress(ui.MowerProgress(onStep)))
		if err != nil {
			return nil, err
		}
		result := e.headerParams()
		for k, v := range details {
			result[k] = v
		}
		return result, e.session(ctx, op)
	})
}

// taskCmd lists the schedule
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "List the mowing schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		e, err := setup(ctx)
		if err != nil {
			return err
		}

		var tasks []*mower.TaskInformation
		err = e.session(ctx, func(ctx context.Context, m *mower.Mower) error {
			n, err := m.NumberOfTasks(ctx)
			if err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				t, err := m.Task(ctx, uint32(i))
				if err != nil {
					return err
				}
				tasks = append(tasks, t)
			}
			return nil
		})
		if err != nil {
			ui.NewPrinter(cmd.OutOrStdout()).PrintError("Reading schedule failed", err, nil)
			return err
		}

		out := cmd.OutOrStdout()
		if taskFormat == "yaml" {
			return yaml.NewEncoder(out).Encode(tasks)
		}
		if len(tasks) == 0 {
			fmt.Fprintln(out, "No schedule entries.")
			return nil
		}
		for i, t := range tasks {
			fmt.Fprintf(out, "%d. %s  start %s  for %s\n", i+1, t.Days, clock(t.Start), t.Duration)
		}
		return nil
	},
}

// clock formats an offset from midnight as HH:MM
func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
