package main

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"telephony/internal/api"
	"telephony/internal/daemonctl"
	"telephony/internal/daemonrun"
	"telephony/internal/ipc"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the telephony daemon",
	}
	cmd.AddCommand(newDaemonRunCommand(ctx))
	cmd.AddCommand(newDaemonLogsCommand(ctx))
	for _, sub := range newDaemonControlCommands(ctx) {
		cmd.AddCommand(sub)
	}
	return cmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:    "run",
		Short:  "Run the daemon in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ctx.socketFlag != nil {
				if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
					cfg.Paths.SocketPath = socket
				}
			}
			return daemonrun.Run(commandCtx(cmd), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in log records")
	return cmd
}

func newDaemonControlCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the telephony daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx, startLogLevel), 10*time.Second)
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			printStartState(stdout, result)
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Log level for the launched daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the telephony daemon (terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stopping bridge loop...")
			} else {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Killed daemon process (pid %d)\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the telephony daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(ctx.socketPath(), ctx.configValue(), exe,
				daemonLaunchOptions(ctx, restartLogLevel), 5*time.Second, 10*time.Second)
			if err != nil {
				return err
			}
			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Killed daemon process (pid %d)\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			printStartState(stdout, result.Start)
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Log level for the launched daemon")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, slot, and watch status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := daemonctl.BuildStatusSnapshot(commandCtx(cmd), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, status)
			}
			writeDaemonStatus(cmd.OutOrStdout(), status, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output JSON")

	var after int64
	var limit int
	var eventsJSON bool
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "List journaled results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Events(after, limit)
				if err != nil {
					return err
				}
				if eventsJSON {
					return writeJSON(cmd, resp)
				}
				writeEvents(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
	eventsCmd.Flags().Int64Var(&after, "after", 0, "Only list events with an id greater than this cursor")
	eventsCmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Output JSON")

	watchCmd := &cobra.Command{
		Use:   "watch <slot> <event>",
		Short: "Register a journaled watch in the daemon",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid slot %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Watch(slot, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Watch %d: %s on slot %d (%s)\n",
					resp.Watch.ID, resp.Watch.Event, resp.Watch.Slot, resp.Watch.Path)
				return nil
			})
		},
	}

	unwatchCmd := &cobra.Command{
		Use:   "unwatch <id>",
		Short: "Remove a daemon watch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid watch id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Unwatch(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Watch %d removed\n", id)
				return nil
			})
		},
	}

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Re-resolve modem slots in the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Refresh(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Slot refresh queued")
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd, eventsCmd, watchCmd, unwatchCmd, refreshCmd}
}

func printStartState(w io.Writer, result daemonctl.StartResult) {
	switch result.State {
	case daemonctl.StartStateStarted:
		fmt.Fprintln(w, "Daemon started")
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintln(w, "Daemon already running")
	case daemonctl.StartStateRequested:
		if message := strings.TrimSpace(result.Message); message != "" {
			fmt.Fprintln(w, message)
			return
		}
		fmt.Fprintln(w, "Start request sent")
	}
}

func writeDaemonStatus(w io.Writer, status *ipc.StatusResponse, colorize bool) {
	writeSection(w, "Daemon", colorize)
	if status.Running {
		detail := fmt.Sprintf("pid %d", status.PID)
		if status.StartedAt != "" {
			detail += ", since " + status.StartedAt
		}
		fmt.Fprintln(w, renderStatusLine("Bridge", statusOK, detail, colorize))
	} else {
		fmt.Fprintln(w, renderStatusLine("Bridge", statusWarn, "not running", colorize))
	}
	hotplug := statusInfo
	if status.HotplugActive {
		hotplug = statusOK
	}
	fmt.Fprintln(w, renderStatusLine("Hotplug monitor", hotplug, yesNo(status.HotplugActive), colorize))
	fmt.Fprintln(w, renderStatusLine("Handlers", statusInfo,
		fmt.Sprintf("%d live, %d in flight", status.LiveHandlers, status.InFlight), colorize))
	fmt.Fprintln(w, renderStatusLine("Results", statusInfo,
		fmt.Sprintf("%d journaled, %d dropped", status.Delivered, status.Dropped), colorize))
	if status.LastError != "" {
		fmt.Fprintln(w, renderStatusLine("Last error", statusError, status.LastError, colorize))
	}
	fmt.Fprintln(w)

	writeSection(w, "Slots", colorize)
	if len(status.Slots) == 0 {
		fmt.Fprintln(w, "No slots resolved")
	}
	for _, slot := range status.Slots {
		kind := statusError
		detail := "channels unavailable"
		if slot.Available {
			kind = statusOK
			detail = slot.ModemPath
		}
		fmt.Fprintln(w, renderStatusLine(fmt.Sprintf("Slot %d", slot.Slot), kind, detail, colorize))
	}
	fmt.Fprintln(w)

	writeSection(w, "Watches", colorize)
	if len(status.Watches) == 0 {
		fmt.Fprintln(w, "No watches registered")
	} else {
		rows := make([][]string, 0, len(status.Watches))
		for _, watch := range status.Watches {
			rows = append(rows, []string{strconv.Itoa(watch.ID), strconv.Itoa(watch.Slot), watch.Event, watch.Path})
		}
		fmt.Fprint(w, renderTable("", []string{"ID", "Slot", "Event", "Path"}, rows, []columnAlignment{alignRight, alignRight}))
	}
	fmt.Fprintln(w)

	writeSection(w, "Journal", colorize)
	fmt.Fprintln(w, renderStatusLine("Path", statusInfo, status.JournalPath, colorize))
	for _, line := range journalStatLines(status.JournalStats) {
		fmt.Fprintln(w, renderStatusLine(line[0], statusInfo, line[1], colorize))
	}
}

func journalStatLines(stats map[string]int) [][2]string {
	if len(stats) == 0 {
		return nil
	}
	lines := make([][2]string, 0, len(stats))
	for _, name := range slices.Sorted(maps.Keys(stats)) {
		lines = append(lines, [2]string{name, strconv.Itoa(stats[name])})
	}
	return lines
}

func writeEvents(w io.Writer, resp *ipc.EventsResponse) {
	if len(resp.Events) == 0 {
		fmt.Fprintln(w, "No events")
		return
	}
	rows := make([][]string, 0, len(resp.Events))
	for _, ev := range resp.Events {
		rows = append(rows, eventRow(ev))
	}
	fmt.Fprint(w, renderTable("", []string{"ID", "Recorded", "Slot", "Event", "Status", "Count", "Detail"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignRight}))
	fmt.Fprintf(w, "Next cursor: %d\n", resp.Next)
}

func eventRow(ev api.Event) []string {
	detail := ev.Error
	if detail == "" {
		if ar, err := resultFromEvent(ev); err == nil {
			detail = strings.TrimSpace(strings.TrimPrefix(summarizeResult(&ar), fmt.Sprintf("[slot %d] %s", ar.Slot, ar.Kind)))
		}
	}
	return []string{
		strconv.FormatInt(ev.ID, 10), ev.RecordedAt, strconv.Itoa(ev.Slot),
		ev.Event, ev.Status, strconv.Itoa(ev.Count), detail,
	}
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{LogLevel: strings.TrimSpace(logLevel)}
	if ctx.socketFlag != nil {
		opts.SocketPath = strings.TrimSpace(*ctx.socketFlag)
	}
	if ctx.configFlag != nil {
		opts.ConfigPath = strings.TrimSpace(*ctx.configFlag)
	}
	return opts
}
