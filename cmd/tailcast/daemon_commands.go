package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tailcast/internal/client"
	"tailcast/internal/config"
	"tailcast/internal/daemonctl"
	"tailcast/internal/engine"
	"tailcast/internal/preflight"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the tailcast daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireWatchPath(); err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				cmd.Context(),
				cfg,
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath(), LogLevel: startLogLevel},
				10*time.Second,
			)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override logging.level for the launched daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the tailcast daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and watched file status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cl, err := ctx.newClient()
			if err != nil {
				return err
			}

			reqCtx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			status, statusErr := cl.Status(reqCtx)
			cancel()
			if statusErr != nil && !client.IsUnavailable(statusErr) {
				return statusErr
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			running := statusErr == nil
			if running {
				fmt.Fprintln(stdout, renderStatusLine("tailcast", statusOK, "Running at "+cfg.Server.Bind, colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("tailcast", statusWarn, "Not running (run `tailcast start`)", colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range preflightLines(cfg, colorize) {
				fmt.Fprintln(stdout, line)
			}

			if !running {
				return nil
			}
			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("Engine", colorize) {
				fmt.Fprintln(stdout, line)
			}
			table := renderTable([]string{"Field", "Value"}, engineStatusRows(status), []columnAlignment{alignLeft, alignRight})
			fmt.Fprint(stdout, table)
			fmt.Fprintln(stdout)
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func preflightLines(cfg *config.Config, colorize bool) []string {
	if err := cfg.RequireWatchPath(); err != nil {
		return []string{renderStatusLine("Watched file", statusError, "watch.path is not configured", colorize)}
	}
	results := preflight.RunAll(cfg)
	lines := make([]string, 0, len(results))
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}

func engineStatusRows(status engine.Status) [][]string {
	uptime := time.Duration(status.UptimeSeconds) * time.Second
	return [][]string{
		{"Path", status.Path},
		{"Running", yesNo(status.Running)},
		{"Offset", strconv.FormatInt(status.LastKnownOffset, 10)},
		{"Truncate policy", strings.TrimSpace(status.TruncatePolicy)},
		{"Catch-up lines", strconv.Itoa(status.CatchupLines)},
		{"Subscribers", strconv.Itoa(status.Subscribers)},
		{"Checks", strconv.FormatUint(status.Checks, 10)},
		{"Broadcasts", strconv.FormatUint(status.Broadcasts, 10)},
		{"Lines broadcast", strconv.FormatUint(status.LinesBroadcast, 10)},
		{"Deliveries", strconv.FormatUint(status.Deliveries, 10)},
		{"Failed deliveries", strconv.FormatUint(status.FailedDeliveries, 10)},
		{"Uptime", uptime.String()},
	}
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}
