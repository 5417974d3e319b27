package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"bundlewatch/internal/api"
	"bundlewatch/internal/daemon"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show watcher state from a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			client := api.NewClient(ctx.apiBaseURL(cfg), cfg.API.Token)
			status, err := client.Status(cmd.Context())
			if err != nil {
				if !errors.Is(err, api.ErrUnavailable) {
					return err
				}
				if pid, alive := processAlive(cfg.PIDPath()); alive {
					fmt.Fprintf(out, "Daemon process %d is running but its API at %s is unreachable\n", pid, ctx.apiBaseURL(cfg))
					return nil
				}
				fmt.Fprintln(out, "Daemon not running")
				return nil
			}
			printStatus(out, status)
			return nil
		},
	}
}

func processAlive(pidPath string) (int, bool) {
	pid, err := daemon.ReadPID(pidPath)
	if err != nil || pid <= 0 {
		return 0, false
	}
	if err := unix.Kill(pid, 0); err != nil && !errors.Is(err, unix.EPERM) {
		return pid, false
	}
	return pid, true
}

func printStatus(out io.Writer, status *api.Status) {
	if status == nil {
		return
	}
	rows := [][]string{
		{"Phase", status.Phase},
		{"Polling enabled", yesNo(status.Enabled)},
		{"Page", valueOrDash(status.PageURL)},
		{"Interval", strconv.Itoa(status.IntervalSeconds) + "s"},
		{"Local", valueOrDash(status.Local)},
		{"Remote", valueOrDash(status.Remote)},
		{"Suppressed", yesNo(status.Suppressed)},
		{"Checks", fmt.Sprintf("%d (%d failed)", status.Stats.Checks, status.Stats.CheckErrors)},
		{"Prompts", fmt.Sprintf("%d (%d failed)", status.Stats.Prompts, status.Stats.PromptErrors)},
		{"Dismissals", strconv.FormatInt(status.Stats.Dismissals, 10)},
		{"Reloads", strconv.FormatInt(status.Stats.Reloads, 10)},
		{"Last check", valueOrDash(status.Stats.LastCheck)},
		{"Subscribers", strconv.Itoa(status.Subscribers)},
	}
	if status.Stats.LastError != "" {
		rows = append(rows, []string{"Last error", status.Stats.LastError})
	}
	if status.PID > 0 {
		rows = append(rows, []string{"PID", strconv.Itoa(status.PID)})
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))

	if p := status.Prompt; p != nil {
		fmt.Fprintf(out, "Update prompt open: %s -> %s (%s) since %s\n", p.Local, p.Remote, p.Direction, p.DetectedAt)
	} else {
		fmt.Fprintln(out, "No update prompt open")
	}
}
