package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bundlewatch/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded update prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfg.History.Path); os.IsNotExist(err) {
				if !cfg.History.Enabled {
					fmt.Fprintln(out, "History is disabled (set [history] enabled = true)")
					return nil
				}
				fmt.Fprintln(out, "No prompts recorded yet")
				return nil
			}

			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No prompts recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.OccurredAt.Local().Format("2006-01-02 15:04:05"),
					entry.Event,
					valueOrDash(entry.Local),
					valueOrDash(entry.Remote),
					valueOrDash(entry.Direction),
					shortID(entry.PromptID),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Time", "Event", "Local", "Remote", "Direction", "Prompt"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return valueOrDash(id)
}
