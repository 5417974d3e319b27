package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bundlewatch/internal/api"
)

func newActionCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newActionCommand(ctx, "ignore", "Dismiss the open update prompt", "Prompt dismissed",
			func(cmd *cobra.Command, client *api.Client) (*api.Status, error) {
				return client.Ignore(cmd.Context())
			}),
		newActionCommand(ctx, "reload", "Reload the watched page and reset state", "Page reloaded",
			func(cmd *cobra.Command, client *api.Client) (*api.Status, error) {
				return client.Reload(cmd.Context())
			}),
		newActionCommand(ctx, "poll", "Ask the daemon to check the remote now", "Check complete",
			func(cmd *cobra.Command, client *api.Client) (*api.Status, error) {
				return client.Check(cmd.Context())
			}),
	}
}

func newActionCommand(ctx *commandContext, use, short, done string, call func(*cobra.Command, *api.Client) (*api.Status, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := call(cmd, client)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, done)
				printStatus(out, status)
				return nil
			})
		},
	}
}
