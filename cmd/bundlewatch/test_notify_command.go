package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bundlewatch/internal/logging"
	"bundlewatch/internal/notify"
)

// newTestNotifyCommand shows a sample prompt on the console and ntfy
// surfaces. The control URLs in the sample point at the configured API.
func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a sample update prompt through configured surfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var prompters []notify.Prompter
			if cfg.Notifications.Console {
				prompters = append(prompters, notify.NewConsole(out))
			}
			if ntfy := notify.NewNtfyFromConfig(cfg); ntfy != nil {
				prompters = append(prompters, ntfy)
			}
			fanout := notify.NewFanout(logging.NewNop(), prompters...)
			if fanout.Len() == 0 {
				fmt.Fprintln(out, "No prompt surfaces configured; enable notifications.console or set notifications.ntfy_topic")
				return nil
			}

			composer := notify.Composer{Title: cfg.Notifications.Title, BaseURL: ctx.apiBaseURL(cfg)}
			update := composer.Compose(cfg.Target.URL, "1.0.0", "1.1.0", time.Now())
			prompt, err := fanout.Show(cmd.Context(), update)
			if err != nil {
				return fmt.Errorf("send test prompt: %w", err)
			}
			_ = prompt.Close(cmd.Context(), notify.CloseDismissed)
			fmt.Fprintf(out, "Test prompt sent via %d surface(s)\n", fanout.Len())
			return nil
		},
	}
}
