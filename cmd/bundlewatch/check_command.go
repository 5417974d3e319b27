package main

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"bundlewatch/internal/document"
	"bundlewatch/internal/fingerprint"
	"bundlewatch/internal/logging"
	"bundlewatch/internal/remote"
)

// newCheckCommand compares the local and remote fingerprints once without
// starting a watcher. It reports problems in the table and always exits 0.
func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compare local and remote bundle fingerprints once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := logging.NewNop()
			checker := remote.NewFromConfig(cfg, logger, clockwork.NewRealClock())
			source, _, err := document.NewFromConfig(cfg, checker, logger)
			if err != nil {
				return err
			}
			if closer, ok := source.(interface{ Close() error }); ok {
				defer closer.Close()
			}

			local, localErr := document.Fingerprint(cmd.Context(), source)
			remoteValue, remoteErr := checker.Check(cmd.Context())

			rows := [][]string{
				{"Page", cfg.Target.URL},
				{"Local source", cfg.Local.Source},
				{"Local", describeFingerprint(local, localErr)},
				{"Remote", describeFingerprint(remoteValue, remoteErr)},
			}
			wouldPrompt := localErr == nil && remoteErr == nil &&
				local != "" && remoteValue != "" && local != remoteValue
			if wouldPrompt {
				rows = append(rows, []string{"Direction", string(fingerprint.Classify(local, remoteValue))})
			}
			rows = append(rows, []string{"Would prompt", yesNo(wouldPrompt)})

			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func describeFingerprint(value string, err error) string {
	switch {
	case err != nil:
		return "error: " + err.Error()
	case value == "":
		return "(no bundle found)"
	default:
		return value
	}
}
