package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bundlewatch/internal/document"
	"bundlewatch/internal/fingerprint"
	"bundlewatch/internal/remote"
)

func newExtractCommand() *cobra.Command {
	var showScripts bool

	cmd := &cobra.Command{
		Use:         "extract <file|url>...",
		Short:       "Print the bundle fingerprint of HTML files or pages",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(args))
			var scripts [][]string
			for _, arg := range args {
				srcs, err := scriptSources(cmd.Context(), arg)
				if err != nil {
					rows = append(rows, []string{arg, "error: " + err.Error(), "-"})
					continue
				}
				rows = append(rows, []string{arg, describeFingerprint(fingerprint.Extract(srcs), nil), fmt.Sprintf("%d", len(srcs))})
				for _, src := range srcs {
					scripts = append(scripts, []string{arg, src, yesNo(fingerprint.Matches(src))})
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Source", "Fingerprint", "Scripts"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
			if showScripts && len(scripts) > 0 {
				fmt.Fprintln(out, renderTable([]string{"Source", "Script", "Bundle"}, scripts, nil))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showScripts, "scripts", false, "List every script src found")
	return cmd
}

func scriptSources(ctx context.Context, target string) ([]string, error) {
	lower := strings.ToLower(target)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return remote.New(target).ScriptSources(ctx)
	}
	return document.NewFile(target).ScriptSources(ctx)
}
