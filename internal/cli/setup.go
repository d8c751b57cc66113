package cli

import (
	"github.com/spf13/cobra"

	"sync2notion/internal/report"
)

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Show setup and troubleshooting steps",
		Run: func(cmd *cobra.Command, args []string) {
			renderHelp(cmd.OutOrStdout(), report.Help)
		},
	}
}
