package cmd

import (
	"github.com/spf13/cobra"
)

func newConsolidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate",
		Short: "Re-run consolidation over a run's surviving partials",
		Long: `Merges whatever partial datasets exist for the given run date into
the final CSV without re-fetching anything. This is the recovery path
after an interrupted run or a failed final write.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := resolveRunDate()
			if err != nil {
				return err
			}
			application, logger, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()
			defer func() { _ = logger.Sync() }()

			return application.RunConsolidate(cmd.Context(), date)
		},
	}
}
