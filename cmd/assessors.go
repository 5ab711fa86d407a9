package cmd

import (
	"github.com/spf13/cobra"
)

func newAssessorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assessors",
		Short: "Normalize the accredited assessor registry",
		Long: `Reads the assessor registry CSV (local file or download), keeps the
documented column subset, rewrites registration dates as ISO-8601, and
writes the cleaned dataset. Rows with unparsable dates are dropped and
counted.`,
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

			return application.RunAssessors(cmd.Context(), date)
		},
	}
}
