package cmd

import (
	"github.com/spf13/cobra"
)

func newProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "Scrape every certification category and build the project list",
		Long: `Enumerates the four certification categories, fetches each project's
detail page with the worker pool, stages one partial dataset per
category, and consolidates them into the final de-duplicated CSV.
Individual page failures are summarized, not fatal; the command fails
only when the final dataset cannot be written.`,
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

			return application.RunProjects(cmd.Context(), date)
		},
	}
}
