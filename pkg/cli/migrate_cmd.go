package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/provisioner/pkg/profiles"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the profiles schema to a Postgres database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if databaseURL == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				databaseURL = cfg.Profiles.DatabaseURL
			}
			if databaseURL == "" {
				return errors.New("a database URL is required (--database-url or PROFILES_DATABASE_URL)")
			}

			db, err := profiles.Open(cmd.Context(), databaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := profiles.Migrate(db); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "profiles schema is up to date")
			return err
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres DSN (default $PROFILES_DATABASE_URL)")
	return cmd
}
