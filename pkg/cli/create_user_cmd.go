package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/provisioner/pkg/app"
	"github.com/platinummonkey/provisioner/pkg/observability"
	"github.com/platinummonkey/provisioner/pkg/profiles"
	"github.com/platinummonkey/provisioner/pkg/provisioning"
)

func newCreateUserCmd(opts *globalOptions) *cobra.Command {
	var (
		req    provisioning.Request
		teamID string
	)

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an identity and its profile row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := opts.logger(cmd)

			a, err := app.New(cmd.Context(), app.Deps{
				Cfg:         cfg,
				Logger:      logger,
				Authorizer:  provisioning.NoAuthorizer{},
				AuditOutput: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer a.Close()

			if teamID != "" {
				req.TeamID = profiles.TeamIDFromString(teamID)
			}

			ctx := observability.WithLogger(cmd.Context(), logrus.NewEntry(logger))
			result, err := a.Workflow.Provision(ctx, provisioning.Credentials{}, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Email address of the new user (required)")
	cmd.Flags().StringVar(&req.Password, "password", "", "Initial password (required)")
	cmd.Flags().StringVar(&req.FullName, "full-name", "", "Display name")
	cmd.Flags().StringVar(&req.Role, "role", string(provisioning.DefaultRole), "Role: admin, auxiliar or user")
	cmd.Flags().StringVar(&teamID, "team-id", "", "Team identifier")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
