package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/provisioner/pkg/identity"
)

func newTokenCmd(opts *globalOptions) *cobra.Command {
	var (
		subject string
		email   string
		secret  string
		expires time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 access token for testing bearer-role mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				secret = cfg.Auth.JWTSecret
			}
			if secret == "" {
				return errors.New("a signing secret is required (--secret or SUPABASE_JWT_SECRET)")
			}
			if expires <= 0 {
				return errors.New("--expires must be positive")
			}

			token, err := identity.SignHS256Token(secret, subject, email, expires, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "sub", "", "User id placed in the sub claim (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret (default $SUPABASE_JWT_SECRET)")
	cmd.Flags().DurationVar(&expires, "expires", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("sub")

	return cmd
}
