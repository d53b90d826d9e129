package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/erp/clinicsync/internal/interfaces/http/middleware"
	"github.com/spf13/cobra"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	Subject string
	TTL     time.Duration
}

func newTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a service token for the event endpoints",
		Long: `Issue an HS256 bearer token with the "events" scope, signed with the
configured ingress secret.

Example:
  replay token --subject atomfeed-consumer --ttl 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(opts.RootOptions)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if cfg.Ingress.JWTSecret == "" {
				return errors.New("ingress.jwt_secret is not configured")
			}
			token, err := middleware.IssueServiceToken([]byte(cfg.Ingress.JWTSecret), cfg.Ingress.Issuer, opts.Subject, opts.TTL)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Subject, "subject", "atomfeed-consumer", "token subject")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
