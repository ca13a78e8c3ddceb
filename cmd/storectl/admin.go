package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"grene-storefront/internal/adminauth"
	"grene-storefront/internal/config"
)

func adminCmd(load func() (config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin session utilities",
	}
	cmd.AddCommand(adminTokenCmd(load))
	return cmd
}

func adminTokenCmd(load func() (config.Config, error)) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin session token for scripted access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if user == "" {
				user = cfg.Admin.User
			}
			if user == "" {
				return errors.New("no user given and ADMIN_USER is not set")
			}
			issuer, err := adminauth.NewIssuer(cfg.Admin.SessionSecret, cfg.Admin.SessionTTL)
			if err != nil {
				return fmt.Errorf("admin session: %w", err)
			}
			tok, err := issuer.Issue(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user name to embed (defaults to ADMIN_USER)")
	return cmd
}
