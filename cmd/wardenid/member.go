// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/wardenid/wardenid/internal/identity"
	"github.com/wardenid/wardenid/internal/identity/postgres"
	"github.com/wardenid/wardenid/internal/logging"
)

// memberCreateConfig holds flags for the member create command.
type memberCreateConfig struct {
	name     string
	mail     string
	password string
	role     int16
	noNotify bool
}

// newMemberCmd creates the member subcommand tree.
func newMemberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Administer member accounts",
	}
	cmd.AddCommand(newMemberCreateCmd())
	return cmd
}

func newMemberCreateCmd() *cobra.Command {
	cfg := &memberCreateConfig{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new member",
		Long:  `Register a new member account and print its first session token.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMemberCreate(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.name, "name", "", "member name (required)")
	cmd.Flags().StringVar(&cfg.mail, "mail", "", "member mail address (required)")
	cmd.Flags().StringVar(&cfg.password, "password", "", "member password (required)")
	cmd.Flags().Int16Var(&cfg.role, "role", int16(identity.RoleUser), "member role")
	cmd.Flags().BoolVar(&cfg.noNotify, "no-notify", false, "skip the registration notice")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("mail")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runMemberCreate(cmd *cobra.Command, cfg *memberCreateConfig) error {
	appCfg, err := loadConfig(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	databaseURL, err := appCfg.requireDatabaseURL()
	if err != nil {
		return err
	}

	logger := logging.Setup("wardenid", version, appCfg.LogFormat, nil)

	pool, err := postgres.Connect(cmd.Context(), databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	notifier, err := appCfg.buildNotifier(logger)
	if err != nil {
		return err
	}

	svc, err := identity.NewServiceWithLogger(
		postgres.NewStore(pool),
		identity.NewArgon2idHasher(),
		notifier,
		identity.Config{
			SessionMaxAge: appCfg.SessionMaxAge,
			PendingExpiry: appCfg.PendingExpiry,
		},
		logger,
	)
	if err != nil {
		return err
	}

	opts := identity.CreateOptions{
		Role:   identity.RoleP(identity.Role(cfg.role)),
		Notify: identity.Bool(!cfg.noNotify),
	}
	granted, err := svc.Create(cmd.Context(), cfg.name, cfg.mail, cfg.password, "", "cli", nil, opts)
	if err != nil {
		return err
	}

	cmd.Printf("member %q created\n", cfg.name)
	cmd.Printf("session token: %s\n", granted.SessionToken)
	return nil
}
