// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the wardenid CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wardenid",
		Short: "wardenid - transactional identity lifecycle service",
		Long: `wardenid manages member identities: registration, login, email and
password changes, and account deletion, each as a single atomic
transaction over PostgreSQL.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().String("log-format", "json", "log output format (json or text)")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newMemberCmd())

	return cmd
}
