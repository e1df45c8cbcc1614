// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardenid/wardenid/internal/identity/postgres"
)

// DatabaseStatus holds the reachability and schema state of the database.
type DatabaseStatus struct {
	Reachable     bool   `json:"reachable"`
	SchemaVersion uint   `json:"schema_version,omitempty"`
	Dirty         bool   `json:"dirty,omitempty"`
	Error         string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database connectivity and schema status",
		Long:  `Check that the PostgreSQL database is reachable and report its schema version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	appCfg, err := loadConfig(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	databaseURL, err := appCfg.requireDatabaseURL()
	if err != nil {
		return err
	}

	status := queryDatabaseStatus(cmd, databaseURL)

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if !status.Reachable {
		cmd.Printf("database: unreachable (%s)\n", status.Error)
		return nil
	}
	cmd.Println("database: ok")
	if status.Dirty {
		cmd.Printf("schema: version %d (dirty - manual repair needed)\n", status.SchemaVersion)
	} else {
		cmd.Printf("schema: version %d\n", status.SchemaVersion)
	}
	return nil
}

func queryDatabaseStatus(cmd *cobra.Command, databaseURL string) DatabaseStatus {
	var status DatabaseStatus

	pool, err := postgres.Connect(cmd.Context(), databaseURL)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer pool.Close()
	status.Reachable = true

	m, err := postgres.NewMigrator(databaseURL)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer func() { _ = m.Close() }()

	version, dirty, err := m.Version()
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.SchemaVersion = version
	status.Dirty = dirty
	return status
}
