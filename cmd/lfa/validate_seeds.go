// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lfa-academy/lfa-server/internal/schema"
)

// NewValidateSeedsCmd creates the validate-seeds subcommand.
func NewValidateSeedsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate-seeds",
		Short: "Validate a seed fixtures file without touching the database",
		Long: `Validates a seed file against the fixtures schema and checks that every
team, player and parent reference resolves.
Does NOT start the server or require a database connection.
Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines to catch fixture errors early:
  lfa validate-seeds --file seeds/academy.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidateSeeds(cmd, file)
		},
	}

	cmd.Flags().StringVar(&file, "file", defaultSeedFile, "seed file path")

	return cmd
}

func runValidateSeeds(cmd *cobra.Command, path string) error {
	fixtures, err := readFixtures(path)
	if err != nil {
		for _, v := range schema.Violations(err) {
			slog.Error("seed validation failed", "path", path, "detail", v)
		}
		return err
	}

	slog.Info("seed file valid",
		"path", path,
		"users", len(fixtures.Users),
		"teams", len(fixtures.Teams),
		"players", len(fixtures.Players),
	)
	cmd.Printf("%s: %d users, %d teams, %d players, %d coaches, %d family links\n",
		path, len(fixtures.Users), len(fixtures.Teams), len(fixtures.Players),
		len(fixtures.Coaches), len(fixtures.Families))
	return nil
}
