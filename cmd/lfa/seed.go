// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lfa-academy/lfa-server/internal/auth"
	"github.com/lfa-academy/lfa-server/internal/config"
	"github.com/lfa-academy/lfa-server/internal/seed"
	"github.com/lfa-academy/lfa-server/internal/store"
)

const (
	defaultSeedFile    = "seeds/academy.yaml"
	defaultSeedTimeout = 30 * time.Second
)

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load academy fixtures into the database",
		Long: `Loads users, teams, players, coaches and family links from a YAML file.
Plaintext passwords are hashed with argon2id. Records that already exist
are skipped, so running seed twice is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.file, "file", defaultSeedFile, "seed file path")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runSeed(cmd *cobra.Command, opts *seedConfig) error {
	fixtures, err := readFixtures(opts.file)
	if err != nil {
		return err
	}

	cfg, err := config.LoadDatabase(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, cfg.Database.URL, store.WithConnectTimeout(cfg.Database.ConnectTimeoutDuration))
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := seed.NewLoader(pool, auth.NewArgon2idHasher(), slog.Default())
	report, err := loader.Load(ctx, fixtures)
	if err != nil {
		return err
	}

	for _, row := range []struct {
		kind   string
		counts seed.Counts
	}{
		{"users", report.Users},
		{"teams", report.Teams},
		{"players", report.Players},
		{"coaches", report.Coaches},
		{"families", report.Families},
	} {
		cmd.Printf("%-9s created %d, skipped %d\n", row.kind, row.counts.Created, row.counts.Skipped)
	}
	cmd.Println("Seeding complete")
	return nil
}

// readFixtures reads and validates a seed file.
func readFixtures(path string) (*seed.Fixtures, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, oops.Code("SEED_READ_FAILED").With("path", path).Wrap(err)
	}
	fixtures, err := seed.Parse(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return fixtures, nil
}
