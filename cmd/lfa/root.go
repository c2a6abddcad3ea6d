// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/lfa-academy/lfa-server/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the lfa CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lfa",
		Short: "LFA - academy authentication and access server",
		Long: `lfa serves the academy's authentication API: login, logout,
refresh token rotation, token verification and role-based access checks
for admins, coaches, players and parents.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewValidateSeedsCmd())
	cmd.AddCommand(NewHashPasswordCmd())

	return cmd
}
