// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lfa-academy/lfa-server/internal/auth"
)

// hashConfig holds configuration for the hash-password command.
type hashConfig struct {
	bcrypt bool
	cost   int
}

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	cfg := &hashConfig{}

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password read from stdin",
		Long: `Reads one line from stdin and prints its password hash, for use as
passwordHash in a seed file or for manual account repair.
The default is argon2id; --bcrypt produces a legacy bcrypt hash.

  echo -n 'Coach123!' | lfa hash-password`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHashPassword(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.bcrypt, "bcrypt", false, "produce a bcrypt hash instead of argon2id")
	cmd.Flags().IntVar(&cfg.cost, "cost", auth.DefaultBcryptCost, "bcrypt cost (with --bcrypt)")

	return cmd
}

func runHashPassword(cmd *cobra.Command, cfg *hashConfig) error {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return oops.Code("PASSWORD_READ_FAILED").Wrapf(err, "read password from stdin")
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return oops.Code("PASSWORD_EMPTY").Errorf("password must not be empty")
	}

	var hasher auth.PasswordHasher = auth.NewArgon2idHasher()
	if cfg.bcrypt {
		hasher = auth.NewBcryptHasher(cfg.cost)
	}
	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
