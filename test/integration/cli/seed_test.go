// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

//go:build integration

package cli_test

import (
	"context"
	"os/exec"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

const cliDir = "../../../cmd/lfa"

// lfa runs the CLI from source against the test database.
func lfa(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "go", append([]string{"run", "."}, args...)...)
	cmd.Dir = cliDir
	cmd.Env = append(cmd.Environ(), "DATABASE_URL="+env.connStr)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

var _ = Describe("Migrate and seed commands", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
	})

	It("applies migrations and reports an up-to-date schema", func() {
		output, err := lfa(ctx, "migrate", "up")
		Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)
		Expect(output).To(ContainSubstring("Migrations completed successfully"))

		output, err = lfa(ctx, "migrate", "status")
		Expect(err).NotTo(HaveOccurred(), "status failed: %s", output)
		Expect(output).To(ContainSubstring("Schema is up to date"))
	})

	It("loads the development fixtures", func() {
		output, err := lfa(ctx, "migrate")
		Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)

		output, err = lfa(ctx, "seed", "--file", "../../seeds/academy.yaml")
		Expect(err).NotTo(HaveOccurred(), "seed failed: %s", output)
		Expect(output).To(ContainSubstring("users     created 6, skipped 0"))
		Expect(output).To(ContainSubstring("Seeding complete"))

		var role, hash string
		err = env.pool.QueryRow(ctx,
			"SELECT role, password_hash FROM users WHERE email = $1", "grace.okafor@lfa.com",
		).Scan(&role, &hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(role).To(Equal("parent"))
		Expect(hash).To(HavePrefix("$argon2id$"))

		var relationship string
		err = env.pool.QueryRow(ctx,
			"SELECT relationship FROM family_relationships WHERE player_id = $1", "p-leo",
		).Scan(&relationship)
		Expect(err).NotTo(HaveOccurred())
		Expect(relationship).To(Equal("mother"))
	})

	It("is idempotent (running twice succeeds without duplicates)", func() {
		output, err := lfa(ctx, "migrate")
		Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)

		output, err = lfa(ctx, "seed", "--file", "../../seeds/academy.yaml")
		Expect(err).NotTo(HaveOccurred(), "first seed failed: %s", output)

		output, err = lfa(ctx, "seed", "--file", "../../seeds/academy.yaml")
		Expect(err).NotTo(HaveOccurred(), "second seed failed: %s", output)
		Expect(output).To(ContainSubstring("users     created 0, skipped 6"))

		var count int
		Expect(env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)).To(Succeed())
		Expect(count).To(Equal(6))
	})

	Describe("Error handling", func() {
		It("fails with CONFIG_INVALID when DATABASE_URL is missing", func() {
			cmd := exec.CommandContext(ctx, "go", "run", ".", "seed", "--file", "../../seeds/academy.yaml")
			cmd.Dir = cliDir
			cmd.Env = append(cmd.Environ(), "DATABASE_URL=")

			output, err := cmd.CombinedOutput()
			Expect(err).To(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("DATABASE_URL"))
		})
	})
})
