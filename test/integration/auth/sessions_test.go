// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

//go:build integration

package auth_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/lfa-academy/lfa-server/internal/access"
	accesspg "github.com/lfa-academy/lfa-server/internal/access/postgres"
	"github.com/lfa-academy/lfa-server/internal/auth"
	authpg "github.com/lfa-academy/lfa-server/internal/auth/postgres"
	"github.com/lfa-academy/lfa-server/internal/seed"
	"github.com/lfa-academy/lfa-server/pkg/errutil"
)

// newInstance builds a session manager the way one server replica would,
// sharing only the database with other instances.
func newInstance() *auth.SessionManager {
	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		AccessSecret:  []byte("integration-access-secret"),
		RefreshSecret: []byte("integration-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "lfa-academy",
		Audience:      "lfa-academy-users",
	})
	Expect(err).NotTo(HaveOccurred())

	revocations := auth.NewRevocationRegistry(authpg.NewRevocationStore(env.pool))
	DeferCleanup(revocations.Close)

	sessions, err := auth.NewSessionManager(
		authpg.NewIdentityRepository(env.pool),
		auth.NewVerifier(),
		codec,
		revocations,
		auth.WithSessionLogger(slog.New(slog.DiscardHandler)),
	)
	Expect(err).NotTo(HaveOccurred())
	return sessions
}

var _ = Describe("Sessions backed by PostgreSQL", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("logs in a seeded account and records the last login", func() {
		sessions := newInstance()

		result, err := sessions.Login(ctx, "  Coach.U12@LFA.com ", "Coach123!")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Identity.ID).To(Equal("u-coach-u12"))
		Expect(result.Identity.Role).To(Equal(auth.RoleCoach))

		var lastLogin *time.Time
		Expect(env.pool.QueryRow(ctx, `SELECT last_login FROM users WHERE id = $1`, "u-coach-u12").
			Scan(&lastLogin)).To(Succeed())
		Expect(lastLogin).NotTo(BeNil())
	})

	It("rejects a wrong password like an unknown email", func() {
		sessions := newInstance()

		_, wrongPassword := sessions.Login(ctx, "leo@lfa.com", "nope")
		_, unknown := sessions.Login(ctx, "nobody@lfa.com", "nope")
		Expect(errutil.CodeOf(wrongPassword)).To(Equal(auth.CodeInvalidCredentials))
		Expect(errutil.CodeOf(unknown)).To(Equal(auth.CodeInvalidCredentials))
		Expect(wrongPassword.Error()).To(Equal(unknown.Error()))
	})

	It("lets exactly one of many concurrent refreshes consume a token", func() {
		sessions := newInstance()
		result, err := sessions.Login(ctx, "mia@lfa.com", "Player123!")
		Expect(err).NotTo(HaveOccurred())

		const racers = 16
		var (
			wg        sync.WaitGroup
			start     = make(chan struct{})
			errs      = make([]error, racers)
			successes = make([]*auth.TokenPair, racers)
		)
		for i := range racers {
			wg.Add(1)
			go func(idx int) {
				defer GinkgoRecover()
				defer wg.Done()
				<-start
				successes[idx], errs[idx] = sessions.Refresh(ctx, result.Tokens.RefreshToken)
			}(i)
		}
		close(start)
		wg.Wait()

		won := 0
		for i := range racers {
			if errs[i] == nil {
				won++
				Expect(successes[i].RefreshToken).NotTo(Equal(result.Tokens.RefreshToken))
				continue
			}
			Expect(errutil.CodeOf(errs[i])).To(Equal(auth.CodeTokenRevoked))
		}
		Expect(won).To(Equal(1))
	})

	It("shares revocations between instances", func() {
		first := newInstance()
		second := newInstance()

		result, err := first.Login(ctx, "leo@lfa.com", "Player123!")
		Expect(err).NotTo(HaveOccurred())

		_, err = second.Authenticate(ctx, "Bearer "+result.Tokens.AccessToken)
		Expect(err).NotTo(HaveOccurred())

		first.Logout(ctx, result.Tokens.AccessToken, result.Tokens.RefreshToken)

		_, err = second.Authenticate(ctx, "Bearer "+result.Tokens.AccessToken)
		Expect(errutil.CodeOf(err)).To(Equal(auth.CodeTokenRevoked))
		_, err = second.Refresh(ctx, result.Tokens.RefreshToken)
		Expect(errutil.CodeOf(err)).To(Equal(auth.CodeTokenRevoked))
	})

	It("refuses refresh once the account is deactivated", func() {
		sessions := newInstance()
		result, err := sessions.Login(ctx, "coach.u14@lfa.com", "Coach123!")
		Expect(err).NotTo(HaveOccurred())

		_, err = env.pool.Exec(ctx, `UPDATE users SET is_active = FALSE WHERE id = $1`, "u-coach-u14")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_, _ = env.pool.Exec(context.Background(), `UPDATE users SET is_active = TRUE WHERE id = $1`, "u-coach-u14")
		})

		_, err = sessions.Refresh(ctx, result.Tokens.RefreshToken)
		Expect(errutil.CodeOf(err)).To(Equal(auth.CodeUserInvalid))
	})
})

var _ = Describe("Access evaluation backed by PostgreSQL", func() {
	var (
		ctx       context.Context
		evaluator *access.Evaluator
	)

	identity := func(id string, role auth.Role) *auth.Identity {
		return &auth.Identity{ID: id, Role: role, Active: true}
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		evaluator, err = access.NewEvaluator(accesspg.NewRelationshipStore(env.pool))
		Expect(err).NotTo(HaveOccurred())
	})

	DescribeTable("resource checks over seeded relationships",
		func(id string, role auth.Role, kind access.ResourceKind, resource string, allowed bool) {
			err := evaluator.Authorize(ctx, identity(id, role), kind, resource)
			if allowed {
				Expect(err).NotTo(HaveOccurred())
				return
			}
			Expect(errutil.CodeOf(err)).To(Equal(access.CodeForbidden))
		},
		Entry("admin sees any player", "u-admin", auth.RoleAdmin, access.ResourcePlayer, "p-mia", true),
		Entry("player sees own profile", "u-player-leo", auth.RolePlayer, access.ResourcePlayer, "p-leo", true),
		Entry("player cannot see a teammate elsewhere", "u-player-leo", auth.RolePlayer, access.ResourcePlayer, "p-mia", false),
		Entry("coach sees own team's player", "u-coach-u12", auth.RoleCoach, access.ResourcePlayer, "p-leo", true),
		Entry("coach cannot see another team's player", "u-coach-u12", auth.RoleCoach, access.ResourcePlayer, "p-mia", false),
		Entry("parent sees own child", "u-parent-okafor", auth.RoleParent, access.ResourcePlayer, "p-leo", true),
		Entry("parent cannot see another child", "u-parent-okafor", auth.RoleParent, access.ResourcePlayer, "p-mia", false),
		Entry("coach sees own team", "u-coach-u14", auth.RoleCoach, access.ResourceTeam, "t-u14", true),
		Entry("parent sees child's team", "u-parent-okafor", auth.RoleParent, access.ResourceTeam, "t-u12", true),
		Entry("player cannot see another team", "u-player-mia", auth.RolePlayer, access.ResourceTeam, "t-u12", false),
	)
})

var _ = Describe("Seed loading", func() {
	It("skips every record on a second load", func() {
		data, err := os.ReadFile("../../../seeds/academy.yaml")
		Expect(err).NotTo(HaveOccurred())
		fixtures, err := seed.Parse(data)
		Expect(err).NotTo(HaveOccurred())

		report, err := seed.NewLoader(env.pool, auth.NewBcryptHasher(4), slog.New(slog.DiscardHandler)).
			Load(context.Background(), fixtures)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Users).To(Equal(seed.Counts{Skipped: 6}))
		Expect(report.Teams).To(Equal(seed.Counts{Skipped: 2}))
		Expect(report.Players).To(Equal(seed.Counts{Skipped: 2}))
		Expect(report.Coaches).To(Equal(seed.Counts{Skipped: 2}))
		Expect(report.Families).To(Equal(seed.Counts{Skipped: 1}))
	})
})
