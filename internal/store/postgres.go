// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

// Package store provides the PostgreSQL connection, query seam, and schema
// migrations shared by the repositories.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Querier is the subset of pgxpool.Pool used by repositories. pgxmock pools
// satisfy it in unit tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ Querier = (*pgxpool.Pool)(nil)

const (
	defaultConnectTimeout = 30 * time.Second
	retryBase             = 250 * time.Millisecond
	retryCap              = 5 * time.Second
)

// ConnectOption configures Connect.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	timeout time.Duration
	logger  *slog.Logger
	backoff retry.Backoff
}

// WithConnectTimeout bounds how long Connect keeps retrying the initial ping.
func WithConnectTimeout(d time.Duration) ConnectOption {
	return func(o *connectOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithConnectLogger sets the logger used for retry attempts.
func WithConnectLogger(logger *slog.Logger) ConnectOption {
	return func(o *connectOptions) {
		o.logger = logger
	}
}

// WithBackoff replaces the retry schedule. Intended for tests.
func WithBackoff(b retry.Backoff) ConnectOption {
	return func(o *connectOptions) {
		o.backoff = b
	}
}

// Connect opens a pgx pool and pings it with exponential backoff until the
// database answers or the connect timeout elapses.
func Connect(ctx context.Context, databaseURL string, opts ...ConnectOption) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := PingWithRetry(ctx, pool, opts...); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PingWithRetry pings p until it succeeds or the connect timeout elapses.
func PingWithRetry(ctx context.Context, p Pinger, opts ...ConnectOption) error {
	o := connectOptions{timeout: defaultConnectTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.backoff == nil {
		o.backoff = retry.WithCappedDuration(retryCap, retry.NewExponential(retryBase))
	}
	backoff := retry.WithMaxDuration(o.timeout, o.backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := p.Ping(ctx); err != nil {
			o.logger.Warn("database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
