/*
Copyright 2026 The Falconeri Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package dbpool is the only place BEGIN/COMMIT/ROLLBACK happen. It
// wraps jackc/pgx/v4's pool and implements the reservation algorithm and
// the other transactional primitives spec §4 and §5 require: row locks,
// SKIP LOCKED dispatch, and the job-status recomputation.
package dbpool

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

//go:embed all:migrations
var migrationsFS embed.FS

// Pool wraps a pgxpool.Pool. falconerid keeps two: a large one for the
// API surface and a dedicated single-connection one for the babysitter,
// so API traffic can never starve reconciliation (spec §5).
type Pool struct {
	pg *pgxpool.Pool
}

// New connects to Postgres with the given connection-string and pool
// size. maxConns of 1 is what falconerid uses for its babysitter pool.
func New(ctx context.Context, databaseURL string, maxConns int32) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "dbpool: parsing DATABASE_URL")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pg, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "dbpool: connecting to postgres")
	}
	return &Pool{pg: pg}, nil
}

// Close releases the underlying connections.
func (p *Pool) Close() {
	p.pg.Close()
}

// Migrate runs the embedded schema at startup, standing in for the
// external migration mechanism spec §1/§6 place out of core scope:
// "assume migrations run at startup" is implemented literally here,
// against idempotent CREATE TABLE/TYPE IF NOT EXISTS statements so every
// controller replica can run it safely on boot.
func (p *Pool) Migrate(ctx context.Context) error {
	sql, err := migrationsFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return errors.Wrap(err, "dbpool: reading embedded migration")
	}
	if _, err := p.pg.Exec(ctx, string(sql)); err != nil {
		return errors.Wrap(err, "dbpool: running migration")
	}
	logrus.Info("dbpool: schema is up to date")
	return nil
}

// WithTx is the single chokepoint for transactional work, mirroring the
// teacher's single request() chokepoint for HTTP calls (kube/client.go):
// every exported dbpool function that mutates more than one row, or that
// needs a row lock, goes through here.
func (p *Pool) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.pg.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, "dbpool: beginning transaction")
	}
	defer func() {
		// Rollback is a no-op once Commit has succeeded.
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "dbpool: committing transaction")
	}
	return nil
}

// Raw exposes the underlying pool for call sites (read-only list/get
// queries) that do not need a transaction.
func (p *Pool) Raw() *pgxpool.Pool { return p.pg }

var (
	// ErrNotFound is returned by Get-style queries that find no row.
	ErrNotFound = fmt.Errorf("dbpool: not found")
	// ErrOwnershipMismatch is returned when a mutation's pod_name does
	// not match the datum's current owner (spec §4.2's fencing check).
	ErrOwnershipMismatch = fmt.Errorf("dbpool: ownership mismatch")
	// ErrNoDatumAvailable is returned by ReserveNextDatum both when the
	// job has left the Running state (spec §4.2 step 1) and when no
	// Ready datum remains to claim (step 2) — the two share one sentinel
	// because callers treat them identically: "nothing to reserve right
	// now", not an error.
	ErrNoDatumAvailable = fmt.Errorf("dbpool: no datum available")
)
