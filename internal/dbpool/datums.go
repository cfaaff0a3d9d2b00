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

package dbpool

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"

	"github.com/falconeri/falconeri/internal/model"
)

const datumColumns = `id, job_id, created_at, updated_at, status, pod_name, node_name,
	error_message, backtrace, output, attempted_run_count, maximum_allowed_run_count`

const datumColumnsAliasedD = `d.id, d.job_id, d.created_at, d.updated_at, d.status, d.pod_name, d.node_name,
	d.error_message, d.backtrace, d.output, d.attempted_run_count, d.maximum_allowed_run_count`

func scanDatum(row pgx.Row) (*model.Datum, error) {
	var d model.Datum
	err := row.Scan(&d.ID, &d.JobID, &d.CreatedAt, &d.UpdatedAt, &d.Status, &d.PodName, &d.NodeName,
		&d.ErrorMessage, &d.Backtrace, &d.Output, &d.AttemptedRunCount, &d.MaximumAllowedRunCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "dbpool: scanning datum")
	}
	return &d, nil
}

// GetDatum fetches a datum by id, outside any transaction.
func (p *Pool) GetDatum(ctx context.Context, id uuid.UUID) (*model.Datum, error) {
	row := p.pg.QueryRow(ctx, "SELECT "+datumColumns+" FROM datums WHERE id = $1", id)
	return scanDatum(row)
}

// InputFilesForDatum returns a datum's input files ordered by
// created_at, per spec §4.2 step 5.
func (p *Pool) InputFilesForDatum(ctx context.Context, datumID uuid.UUID) ([]*model.InputFile, error) {
	return inputFilesForDatum(ctx, p.pg, datumID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func inputFilesForDatum(ctx context.Context, q querier, datumID uuid.UUID) ([]*model.InputFile, error) {
	rows, err := q.Query(ctx,
		`SELECT id, datum_id, job_id, created_at, uri, local_path
		 FROM input_files WHERE datum_id = $1 ORDER BY created_at`, datumID)
	if err != nil {
		return nil, errors.Wrap(err, "dbpool: listing input files")
	}
	defer rows.Close()

	var files []*model.InputFile
	for rows.Next() {
		var f model.InputFile
		if err := rows.Scan(&f.ID, &f.DatumID, &f.JobID, &f.CreatedAt, &f.URI, &f.LocalPath); err != nil {
			return nil, errors.Wrap(err, "dbpool: scanning input file")
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

// ReserveNextDatum implements spec §4.2's central reservation algorithm
// in a single transaction:
//
//  1. Re-fetch the job; bail out with ErrNoDatumAvailable unless it is
//     Running — spec §4.2 step 1 gives this the same "return none"
//     contract as step 2's no-ready-datum case, so both share one
//     sentinel rather than forcing callers to special-case each.
//  2. Claim one Ready datum with SELECT ... FOR UPDATE SKIP LOCKED,
//     which lets many worker pods poll concurrently — each gets a
//     distinct row or ErrNoDatumAvailable, wait-free.
//  3. Guard attempted_run_count < maximum_allowed_run_count.
//  4. Transition Ready -> Running, set pod_name/node_name, bump the
//     attempt counter — the only place it is incremented (spec
//     invariant 3).
//  5. Load its input files.
func (p *Pool) ReserveNextDatum(ctx context.Context, jobID uuid.UUID, nodeName, podName string) (*model.Datum, []*model.InputFile, error) {
	var datum *model.Datum
	var files []*model.InputFile

	err := p.WithTx(ctx, func(tx pgx.Tx) error {
		job, err := LockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if job.Status != model.StatusRunning {
			return ErrNoDatumAvailable
		}

		row := tx.QueryRow(ctx,
			`SELECT `+datumColumns+` FROM datums
			 WHERE job_id = $1 AND status = $2
			 ORDER BY created_at LIMIT 1
			 FOR UPDATE SKIP LOCKED`,
			jobID, model.StatusReady)
		d, err := scanDatum(row)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrNoDatumAvailable
			}
			return err
		}

		if d.AttemptedRunCount >= d.MaximumAllowedRunCount {
			// Invariant guard (spec §4.2 step 3): a Ready datum should
			// never already be exhausted, but never reserve one that is.
			return ErrNoDatumAvailable
		}

		pod := podName
		node := nodeName
		_, err = tx.Exec(ctx,
			`UPDATE datums
			 SET status = $2, pod_name = $3, node_name = $4,
			     attempted_run_count = attempted_run_count + 1, updated_at = now()
			 WHERE id = $1`,
			d.ID, model.StatusRunning, pod, node)
		if err != nil {
			return errors.Wrap(err, "dbpool: reserving datum")
		}
		d.Status = model.StatusRunning
		d.PodName = &pod
		d.NodeName = &node
		d.AttemptedRunCount++

		files, err = inputFilesForDatum(ctx, tx, d.ID)
		if err != nil {
			return err
		}
		datum = d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return datum, files, nil
}

// LockDatumForOwner implements spec §4.2's ownership-verification
// fencing check: every mutation to a reserved datum locks the row and
// fails with ErrOwnershipMismatch unless pod_name still matches the
// caller. It never mutates the row on mismatch.
func LockDatumForOwner(ctx context.Context, tx pgx.Tx, datumID uuid.UUID, podName string) (*model.Datum, error) {
	row := tx.QueryRow(ctx, "SELECT "+datumColumns+" FROM datums WHERE id = $1 FOR UPDATE", datumID)
	d, err := scanDatum(row)
	if err != nil {
		return nil, err
	}
	if !d.OwnedBy(podName) {
		return nil, ErrOwnershipMismatch
	}
	return d, nil
}

// MarkDatumDone implements the worker's mark_as_done transition (spec
// §4.3): Running -> Done, recording the captured output.
func (p *Pool) MarkDatumDone(ctx context.Context, datumID uuid.UUID, podName, output string) (*model.Datum, error) {
	var result *model.Datum
	err := p.WithTx(ctx, func(tx pgx.Tx) error {
		d, err := LockDatumForOwner(ctx, tx, datumID, podName)
		if err != nil {
			return err
		}
		d.Status = model.StatusDone
		d.AppendOutput(output)
		_, err = tx.Exec(ctx,
			`UPDATE datums SET status = $2, output = $3, updated_at = now() WHERE id = $1`,
			d.ID, d.Status, d.Output)
		if err != nil {
			return errors.Wrap(err, "dbpool: marking datum done")
		}
		result = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkDatumError implements the worker's mark_as_error transition (spec
// §4.3): Running -> Error, recording an error message, optional
// backtrace, and captured output. The babysitter's zombie sweep uses
// MarkZombieDatumError instead, which skips the ownership check.
func (p *Pool) MarkDatumError(ctx context.Context, datumID uuid.UUID, podName, errorMessage, backtrace, output string) (*model.Datum, error) {
	var result *model.Datum
	err := p.WithTx(ctx, func(tx pgx.Tx) error {
		d, err := LockDatumForOwner(ctx, tx, datumID, podName)
		if err != nil {
			return err
		}
		d.Status = model.StatusError
		d.ErrorMessage = &errorMessage
		if backtrace != "" {
			d.Backtrace = &backtrace
		}
		if output != "" {
			d.AppendOutput(output)
		}
		_, err = tx.Exec(ctx,
			`UPDATE datums SET status = $2, error_message = $3, backtrace = $4, output = $5, updated_at = now()
			 WHERE id = $1`,
			d.ID, d.Status, d.ErrorMessage, d.Backtrace, d.Output)
		if err != nil {
			return errors.Wrap(err, "dbpool: marking datum error")
		}
		result = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkZombieDatumError is the babysitter's variant of MarkDatumError: it
// does not check ownership (the owning pod is, by definition, gone) but
// it does re-verify the datum is still Running after acquiring the lock,
// per spec §4.5 pass 2 ("re-verify status = Running").
func MarkZombieDatumError(ctx context.Context, tx pgx.Tx, datumID uuid.UUID, message string) error {
	row := tx.QueryRow(ctx, "SELECT "+datumColumns+" FROM datums WHERE id = $1 FOR UPDATE", datumID)
	d, err := scanDatum(row)
	if err != nil {
		return err
	}
	if d.Status != model.StatusRunning {
		return nil
	}
	_, err = tx.Exec(ctx,
		`UPDATE datums SET status = $2, error_message = $3, updated_at = now() WHERE id = $1`,
		d.ID, model.StatusError, message)
	return errors.Wrap(err, "dbpool: marking zombie datum error")
}

// RequeueRerunnableDatum is the babysitter's Error -> Ready transition
// (spec §4.5 pass 3, §4.3): it does not touch attempted_run_count (that
// only happens at the next reservation) and it deletes the datum's
// OutputFile rows — see spec §4.5's retry-correctness caveat, carried
// forward unmodified: this removes the tracking rows, not the
// underlying objects, and is only safe because the worker contract
// requires deterministic output paths.
func RequeueRerunnableDatum(ctx context.Context, tx pgx.Tx, datumID uuid.UUID) error {
	row := tx.QueryRow(ctx, "SELECT "+datumColumns+" FROM datums WHERE id = $1 FOR UPDATE", datumID)
	d, err := scanDatum(row)
	if err != nil {
		return err
	}
	if !d.IsRerunnable() {
		return nil
	}
	if _, err := tx.Exec(ctx, "DELETE FROM output_files WHERE datum_id = $1", datumID); err != nil {
		return errors.Wrap(err, "dbpool: deleting output files before requeue")
	}
	_, err = tx.Exec(ctx, "UPDATE datums SET status = $2, updated_at = now() WHERE id = $1", d.ID, model.StatusReady)
	return errors.Wrap(err, "dbpool: requeuing datum")
}

// ListDatumsByJobAndStatus is used by the describe endpoint's
// running/error listings.
func (p *Pool) ListDatumsByJobAndStatus(ctx context.Context, jobID uuid.UUID, status model.Status) ([]*model.Datum, error) {
	rows, err := p.pg.Query(ctx,
		"SELECT "+datumColumns+" FROM datums WHERE job_id = $1 AND status = $2 ORDER BY created_at", jobID, status)
	if err != nil {
		return nil, errors.Wrap(err, "dbpool: listing datums")
	}
	defer rows.Close()
	return scanDatums(rows)
}

// ListRunningJobs is used by the babysitter's first pass.
func (p *Pool) ListRunningJobs(ctx context.Context) ([]*model.Job, error) {
	rows, err := p.pg.Query(ctx, "SELECT "+jobColumns+" FROM jobs WHERE status = $1", model.StatusRunning)
	if err != nil {
		return nil, errors.Wrap(err, "dbpool: listing running jobs")
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListRunningDatums is used by the babysitter's zombie
// sweep (spec §4.5 pass 2): every Running datum, regardless of job,
// since a zombie can belong to any still-running job.
func (p *Pool) ListRunningDatums(ctx context.Context) ([]*model.Datum, error) {
	rows, err := p.pg.Query(ctx, "SELECT "+datumColumns+" FROM datums WHERE status = $1", model.StatusRunning)
	if err != nil {
		return nil, errors.Wrap(err, "dbpool: listing running datums")
	}
	defer rows.Close()
	return scanDatums(rows)
}

// ListRerunnableDatums is used by the babysitter's third pass: errored
// datums with attempts remaining whose job is still Running.
func (p *Pool) ListRerunnableDatums(ctx context.Context) ([]*model.Datum, error) {
	rows, err := p.pg.Query(ctx,
		`SELECT `+datumColumnsAliasedD+`
		 FROM datums d JOIN jobs j ON j.id = d.job_id
		 WHERE d.status = $1 AND d.attempted_run_count < d.maximum_allowed_run_count
		   AND j.status = $2`,
		model.StatusError, model.StatusRunning)
	if err != nil {
		return nil, errors.Wrap(err, "dbpool: listing rerunnable datums")
	}
	defer rows.Close()
	return scanDatums(rows)
}

func scanDatums(rows pgx.Rows) ([]*model.Datum, error) {
	var datums []*model.Datum
	for rows.Next() {
		d, err := scanDatum(rows)
		if err != nil {
			return nil, err
		}
		datums = append(datums, d)
	}
	return datums, rows.Err()
}
