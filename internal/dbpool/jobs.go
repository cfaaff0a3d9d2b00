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
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"

	"github.com/falconeri/falconeri/internal/model"
)

const jobColumns = "id, job_name, created_at, updated_at, status, command, egress_uri, pipeline_spec"

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var spec []byte
	err := row.Scan(&j.ID, &j.JobName, &j.CreatedAt, &j.UpdatedAt, &j.Status, &j.Command, &j.EgressURI, &spec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "dbpool: scanning job")
	}
	j.PipelineSpec = json.RawMessage(spec)
	return &j, nil
}

// CreateJobWithDatums inserts a job and all of its datums/input files in
// one transaction, per spec §4.4's creation algorithm. datums and
// inputFiles must already carry matching JobID/DatumID values.
func (p *Pool) CreateJobWithDatums(ctx context.Context, job *model.Job, datums []*model.Datum, inputFiles []*model.InputFile) error {
	return p.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO jobs (id, job_name, status, command, egress_uri, pipeline_spec)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			job.ID, job.JobName, job.Status, job.Command, job.EgressURI, []byte(job.PipelineSpec))
		if err != nil {
			return errors.Wrap(err, "dbpool: inserting job")
		}

		for _, d := range datums {
			_, err := tx.Exec(ctx,
				`INSERT INTO datums (id, job_id, status, maximum_allowed_run_count)
				 VALUES ($1, $2, $3, $4)`,
				d.ID, d.JobID, d.Status, d.MaximumAllowedRunCount)
			if err != nil {
				return errors.Wrap(err, "dbpool: inserting datum")
			}
		}

		for _, f := range inputFiles {
			_, err := tx.Exec(ctx,
				`INSERT INTO input_files (id, datum_id, job_id, uri, local_path)
				 VALUES ($1, $2, $3, $4, $5)`,
				f.ID, f.DatumID, f.JobID, f.URI, f.LocalPath)
			if err != nil {
				return errors.Wrap(err, "dbpool: inserting input file")
			}
		}
		return nil
	})
}

// GetJob fetches a job by id.
func (p *Pool) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	row := p.pg.QueryRow(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = $1", id)
	return scanJob(row)
}

// GetJobByName fetches a job by its unique job_name.
func (p *Pool) GetJobByName(ctx context.Context, jobName string) (*model.Job, error) {
	row := p.pg.QueryRow(ctx, "SELECT "+jobColumns+" FROM jobs WHERE job_name = $1", jobName)
	return scanJob(row)
}

// ListJobs returns every job, most recently created first.
func (p *Pool) ListJobs(ctx context.Context) ([]*model.Job, error) {
	rows, err := p.pg.Query(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY created_at DESC")
	if err != nil {
		return nil, errors.Wrap(err, "dbpool: listing jobs")
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

// LockJob selects a job FOR UPDATE inside an existing transaction (spec
// §4.4's job-row lock around update_status_if_done, and §4.5's
// re-lock-before-mutate rule).
func LockJob(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Job, error) {
	row := tx.QueryRow(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = $1 FOR UPDATE", id)
	return scanJob(row)
}

// SetJobStatus updates a job's status field inside an existing
// transaction.
func SetJobStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.Status) error {
	_, err := tx.Exec(ctx, "UPDATE jobs SET status = $2, updated_at = now() WHERE id = $1", id, status)
	return errors.Wrap(err, "dbpool: setting job status")
}

// JobCounts tallies datum statuses for a job (spec §4.1 describe, §4.4
// update_status_if_done).
func JobCounts(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (model.JobCounts, error) {
	rows, err := tx.Query(ctx, "SELECT status, count(*) FROM datums WHERE job_id = $1 GROUP BY status", jobID)
	if err != nil {
		return model.JobCounts{}, errors.Wrap(err, "dbpool: counting datums")
	}
	defer rows.Close()

	var counts model.JobCounts
	for rows.Next() {
		var status model.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return model.JobCounts{}, errors.Wrap(err, "dbpool: scanning datum count")
		}
		switch status {
		case model.StatusReady:
			counts.Ready = n
		case model.StatusRunning:
			counts.Running = n
		case model.StatusDone:
			counts.Done = n
		case model.StatusError:
			counts.Error = n
		}
	}
	return counts, rows.Err()
}

// JobCounts tallies a job's datum statuses outside any transaction, for
// the describe endpoint (spec §4.1).
func (p *Pool) JobCounts(ctx context.Context, jobID uuid.UUID) (model.JobCounts, error) {
	rows, err := p.pg.Query(ctx, "SELECT status, count(*) FROM datums WHERE job_id = $1 GROUP BY status", jobID)
	if err != nil {
		return model.JobCounts{}, errors.Wrap(err, "dbpool: counting datums")
	}
	defer rows.Close()

	var counts model.JobCounts
	for rows.Next() {
		var status model.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return model.JobCounts{}, errors.Wrap(err, "dbpool: scanning datum count")
		}
		switch status {
		case model.StatusReady:
			counts.Ready = n
		case model.StatusRunning:
			counts.Running = n
		case model.StatusDone:
			counts.Done = n
		case model.StatusError:
			counts.Error = n
		}
	}
	return counts, rows.Err()
}

// UpdateJobStatusIfDone implements spec §4.4's update_status_if_done:
// locks the job row, tallies its datums, and leaves the status alone
// unless every datum has reached a terminal outcome.
func (p *Pool) UpdateJobStatusIfDone(ctx context.Context, jobID uuid.UUID) error {
	return p.WithTx(ctx, func(tx pgx.Tx) error {
		job, err := LockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if job.Status.HasFinished() {
			return nil
		}
		counts, err := JobCounts(ctx, tx, jobID)
		if err != nil {
			return err
		}
		next := counts.NextStatus()
		if next == nil {
			return nil
		}
		if *next == model.StatusError {
			// An errored datum with attempts left is not terminal: the
			// babysitter requeues it, so the job only errors once some
			// datum has exhausted its attempts.
			var exhausted bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM datums WHERE job_id = $1 AND status = $2
				 AND attempted_run_count >= maximum_allowed_run_count)`,
				jobID, model.StatusError).Scan(&exhausted); err != nil {
				return errors.Wrap(err, "dbpool: checking for exhausted datums")
			}
			if !exhausted {
				return nil
			}
		}
		return SetJobStatus(ctx, tx, jobID, *next)
	})
}
