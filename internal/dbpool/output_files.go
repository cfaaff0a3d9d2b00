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

const outputFileColumns = "id, datum_id, job_id, created_at, uri, status"

// OutputFilePatch is one {id, status} pair from a worker's PATCH
// /datums/{id}/output_files request (spec §4.1).
type OutputFilePatch struct {
	ID     uuid.UUID
	Status model.Status
}

// CreateOutputFiles pre-registers a datum's intended uploads before the
// worker actually uploads anything (spec §4.6's "why pre-register"
// rationale: a partial upload must still be visible to the babysitter).
// It verifies ownership first, using the same fencing check as every
// other datum mutation (spec §4.2).
func (p *Pool) CreateOutputFiles(ctx context.Context, datumID uuid.UUID, podName string, uris []string) ([]*model.OutputFile, error) {
	var created []*model.OutputFile
	err := p.WithTx(ctx, func(tx pgx.Tx) error {
		datum, err := LockDatumForOwner(ctx, tx, datumID, podName)
		if err != nil {
			return err
		}
		for _, uri := range uris {
			f := model.NewOutputFile(datumID, datum.JobID, uri)
			_, err := tx.Exec(ctx,
				"INSERT INTO output_files (id, datum_id, job_id, uri, status) VALUES ($1, $2, $3, $4, $5)",
				f.ID, f.DatumID, f.JobID, f.URI, f.Status)
			if err != nil {
				return errors.Wrap(err, "dbpool: inserting output file")
			}
			created = append(created, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// PatchOutputFiles records upload results (spec §4.1 PATCH
// /datums/{id}/output_files), verifying ownership first.
func (p *Pool) PatchOutputFiles(ctx context.Context, datumID uuid.UUID, podName string, patches []OutputFilePatch) error {
	return p.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := LockDatumForOwner(ctx, tx, datumID, podName); err != nil {
			return err
		}
		for _, patch := range patches {
			_, err := tx.Exec(ctx,
				"UPDATE output_files SET status = $2 WHERE id = $1 AND datum_id = $3",
				patch.ID, patch.Status, datumID)
			if err != nil {
				return errors.Wrap(err, "dbpool: patching output file")
			}
		}
		return nil
	})
}

// OutputFilesForDatum lists a datum's output files, oldest first, for
// the describe endpoint.
func (p *Pool) OutputFilesForDatum(ctx context.Context, datumID uuid.UUID) ([]*model.OutputFile, error) {
	rows, err := p.pg.Query(ctx, "SELECT "+outputFileColumns+" FROM output_files WHERE datum_id = $1 ORDER BY created_at", datumID)
	if err != nil {
		return nil, errors.Wrap(err, "dbpool: listing output files")
	}
	defer rows.Close()

	var files []*model.OutputFile
	for rows.Next() {
		var f model.OutputFile
		if err := rows.Scan(&f.ID, &f.DatumID, &f.JobID, &f.CreatedAt, &f.URI, &f.Status); err != nil {
			return nil, errors.Wrap(err, "dbpool: scanning output file")
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}
