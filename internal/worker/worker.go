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

// Package worker is falconeri-worker's main loop (spec §4.6): reserve a
// datum, download its inputs, run the user command under a tee capture,
// upload outputs, report the result, repeat until the job finishes.
package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/falconeri/falconeri/internal/model"
	"github.com/falconeri/falconeri/internal/objectstore"
	"github.com/falconeri/falconeri/internal/restclient"
)

const (
	pfsDir     = "/pfs"
	pfsOutDir  = "/pfs/out"
	scratchDir = "/scratch"

	pollInterval = 30 * time.Second
)

// Worker runs one pod's datum-processing loop.
type Worker struct {
	client   *restclient.Client
	jobID    uuid.UUID
	nodeName string
	podName  string
	command  []string
}

// New builds a Worker for one pod.
func New(client *restclient.Client, jobID uuid.UUID, nodeName, podName string, command []string) *Worker {
	return &Worker{client: client, jobID: jobID, nodeName: nodeName, podName: podName, command: command}
}

// Run loops until the job reaches a terminal state (spec §4.6). It
// exits cleanly (nil error) in that case, relying on Kubernetes to
// scale the Job object down, per spec's "post-completion wait" note.
func (w *Worker) Run(ctx context.Context) error {
	for {
		job, err := w.client.GetJob(ctx, w.jobID)
		if err != nil {
			return fmt.Errorf("worker: fetching job: %w", err)
		}
		if job.Status != model.StatusRunning {
			logrus.WithField("job_id", w.jobID).Info("worker: job is no longer running, exiting")
			return nil
		}

		reservation, err := w.client.ReserveNextDatum(ctx, w.jobID, w.nodeName, w.podName)
		if err != nil {
			return fmt.Errorf("worker: reserving datum: %w", err)
		}
		if reservation.Datum == nil {
			job, err := w.client.GetJob(ctx, w.jobID)
			if err != nil {
				return fmt.Errorf("worker: re-fetching job: %w", err)
			}
			if job.Status != model.StatusRunning {
				return nil
			}
			time.Sleep(pollInterval)
			continue
		}

		if err := w.processDatum(ctx, job, reservation.Datum, reservation.InputFiles); err != nil {
			logrus.WithError(err).WithField("datum_id", reservation.Datum.ID).Error("worker: processing datum failed")
		}
	}
}

// processDatum runs one reserve→download→run→upload→patch cycle (spec
// §4.6). Errors it returns are infrastructure errors (failed to reach
// the controller, etc) that the caller logs and moves past, since the
// controller has already recorded the datum's fate via PATCH wherever
// that PATCH itself succeeded.
func (w *Worker) processDatum(ctx context.Context, job *model.Job, datum *model.Datum, inputFiles []model.InputFile) error {
	if err := resetDir(pfsDir); err != nil {
		return w.failDatum(ctx, datum.ID, "resetting /pfs", err)
	}
	if err := os.MkdirAll(pfsOutDir, 0o755); err != nil {
		return w.failDatum(ctx, datum.ID, "creating /pfs/out", err)
	}
	if err := resetDir(scratchDir); err != nil {
		return w.failDatum(ctx, datum.ID, "resetting /scratch", err)
	}
	defer func() {
		_ = resetDir(pfsDir)
		_ = resetDir(scratchDir)
	}()

	for _, f := range inputFiles {
		store, err := objectstore.New(ctx, f.URI)
		if err != nil {
			return w.failDatum(ctx, datum.ID, "selecting object store", err)
		}
		if err := store.SyncDown(ctx, f.URI, f.LocalPath); err != nil {
			return w.failDatum(ctx, datum.ID, fmt.Sprintf("downloading %s", f.URI), err)
		}
	}

	cmd := exec.CommandContext(ctx, w.command[0], w.command[1:]...)
	output, runErr := runTeed(cmd)

	if runErr != nil {
		_, patchErr := w.client.PatchDatum(ctx, datum.ID, restclient.PatchDatumRequest{
			PodName:      w.podName,
			Status:       model.StatusError,
			Output:       output,
			ErrorMessage: runErr.Error(),
		})
		return patchErr
	}

	if err := w.uploadOutputs(ctx, job, datum); err != nil {
		_, patchErr := w.client.PatchDatum(ctx, datum.ID, restclient.PatchDatumRequest{
			PodName:      w.podName,
			Status:       model.StatusError,
			Output:       output,
			ErrorMessage: err.Error(),
		})
		if patchErr != nil {
			return patchErr
		}
		return nil
	}

	_, err := w.client.PatchDatum(ctx, datum.ID, restclient.PatchDatumRequest{
		PodName: w.podName,
		Status:  model.StatusDone,
		Output:  output,
	})
	return err
}

// uploadOutputs implements spec §4.6's post-success upload sequence:
// enumerate /pfs/out, pre-register the intended uploads, sync up, then
// report per-file results.
func (w *Worker) uploadOutputs(ctx context.Context, job *model.Job, datum *model.Datum) error {
	relPaths, err := walkRegularFiles(pfsOutDir)
	if err != nil {
		return fmt.Errorf("enumerating /pfs/out: %w", err)
	}
	if len(relPaths) == 0 {
		return nil
	}

	uris := make([]string, len(relPaths))
	for i, rel := range relPaths {
		uris[i] = job.EgressURI + rel
	}

	created, err := w.client.CreateOutputFiles(ctx, datum.ID, restclient.CreateOutputFilesRequest{
		PodName: w.podName,
		URIs:    uris,
	})
	if err != nil {
		return fmt.Errorf("pre-registering output files: %w", err)
	}

	store, err := objectstore.New(ctx, job.EgressURI)
	if err != nil {
		return err
	}

	results := make([]restclient.OutputFilePatchRequest, len(created))
	uploadErr := store.SyncUp(ctx, pfsOutDir, job.EgressURI)
	for i, f := range created {
		status := model.StatusDone
		if uploadErr != nil {
			status = model.StatusError
		}
		results[i] = restclient.OutputFilePatchRequest{ID: f.ID, Status: status}
	}

	if _, err := w.client.PatchOutputFiles(ctx, datum.ID, restclient.PatchOutputFilesRequest{
		PodName: w.podName,
		Results: results,
	}); err != nil {
		return fmt.Errorf("reporting output file results: %w", err)
	}
	return uploadErr
}

// failDatum reports an infrastructure error (not a user-command
// failure) as the datum's error, matching spec §4.6's "on failure
// (non-zero exit or infrastructure error)" branch.
func (w *Worker) failDatum(ctx context.Context, datumID uuid.UUID, step string, cause error) error {
	_, err := w.client.PatchDatum(ctx, datumID, restclient.PatchDatumRequest{
		PodName:      w.podName,
		Status:       model.StatusError,
		ErrorMessage: fmt.Sprintf("%s: %v", step, cause),
	})
	return err
}

// resetDir wipes and recreates dir, matching spec §4.6's
// "reset /pfs and /scratch to empty" step.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// walkRegularFiles returns every regular file under root, as paths
// relative to root with forward slashes, for the egress-URI join in
// spec §4.6.
func walkRegularFiles(root string) ([]string, error) {
	var rel []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		r, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = append(rel, filepath.ToSlash(r))
		return nil
	})
	return rel, err
}
