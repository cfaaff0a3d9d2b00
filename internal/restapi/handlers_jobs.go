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

package restapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"

	"github.com/falconeri/falconeri/internal/dbpool"
	"github.com/falconeri/falconeri/internal/inputresolver"
	"github.com/falconeri/falconeri/internal/model"
	"github.com/falconeri/falconeri/internal/objectstore"
	"github.com/falconeri/falconeri/internal/pipelinespec"
)

type jobResponse struct {
	Job *model.Job `json:"job"`
}

type jobsResponse struct {
	Jobs []*model.Job `json:"jobs"`
}

type describeJobResponse struct {
	Job           *model.Job      `json:"job"`
	Counts        model.JobCounts `json:"counts"`
	RunningDatums []*model.Datum  `json:"running_datums"`
	ErrorDatums   []*model.Datum  `json:"error_datums"`
}

type createJobRequest struct {
	PipelineSpec string `json:"pipeline_spec"`
}

// handleJobsRoot serves POST /jobs (create) and GET /jobs?job_name=N
// (find by name).
func (s *Server) handleJobsRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createJob(w, r)
	case http.MethodGet:
		s.findJobByName(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	spec, err := pipelinespec.Parse([]byte(req.PipelineSpec))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	job, err := s.buildAndPersistJob(r.Context(), spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, jobResponse{Job: job})
}

// buildAndPersistJob runs the resolver against the pipeline spec's
// input description and inserts the job, its datums and input files in
// one transaction (spec §4.4, §4.7).
func (s *Server) buildAndPersistJob(ctx context.Context, spec *pipelinespec.Spec) (*model.Job, error) {
	store, err := objectstore.New(ctx, spec.Input.Globs[0])
	if err != nil {
		return nil, err
	}

	groups, err := inputresolver.Resolve(ctx, store, spec.Input)
	if err != nil {
		return nil, err
	}

	rawSpec, err := specJSON(spec)
	if err != nil {
		return nil, err
	}

	job := model.NewJob(spec.JobName, spec.Command, spec.Egress, rawSpec)

	var datums []*model.Datum
	var inputFiles []*model.InputFile
	for _, group := range groups {
		d := model.NewDatum(job.ID, spec.MaximumAllowedRunCount)
		datums = append(datums, d)
		for _, uri := range group.URIs {
			inputFiles = append(inputFiles, model.NewInputFile(d.ID, job.ID, uri, localPathFor(uri)))
		}
	}

	if err := s.pool.CreateJobWithDatums(ctx, job, datums, inputFiles); err != nil {
		return nil, err
	}

	// Kicking the worker Job object is fire-and-forget (spec §4.4): a
	// failure here is logged, not surfaced to the caller, since the
	// babysitter's vanished-job sweep (spec §4.5) already covers the
	// case where no pods ever materialize.
	if s.kube != nil {
		env := make([]corev1.EnvVar, 0, len(spec.Env))
		for k, v := range spec.Env {
			env = append(env, corev1.EnvVar{Name: k, Value: v})
		}
		if err := s.kube.CreateWorkerJob(ctx, job, spec.Image, spec.ParallelismSpec, env); err != nil {
			logrus.WithError(err).WithField("job_id", job.ID).Error("restapi: creating worker Job object")
		}
	}

	return job, nil
}

func (s *Server) findJobByName(w http.ResponseWriter, r *http.Request) {
	jobName := r.URL.Query().Get("job_name")
	if jobName == "" {
		http.Error(w, "job_name is required", http.StatusBadRequest)
		return
	}
	job, err := s.pool.GetJobByName(r.Context(), jobName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{Job: job})
}

// handleJobsList serves GET /jobs/list.
func (s *Server) handleJobsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jobs, err := s.pool.ListJobs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobsResponse{Jobs: jobs})
}

// handleJobsItem dispatches GET /jobs/{id}, GET /jobs/{id}/describe and
// POST /jobs/{id}/retry and POST /jobs/{id}/reserve_next_datum.
func (s *Server) handleJobsItem(w http.ResponseWriter, r *http.Request) {
	id, action, err := parseItemPath(r.URL.Path, "/jobs/")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getJob(w, r, id)
	case action == "describe" && r.Method == http.MethodGet:
		s.describeJob(w, r, id)
	case action == "retry" && r.Method == http.MethodPost:
		s.retryJob(w, r, id)
	case action == "reserve_next_datum" && r.Method == http.MethodPost:
		s.reserveNextDatum(w, r, id)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	job, err := s.pool.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{Job: job})
}

func (s *Server) describeJob(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	ctx := r.Context()
	job, err := s.pool.GetJob(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	running, err := s.pool.ListDatumsByJobAndStatus(ctx, id, model.StatusRunning)
	if err != nil {
		writeError(w, err)
		return
	}
	errored, err := s.pool.ListDatumsByJobAndStatus(ctx, id, model.StatusError)
	if err != nil {
		writeError(w, err)
		return
	}
	counts, err := s.pool.JobCounts(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describeJobResponse{
		Job:           job,
		Counts:        counts,
		RunningDatums: running,
		ErrorDatums:   errored,
	})
}

// retryJob implements POST /jobs/{id}/retry (spec §4.4): clones the
// finished job's pipeline spec into a fresh job without mutating the
// original. Re-resolves inputs rather than copying datum rows, since
// the spec only guarantees the pipeline spec is preserved.
func (s *Server) retryJob(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	ctx := r.Context()
	original, err := s.pool.GetJob(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	spec, err := pipelinespec.Parse(original.PipelineSpec)
	if err != nil {
		writeError(w, err)
		return
	}
	spec.JobName = uniqueRetryName(spec.JobName)

	job, err := s.buildAndPersistJob(ctx, spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, jobResponse{Job: job})
}

type reserveNextDatumRequest struct {
	NodeName string `json:"node_name"`
	PodName  string `json:"pod_name"`
}

type reserveNextDatumResponse struct {
	Datum      *model.Datum      `json:"datum"`
	InputFiles []*model.InputFile `json:"input_files"`
}

// reserveNextDatum implements POST /jobs/{id}/reserve_next_datum (spec
// §4.2): "none available" is a 200 response with a nil datum, not an
// error, since it is an expected steady-state outcome of worker polling.
func (s *Server) reserveNextDatum(w http.ResponseWriter, r *http.Request, jobID uuid.UUID) {
	defer observeReservationLatency(time.Now())

	var req reserveNextDatumRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	datum, files, err := s.pool.ReserveNextDatum(r.Context(), jobID, req.NodeName, req.PodName)
	if err != nil {
		if err == dbpool.ErrNoDatumAvailable {
			writeJSON(w, http.StatusOK, reserveNextDatumResponse{})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reserveNextDatumResponse{Datum: datum, InputFiles: files})
}
