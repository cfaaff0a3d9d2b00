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
	"net/http"

	"github.com/google/uuid"

	"github.com/falconeri/falconeri/internal/dbpool"
	"github.com/falconeri/falconeri/internal/model"
)

type datumResponse struct {
	Datum *model.Datum `json:"datum"`
}

type describeDatumResponse struct {
	Datum      *model.Datum       `json:"datum"`
	InputFiles []*model.InputFile `json:"input_files"`
	OutputFiles []*model.OutputFile `json:"output_files"`
}

type outputFilesResponse struct {
	OutputFiles []*model.OutputFile `json:"output_files"`
}

type patchDatumRequest struct {
	PodName      string       `json:"pod_name"`
	Status       model.Status `json:"status"`
	Output       string       `json:"output,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Backtrace    string       `json:"backtrace,omitempty"`
}

// handleDatumsItem dispatches PATCH /datums/{id}, GET
// /datums/{id}/describe, POST /datums/{id}/output_files and PATCH
// /datums/{id}/output_files.
func (s *Server) handleDatumsItem(w http.ResponseWriter, r *http.Request) {
	id, action, err := parseItemPath(r.URL.Path, "/datums/")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodPatch:
		s.patchDatum(w, r, id)
	case action == "describe" && r.Method == http.MethodGet:
		s.describeDatum(w, r, id)
	case action == "output_files" && r.Method == http.MethodPost:
		s.createOutputFiles(w, r, id)
	case action == "output_files" && r.Method == http.MethodPatch:
		s.patchOutputFiles(w, r, id)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// patchDatum implements PATCH /datums/{id} (spec §4.1, §4.3): the
// worker reports mark_as_done or mark_as_error under ownership fencing,
// then the job's status is recomputed in case this was the last datum.
func (s *Server) patchDatum(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req patchDatumRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var datum *model.Datum
	var err error
	switch req.Status {
	case model.StatusDone:
		datum, err = s.pool.MarkDatumDone(ctx, id, req.PodName, req.Output)
	case model.StatusError:
		datum, err = s.pool.MarkDatumError(ctx, id, req.PodName, req.ErrorMessage, req.Backtrace, req.Output)
	default:
		http.Error(w, "status must be done or error", http.StatusInternalServerError)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if updateErr := s.pool.UpdateJobStatusIfDone(ctx, datum.JobID); updateErr != nil {
		writeError(w, updateErr)
		return
	}
	writeJSON(w, http.StatusOK, datumResponse{Datum: datum})
}

func (s *Server) describeDatum(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	ctx := r.Context()
	datum, err := s.pool.GetDatum(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	inputFiles, err := s.pool.InputFilesForDatum(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	outputFiles, err := s.pool.OutputFilesForDatum(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describeDatumResponse{
		Datum:       datum,
		InputFiles:  inputFiles,
		OutputFiles: outputFiles,
	})
}

type createOutputFilesRequest struct {
	PodName string   `json:"pod_name"`
	URIs    []string `json:"uris"`
}

// createOutputFiles implements POST /datums/{id}/output_files (spec
// §4.1, §4.6): pre-registers a worker's intended uploads.
func (s *Server) createOutputFiles(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req createOutputFilesRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	files, err := s.pool.CreateOutputFiles(r.Context(), id, req.PodName, req.URIs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, outputFilesResponse{OutputFiles: files})
}

type patchOutputFilesRequest struct {
	PodName string                   `json:"pod_name"`
	Results []outputFilePatchRequest `json:"results"`
}

type outputFilePatchRequest struct {
	ID     uuid.UUID    `json:"id"`
	Status model.Status `json:"status"`
}

// patchOutputFiles implements PATCH /datums/{id}/output_files (spec
// §4.1, §4.6): records each declared upload's final outcome.
func (s *Server) patchOutputFiles(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req patchOutputFilesRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	patches := make([]dbpool.OutputFilePatch, len(req.Results))
	for i, result := range req.Results {
		patches[i] = dbpool.OutputFilePatch{ID: result.ID, Status: result.Status}
	}
	if err := s.pool.PatchOutputFiles(r.Context(), id, req.PodName, patches); err != nil {
		writeError(w, err)
		return
	}
	files, err := s.pool.OutputFilesForDatum(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outputFilesResponse{OutputFiles: files})
}
