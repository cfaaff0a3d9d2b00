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

package restclient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/falconeri/falconeri/internal/model"
)

// jobEnvelope and datumEnvelope mirror the controller's "wrap the
// entity in a named field" response convention (spec §4.1).
type jobEnvelope struct {
	Job *model.Job `json:"job"`
}

type datumEnvelope struct {
	Datum *model.Datum `json:"datum"`
}

type describeJobResponse struct {
	Job           *model.Job      `json:"job"`
	Counts        model.JobCounts `json:"counts"`
	RunningDatums []model.Datum   `json:"running_datums"`
	ErrorDatums   []model.Datum   `json:"error_datums"`
}

type describeDatumResponse struct {
	Datum      *model.Datum      `json:"datum"`
	InputFiles []model.InputFile `json:"input_files"`
}

type outputFilesResponse struct {
	OutputFiles []model.OutputFile `json:"output_files"`
}

// Version fetches the controller's version string (GET /version).
func (c *Client) Version(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.Get(ctx, "/version", &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// CreateJob submits a pipeline spec to create a job (POST /jobs).
func (c *Client) CreateJob(ctx context.Context, pipelineSpec []byte) (*model.Job, error) {
	var body struct {
		PipelineSpec string `json:"pipeline_spec"`
	}
	body.PipelineSpec = string(pipelineSpec)

	var out jobEnvelope
	if err := c.Post(ctx, "/jobs", body, &out); err != nil {
		return nil, err
	}
	return out.Job, nil
}

// GetJobByName finds a job by its unique name (GET /jobs?job_name=N).
func (c *Client) GetJobByName(ctx context.Context, jobName string) (*model.Job, error) {
	var out jobEnvelope
	path := "/jobs?job_name=" + url.QueryEscape(jobName)
	if err := c.Get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Job, nil
}

// ListJobs lists every job (GET /jobs/list).
func (c *Client) ListJobs(ctx context.Context) ([]model.Job, error) {
	var out struct {
		Jobs []model.Job `json:"jobs"`
	}
	if err := c.Get(ctx, "/jobs/list", &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// GetJob fetches a job by id (GET /jobs/{id}).
func (c *Client) GetJob(ctx context.Context, jobID uuid.UUID) (*model.Job, error) {
	var out jobEnvelope
	if err := c.Get(ctx, "/jobs/"+jobID.String(), &out); err != nil {
		return nil, err
	}
	return out.Job, nil
}

// DescribeJob fetches a job with its status counts and notable datums
// (GET /jobs/{id}/describe).
func (c *Client) DescribeJob(ctx context.Context, jobID uuid.UUID) (*describeJobResponse, error) {
	var out describeJobResponse
	if err := c.Get(ctx, "/jobs/"+jobID.String()+"/describe", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetryJob clones a finished job's pipeline spec into a fresh job
// (POST /jobs/{id}/retry).
func (c *Client) RetryJob(ctx context.Context, jobID uuid.UUID) (*model.Job, error) {
	var out jobEnvelope
	if err := c.Post(ctx, "/jobs/"+jobID.String()+"/retry", nil, &out); err != nil {
		return nil, err
	}
	return out.Job, nil
}

// ReserveNextDatumRequest is the worker's claim request (spec §4.2).
type ReserveNextDatumRequest struct {
	NodeName string `json:"node_name"`
	PodName  string `json:"pod_name"`
}

// ReserveNextDatumResponse wraps the reserved datum and its input
// files, or a nil Datum when none was available.
type ReserveNextDatumResponse struct {
	Datum      *model.Datum      `json:"datum"`
	InputFiles []model.InputFile `json:"input_files"`
}

// ReserveNextDatum calls POST /jobs/{id}/reserve_next_datum.
func (c *Client) ReserveNextDatum(ctx context.Context, jobID uuid.UUID, nodeName, podName string) (*ReserveNextDatumResponse, error) {
	req := ReserveNextDatumRequest{NodeName: nodeName, PodName: podName}
	var out ReserveNextDatumResponse
	path := fmt.Sprintf("/jobs/%s/reserve_next_datum", jobID)
	if err := c.Post(ctx, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PatchDatumRequest reports a worker-owned datum's final status (spec
// §4.1, §4.6).
type PatchDatumRequest struct {
	PodName      string       `json:"pod_name"`
	Status       model.Status `json:"status"`
	Output       string       `json:"output,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Backtrace    string       `json:"backtrace,omitempty"`
}

// PatchDatum marks a reserved datum done or errored (PATCH /datums/{id}).
func (c *Client) PatchDatum(ctx context.Context, datumID uuid.UUID, req PatchDatumRequest) (*model.Datum, error) {
	var out datumEnvelope
	if err := c.Patch(ctx, "/datums/"+datumID.String(), req, &out); err != nil {
		return nil, err
	}
	return out.Datum, nil
}

// DescribeDatum fetches a datum with its input files (GET
// /datums/{id}/describe).
func (c *Client) DescribeDatum(ctx context.Context, datumID uuid.UUID) (*describeDatumResponse, error) {
	var out describeDatumResponse
	if err := c.Get(ctx, "/datums/"+datumID.String()+"/describe", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOutputFilesRequest declares the uploads a worker intends to
// make before it makes them (spec §4.1, §4.6).
type CreateOutputFilesRequest struct {
	PodName string   `json:"pod_name"`
	URIs    []string `json:"uris"`
}

// CreateOutputFiles calls POST /datums/{id}/output_files.
func (c *Client) CreateOutputFiles(ctx context.Context, datumID uuid.UUID, req CreateOutputFilesRequest) ([]model.OutputFile, error) {
	var out outputFilesResponse
	path := "/datums/" + datumID.String() + "/output_files"
	if err := c.Post(ctx, path, req, &out); err != nil {
		return nil, err
	}
	return out.OutputFiles, nil
}

// PatchOutputFilesRequest reports the outcome of each declared upload.
type PatchOutputFilesRequest struct {
	PodName string                   `json:"pod_name"`
	Results []OutputFilePatchRequest `json:"results"`
}

// OutputFilePatchRequest is one output file's upload outcome.
type OutputFilePatchRequest struct {
	ID     uuid.UUID    `json:"id"`
	Status model.Status `json:"status"`
}

// PatchOutputFiles calls PATCH /datums/{id}/output_files.
func (c *Client) PatchOutputFiles(ctx context.Context, datumID uuid.UUID, req PatchOutputFilesRequest) ([]model.OutputFile, error) {
	var out outputFilesResponse
	path := "/datums/" + datumID.String() + "/output_files"
	if err := c.Patch(ctx, path, req, &out); err != nil {
		return nil, err
	}
	return out.OutputFiles, nil
}
