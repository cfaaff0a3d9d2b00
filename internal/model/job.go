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

package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job represents one pipeline invocation (spec §3).
type Job struct {
	ID           uuid.UUID       `json:"id"`
	JobName      string          `json:"job_name"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Status       Status          `json:"status"`
	Command      []string        `json:"command"`
	EgressURI    string          `json:"egress_uri"`
	PipelineSpec json.RawMessage `json:"pipeline_spec"`
}

// TableName returns the entity's table name. dbpool writes its queries
// with literal table names and does not call it.
func (Job) TableName() string { return "jobs" }

// NewJob builds a fresh Job in the Running state. Callers still need to
// insert it (and its datums) inside one transaction per spec §4.4.
func NewJob(jobName string, command []string, egressURI string, pipelineSpec json.RawMessage) *Job {
	return &Job{
		ID:           uuid.New(),
		JobName:      jobName,
		Status:       StatusRunning,
		Command:      command,
		EgressURI:    egressURI,
		PipelineSpec: pipelineSpec,
	}
}

// JobCounts summarizes datum statuses for a job, used by the describe
// endpoint (spec §4.1) and by update_status_if_done (spec §4.4).
type JobCounts struct {
	Ready   int `json:"ready"`
	Running int `json:"running"`
	Done    int `json:"done"`
	Error   int `json:"error"`
}

// Total returns the number of datums accounted for in the counts.
func (c JobCounts) Total() int {
	return c.Ready + c.Running + c.Done + c.Error
}

// NextStatus implements the decision table in spec §4.4's
// update_status_if_done: nil means "leave the job status alone". The
// counts carry no attempt numbers, so Error here means only that some
// datum errored; dbpool.UpdateJobStatusIfDone additionally requires one
// of them to have no attempts left before it sets the job to Error.
func (c JobCounts) NextStatus() *Status {
	if c.Ready > 0 || c.Running > 0 {
		return nil
	}
	if c.Total() == 0 {
		return nil
	}
	var s Status
	if c.Error > 0 {
		s = StatusError
	} else {
		s = StatusDone
	}
	return &s
}
