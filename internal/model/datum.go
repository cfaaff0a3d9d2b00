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
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Datum is one unit of work: a single command invocation over a fixed
// set of input files (spec §3).
type Datum struct {
	ID                     uuid.UUID `json:"id"`
	JobID                  uuid.UUID `json:"job_id"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
	Status                 Status    `json:"status"`
	PodName                *string   `json:"pod_name,omitempty"`
	NodeName               *string   `json:"node_name,omitempty"`
	ErrorMessage           *string   `json:"error_message,omitempty"`
	Backtrace              *string   `json:"backtrace,omitempty"`
	Output                 *string   `json:"output,omitempty"`
	AttemptedRunCount      int       `json:"attempted_run_count"`
	MaximumAllowedRunCount int       `json:"maximum_allowed_run_count"`
}

func (Datum) TableName() string { return "datums" }

// NewDatum builds a fresh, unreserved Datum. maximumAllowedRunCount comes
// from the pipeline spec (defaulting is the caller's responsibility).
func NewDatum(jobID uuid.UUID, maximumAllowedRunCount int) *Datum {
	return &Datum{
		ID:                     uuid.New(),
		JobID:                  jobID,
		Status:                 StatusReady,
		MaximumAllowedRunCount: maximumAllowedRunCount,
	}
}

// IsRerunnable matches spec §4.5's "rerunable" predicate: errored, with
// attempts remaining.
func (d *Datum) IsRerunnable() bool {
	return d.Status == StatusError && d.AttemptedRunCount < d.MaximumAllowedRunCount
}

// OwnedBy implements the ownership-verification fencing check of spec
// §4.2: every mutation to a reserved datum must come from the pod that
// currently holds it.
func (d *Datum) OwnedBy(podName string) bool {
	return d.PodName != nil && *d.PodName == podName
}

// AppendOutput appends a captured-output chunk to the datum's Output
// field instead of overwriting it, so a datum retried after a failure
// keeps every attempt's transcript. This is a deliberate departure from
// original_source/falconeri_common, whose mark_as_done/mark_as_error
// both overwrite the output column outright; spec §8 scenario 2 needs
// two failed attempts to leave two error records visible in output, so
// this port appends instead.
func (d *Datum) AppendOutput(chunk string) {
	if d.Output == nil || *d.Output == "" {
		d.Output = &chunk
		return
	}
	joined := *d.Output + "\n--- attempt " + strconv.Itoa(d.AttemptedRunCount) + " ---\n" + chunk
	d.Output = &joined
}
