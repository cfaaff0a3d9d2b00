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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIsRerunnable(t *testing.T) {
	d := NewDatum(uuid.New(), 2)
	assert.False(t, d.IsRerunnable(), "ready datum is not rerunnable")

	d.Status = StatusError
	d.AttemptedRunCount = 1
	assert.True(t, d.IsRerunnable())

	d.AttemptedRunCount = 2
	assert.False(t, d.IsRerunnable(), "exhausted retries must not be rerunnable")
}

func TestOwnedBy(t *testing.T) {
	d := NewDatum(uuid.New(), 1)
	assert.False(t, d.OwnedBy("pod-a"), "unreserved datum has no owner")

	pod := "pod-a"
	d.PodName = &pod
	assert.True(t, d.OwnedBy("pod-a"))
	assert.False(t, d.OwnedBy("pod-b"), "zombie pod must not pass ownership check")
}

func TestAppendOutputKeepsEveryAttempt(t *testing.T) {
	d := NewDatum(uuid.New(), 2)
	d.AttemptedRunCount = 1
	d.AppendOutput("first failure")
	d.AttemptedRunCount = 2
	d.AppendOutput("second failure")

	assert.Contains(t, *d.Output, "first failure")
	assert.Contains(t, *d.Output, "second failure")
}

func TestJobCountsNextStatus(t *testing.T) {
	cases := []struct {
		name   string
		counts JobCounts
		want   *Status
	}{
		{"no datums yet", JobCounts{}, nil},
		{"still running", JobCounts{Running: 1, Done: 2}, nil},
		{"still ready", JobCounts{Ready: 1}, nil},
		{"all done", JobCounts{Done: 3}, statusPtr(StatusDone)},
		{"errored with no retries left", JobCounts{Done: 9, Error: 1}, statusPtr(StatusError)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.counts.NextStatus()
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, *tc.want, *got)
			}
		})
	}
}

func statusPtr(s Status) *Status { return &s }
