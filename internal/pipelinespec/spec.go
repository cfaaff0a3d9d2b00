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

// Package pipelinespec defines the document a user submits to create a
// job: container image, command, input description and output prefix
// (spec GLOSSARY, §4.4).
package pipelinespec

import (
	"fmt"
	"strings"

	"sigs.k8s.io/yaml"
)

// Input describes how to expand object-store URIs into datums (spec
// §4.7). Each glob match becomes one InputFile. With GroupBy empty,
// every match is its own datum; with GroupBy "basename", matches from
// any of the Globs that share a directory and extension-stripped
// filename are joined into one datum.
type Input struct {
	Globs   []string `json:"globs"`
	GroupBy string   `json:"group_by,omitempty"`
}

// ResourceRequests mirrors a subset of a pod's resource requests. They
// are parsed and stored with the spec; core logic never inspects them
// and the worker Job's pod spec does not carry them.
type ResourceRequests struct {
	CPU    string `json:"cpu,omitempty"`
	Memory string `json:"memory,omitempty"`
}

// Spec is the pipeline specification document (spec §1, §4.4).
type Spec struct {
	JobName                string            `json:"job_name"`
	Image                  string            `json:"image"`
	Command                []string          `json:"command"`
	Input                  Input             `json:"input"`
	Egress                 string            `json:"egress"`
	ParallelismSpec        int32             `json:"parallelism_spec,omitempty"`
	MaximumAllowedRunCount int               `json:"maximum_allowed_run_count,omitempty"`
	Resources              ResourceRequests  `json:"resource_requests,omitempty"`
	Env                    map[string]string `json:"env,omitempty"`
}

const defaultMaximumAllowedRunCount = 3

// Parse decodes a pipeline spec from either JSON or YAML bytes — both
// are accepted because sigs.k8s.io/yaml round-trips JSON through YAML
// (the teacher's config-loading convention; see SPEC_FULL.md).
func Parse(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("pipelinespec: parse: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.MaximumAllowedRunCount <= 0 {
		s.MaximumAllowedRunCount = defaultMaximumAllowedRunCount
	}
	if s.ParallelismSpec <= 0 {
		s.ParallelismSpec = 1
	}
	return &s, nil
}

// Validate checks the structural invariants a submitted spec must meet
// before the controller will expand it into datums.
func (s *Spec) Validate() error {
	if s.JobName == "" {
		return fmt.Errorf("pipelinespec: job_name is required")
	}
	if s.Image == "" {
		return fmt.Errorf("pipelinespec: image is required")
	}
	if len(s.Command) == 0 {
		return fmt.Errorf("pipelinespec: command must not be empty")
	}
	if len(s.Input.Globs) == 0 {
		return fmt.Errorf("pipelinespec: input.globs must not be empty")
	}
	if s.Egress == "" {
		return fmt.Errorf("pipelinespec: egress is required")
	}
	if !strings.HasSuffix(s.Egress, "/") {
		return fmt.Errorf("pipelinespec: egress must end in '/' (got %q)", s.Egress)
	}
	return nil
}
