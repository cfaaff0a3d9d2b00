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
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/falconeri/falconeri/internal/pipelinespec"
)

// parseItemPath splits a "{prefix}{id}" or "{prefix}{id}/{action}" path
// into its id and optional trailing action segment.
func parseItemPath(urlPath, prefix string) (uuid.UUID, string, error) {
	rest := strings.TrimPrefix(urlPath, prefix)
	segments := strings.SplitN(rest, "/", 2)

	id, err := uuid.Parse(segments[0])
	if err != nil {
		return uuid.UUID{}, "", fmt.Errorf("invalid id %q", segments[0])
	}
	if len(segments) == 1 {
		return id, "", nil
	}
	return id, segments[1], nil
}

func specJSON(spec *pipelinespec.Spec) (json.RawMessage, error) {
	b, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("restapi: encoding pipeline spec: %w", err)
	}
	return json.RawMessage(b), nil
}

// localPathFor derives a worker's download destination under /pfs from
// an input URI, mirroring the URI's own path so a command that expects
// a directory tree sees the same structure locally (spec §4.6).
func localPathFor(uri string) string {
	idx := strings.Index(uri, "://")
	if idx < 0 {
		return path.Join("/pfs/in", uri)
	}
	return path.Join("/pfs/in", uri[idx+3:])
}

// uniqueRetryName derives a fresh job name for a retry (spec §4.4's
// retry clones the spec into a new job, which needs its own name since
// job_name is unique).
func uniqueRetryName(original string) string {
	return original + "-retry-" + uuid.New().String()[:8]
}
