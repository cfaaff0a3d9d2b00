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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseItemPathWithoutAction(t *testing.T) {
	id := uuid.New()
	gotID, action, err := parseItemPath("/jobs/"+id.String(), "/jobs/")
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, "", action)
}

func TestParseItemPathWithAction(t *testing.T) {
	id := uuid.New()
	gotID, action, err := parseItemPath("/jobs/"+id.String()+"/describe", "/jobs/")
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, "describe", action)
}

func TestParseItemPathRejectsInvalidID(t *testing.T) {
	_, _, err := parseItemPath("/jobs/not-a-uuid", "/jobs/")
	assert.Error(t, err)
}

func TestLocalPathForStripsScheme(t *testing.T) {
	assert.Equal(t, "/pfs/in/bucket/a/b.txt", localPathFor("gs://bucket/a/b.txt"))
}

func TestUniqueRetryNameKeepsOriginalPrefix(t *testing.T) {
	name := uniqueRetryName("train-model")
	assert.Contains(t, name, "train-model-retry-")
	assert.NotEqual(t, "train-model", name)
}
