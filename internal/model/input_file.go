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
	"time"

	"github.com/google/uuid"
)

// InputFile is a single object a worker must download for a Datum
// (spec §3).
type InputFile struct {
	ID        uuid.UUID `json:"id"`
	DatumID   uuid.UUID `json:"datum_id"`
	JobID     uuid.UUID `json:"job_id"`
	CreatedAt time.Time `json:"created_at"`
	URI       string    `json:"uri"`
	LocalPath string    `json:"local_path"`
}

func (InputFile) TableName() string { return "input_files" }

func NewInputFile(datumID, jobID uuid.UUID, uri, localPath string) *InputFile {
	return &InputFile{
		ID:        uuid.New(),
		DatumID:   datumID,
		JobID:     jobID,
		URI:       uri,
		LocalPath: localPath,
	}
}
