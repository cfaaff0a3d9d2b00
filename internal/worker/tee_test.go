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

package worker

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTeedCapturesStdoutAndStderr(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "echo out-line; echo err-line >&2")
	output, err := runTeed(cmd)
	require.NoError(t, err)
	assert.Contains(t, output, "out-line")
	assert.Contains(t, output, "err-line")
}

func TestRunTeedReturnsErrorOnNonZeroExit(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 7")
	_, err := runTeed(cmd)
	assert.Error(t, err)
}

func TestCaptureBufferIsSafeForConcurrentWrites(t *testing.T) {
	c := &captureBuffer{}
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_, _ = c.Write([]byte("a"))
		}
		done <- struct{}{}
	}()
	for i := 0; i < 100; i++ {
		_, _ = c.Write([]byte("b"))
	}
	<-done
	assert.Len(t, c.String(), 200)
}
