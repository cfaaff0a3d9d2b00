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
	"bytes"
	"io"
	"os"
	"os/exec"
	"sync"
)

// captureBuffer is the mutex-guarded single-interleaved buffer spec
// §4.6's tee requirement asks for: bytes from stdout and stderr append
// in the order they became available, and the same bytes also reach
// the console.
type captureBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *captureBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *captureBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// runTeed runs cmd with its stdout/stderr mirrored to the parent
// process's own stdout/stderr and simultaneously appended to a shared
// captured-output buffer, concurrently draining both pipes (spec §4.6's
// tee requirement).
func runTeed(cmd *exec.Cmd) (output string, err error) {
	capture := &captureBuffer{}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", err
	}

	if err := cmd.Start(); err != nil {
		return "", err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(io.MultiWriter(os.Stdout, capture), stdout)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(io.MultiWriter(os.Stderr, capture), stderr)
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	return capture.String(), waitErr
}
