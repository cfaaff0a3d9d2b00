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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetDirWipesExistingContent(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "leftover.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	require.NoError(t, resetDir(dir))

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWalkRegularFilesReturnsRelativeSlashPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("b"), 0o644))

	rel, err := walkRegularFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "sub/b.txt"}, rel)
}

func TestWalkRegularFilesEmptyDirReturnsNoFiles(t *testing.T) {
	dir := t.TempDir()
	rel, err := walkRegularFiles(dir)
	require.NoError(t, err)
	assert.Empty(t, rel)
}
