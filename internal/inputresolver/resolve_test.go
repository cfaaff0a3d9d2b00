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

package inputresolver

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconeri/falconeri/internal/pipelinespec"
)

// fakeStore serves List from an in-memory URI set, never touching
// SyncDown/SyncUp, which the resolver never calls.
type fakeStore struct {
	uris []string
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	for _, u := range f.uris {
		if strings.HasPrefix(u, prefix) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) SyncDown(ctx context.Context, uri, localPath string) error { return nil }
func (f *fakeStore) SyncUp(ctx context.Context, localPath, uri string) error   { return nil }

func TestResolveWithoutGroupByOneFilePerDatum(t *testing.T) {
	store := &fakeStore{uris: []string{
		"gs://bucket/in/a.txt",
		"gs://bucket/in/b.txt",
		"gs://bucket/other/c.txt",
	}}
	input := pipelinespec.Input{Globs: []string{"gs://bucket/in/*.txt"}}

	datums, err := Resolve(context.Background(), store, input)
	require.NoError(t, err)
	require.Len(t, datums, 2)
	for _, d := range datums {
		assert.Len(t, d.URIs, 1)
	}
}

func TestResolveGroupsByBasenameAcrossGlobs(t *testing.T) {
	store := &fakeStore{uris: []string{
		"gs://bucket/images/cat.jpg",
		"gs://bucket/images/cat.json",
		"gs://bucket/images/dog.jpg",
		"gs://bucket/images/dog.json",
	}}
	input := pipelinespec.Input{
		Globs:   []string{"gs://bucket/images/*.jpg", "gs://bucket/images/*.json"},
		GroupBy: "basename",
	}

	datums, err := Resolve(context.Background(), store, input)
	require.NoError(t, err)
	require.Len(t, datums, 2)
	for _, d := range datums {
		assert.Len(t, d.URIs, 2)
	}
}

// TestResolveEveryMatchAppearsExactlyOnce is the spec's §8 round-trip
// law: every URI the globs match ends up in exactly one group.
func TestResolveEveryMatchAppearsExactlyOnce(t *testing.T) {
	want := []string{
		"gs://bucket/in/a.txt",
		"gs://bucket/in/b.txt",
		"gs://bucket/in/c.txt",
	}
	store := &fakeStore{uris: want}
	input := pipelinespec.Input{Globs: []string{"gs://bucket/in/*.txt"}}

	datums, err := Resolve(context.Background(), store, input)
	require.NoError(t, err)

	var got []string
	for _, d := range datums {
		got = append(got, d.URIs...)
	}
	sort.Strings(got)
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestResolveDeduplicatesOverlappingGlobs(t *testing.T) {
	store := &fakeStore{uris: []string{"gs://bucket/in/a.txt"}}
	input := pipelinespec.Input{Globs: []string{"gs://bucket/in/*.txt", "gs://bucket/in/a.*"}}

	datums, err := Resolve(context.Background(), store, input)
	require.NoError(t, err)
	assert.Len(t, datums, 1)
}

func TestResolveUnsupportedGroupByErrors(t *testing.T) {
	store := &fakeStore{}
	input := pipelinespec.Input{Globs: []string{"gs://bucket/in/*.txt"}, GroupBy: "regex"}

	_, err := Resolve(context.Background(), store, input)
	assert.Error(t, err)
}
