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

// Package inputresolver expands a pipeline spec's input globs into the
// (datum × input_files) pairs the job-creation handler bulk-inserts
// (spec §4.7). It is interface-only in scope: the contract is that
// every URI matching the spec at submission time appears exactly once
// in exactly one resulting group.
package inputresolver

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/falconeri/falconeri/internal/objectstore"
	"github.com/falconeri/falconeri/internal/pipelinespec"
)

// ResolvedDatum is one group of input URIs destined for a single datum
// row plus its input_files rows.
type ResolvedDatum struct {
	URIs []string
}

// Resolve enumerates every URI matching spec's globs and groups them
// into datums. With no GroupBy configured, every matched URI becomes
// its own single-file datum. With GroupBy set to "basename", URIs
// sharing the same filename stem (extension stripped) across one or
// more globs are joined into one datum — the common "image.jpg +
// image.json" pairing.
func Resolve(ctx context.Context, store objectstore.ObjectStore, input pipelinespec.Input) ([]ResolvedDatum, error) {
	seen := make(map[string]bool)
	var matched []string

	for _, glob := range input.Globs {
		uris, err := expandGlob(ctx, store, glob)
		if err != nil {
			return nil, fmt.Errorf("inputresolver: expanding glob %q: %w", glob, err)
		}
		for _, uri := range uris {
			if seen[uri] {
				continue
			}
			seen[uri] = true
			matched = append(matched, uri)
		}
	}
	sort.Strings(matched)

	if input.GroupBy == "" {
		datums := make([]ResolvedDatum, 0, len(matched))
		for _, uri := range matched {
			datums = append(datums, ResolvedDatum{URIs: []string{uri}})
		}
		return datums, nil
	}

	if input.GroupBy != "basename" {
		return nil, fmt.Errorf("inputresolver: unsupported group_by %q", input.GroupBy)
	}

	groups := make(map[string][]string)
	var order []string
	for _, uri := range matched {
		key := stem(uri)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], uri)
	}

	datums := make([]ResolvedDatum, 0, len(order))
	for _, key := range order {
		uris := groups[key]
		sort.Strings(uris)
		datums = append(datums, ResolvedDatum{URIs: uris})
	}
	return datums, nil
}

// expandGlob lists every object under the glob's fixed prefix (the
// portion before its first wildcard) and keeps those matching the full
// pattern, since ObjectStore.List only understands literal prefixes.
func expandGlob(ctx context.Context, store objectstore.ObjectStore, glob string) ([]string, error) {
	prefix := fixedPrefix(glob)
	candidates, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, uri := range candidates {
		ok, err := path.Match(glob, uri)
		if err != nil {
			return nil, fmt.Errorf("inputresolver: invalid glob pattern %q: %w", glob, err)
		}
		if ok {
			matched = append(matched, uri)
		}
	}
	return matched, nil
}

// fixedPrefix returns the portion of a glob pattern before its first
// wildcard character, usable as an ObjectStore.List prefix.
func fixedPrefix(glob string) string {
	idx := strings.IndexAny(glob, "*?[")
	if idx < 0 {
		return glob
	}
	return glob[:idx]
}

// stem returns a URI's filename with its extension stripped, the join
// key for "basename" grouping.
func stem(uri string) string {
	base := path.Base(uri)
	if dot := strings.LastIndex(base, "."); dot > 0 {
		base = base[:dot]
	}
	return path.Dir(uri) + "/" + base
}
