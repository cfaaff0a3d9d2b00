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

// Package objectstore defines the abstract ObjectStore the core consumes
// (spec §1, §4.7, §6): list / sync_down / sync_up over gs:// and s3://
// URIs. Trailing-slash URIs are directories and sync recursively;
// URIs without a trailing slash name a single object.
package objectstore

import (
	"context"
	"fmt"
	"strings"
)

// ObjectStore abstracts a cloud-storage backend. The core only ever
// programs against this interface (spec §1's explicit boundary).
type ObjectStore interface {
	// List enumerates object URIs under prefix (spec §4.7's resolver).
	List(ctx context.Context, prefix string) ([]string, error)
	// SyncDown copies uri to localPath. If uri ends in '/' it is a
	// directory and the copy is recursive (spec §6).
	SyncDown(ctx context.Context, uri, localPath string) error
	// SyncUp copies localPath to uri. If localPath is a directory the
	// copy is recursive (spec §4.6's /pfs/out -> egress_uri sync).
	SyncUp(ctx context.Context, localPath, uri string) error
}

// IsDirURI reports whether uri names a directory per spec §6's
// trailing-slash convention.
func IsDirURI(uri string) bool {
	return strings.HasSuffix(uri, "/")
}

// New dispatches on URI scheme to the GCS or S3 backend (spec §6's URI
// forms: gs://bucket/key and s3://bucket/key).
func New(ctx context.Context, uri string) (ObjectStore, error) {
	switch {
	case strings.HasPrefix(uri, "gs://"):
		return newGCSStore(ctx)
	case strings.HasPrefix(uri, "s3://"):
		return newS3Store(ctx)
	default:
		return nil, fmt.Errorf("objectstore: unsupported URI scheme in %q", uri)
	}
}

// SplitURI splits a "scheme://bucket/key" URI into bucket and key.
func SplitURI(uri string) (scheme, bucket, key string, err error) {
	idx := strings.Index(uri, "://")
	if idx < 0 {
		return "", "", "", fmt.Errorf("objectstore: malformed URI %q", uri)
	}
	scheme = uri[:idx]
	rest := uri[idx+3:]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return scheme, rest, "", nil
	}
	return scheme, rest[:slash], rest[slash+1:], nil
}
