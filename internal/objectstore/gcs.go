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

package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
)

// gcsStore wraps cloud.google.com/go/storage for gs:// URIs (spec §6).
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS (spec §6),
// handled implicitly by storage.NewClient's default credential chain.
type gcsStore struct {
	client *storage.Client
}

func newGCSStore(ctx context.Context) (*gcsStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "objectstore: creating GCS client")
	}
	return &gcsStore{client: client}, nil
}

func (s *gcsStore) List(ctx context.Context, prefix string) ([]string, error) {
	_, bucket, key, err := SplitURI(prefix)
	if err != nil {
		return nil, err
	}
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: key})
	var uris []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "objectstore: listing GCS objects")
		}
		uris = append(uris, fmt.Sprintf("gs://%s/%s", bucket, attrs.Name))
	}
	return uris, nil
}

func (s *gcsStore) SyncDown(ctx context.Context, uri, localPath string) error {
	if IsDirURI(uri) {
		uris, err := s.List(ctx, uri)
		if err != nil {
			return err
		}
		_, bucket, prefix, _ := SplitURI(uri)
		for _, u := range uris {
			_, _, key, _ := SplitURI(u)
			rel := strings.TrimPrefix(key, prefix)
			if err := s.downloadOne(ctx, bucket, key, filepath.Join(localPath, rel)); err != nil {
				return err
			}
		}
		return nil
	}
	_, bucket, key, err := SplitURI(uri)
	if err != nil {
		return err
	}
	return s.downloadOne(ctx, bucket, key, localPath)
}

func (s *gcsStore) downloadOne(ctx context.Context, bucket, key, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Wrap(err, "objectstore: creating local directory")
	}
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return errors.Wrapf(err, "objectstore: opening gs://%s/%s", bucket, key)
	}
	defer r.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return errors.Wrap(err, "objectstore: creating local file")
	}
	defer f.Close()

	_, err = io.Copy(f, r)
	return errors.Wrap(err, "objectstore: downloading object")
}

func (s *gcsStore) SyncUp(ctx context.Context, localPath, uri string) error {
	_, bucket, key, err := SplitURI(uri)
	if err != nil {
		return err
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return errors.Wrap(err, "objectstore: stat local path")
	}
	if !info.IsDir() {
		return s.uploadOne(ctx, localPath, bucket, key)
	}
	return filepath.WalkDir(localPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localPath, path)
		if err != nil {
			return err
		}
		destKey := strings.TrimSuffix(key, "/") + "/" + filepath.ToSlash(rel)
		return s.uploadOne(ctx, path, bucket, destKey)
	})
}

func (s *gcsStore) uploadOne(ctx context.Context, localPath, bucket, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, "objectstore: opening local file")
	}
	defer f.Close()

	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "objectstore: uploading to gs://%s/%s", bucket, key)
	}
	return errors.Wrap(w.Close(), "objectstore: finalizing GCS upload")
}
