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
	"io"
	"os"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// s3Store wraps aws-sdk-go-v2's S3 client for s3:// URIs (spec §6).
// Credentials and endpoint come from AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY, AWS_ENDPOINT_URL and AWS_REGION (spec §6) so
// the same code path also talks to S3-compatible stores in tests.
type s3Store struct {
	client *s3.Client
}

func newS3Store(ctx context.Context) (*s3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := os.Getenv("AWS_REGION"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if key, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); key != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "objectstore: loading AWS config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
	})
	return &s3Store{client: client}, nil
}

func (s *s3Store) List(ctx context.Context, prefix string) ([]string, error) {
	_, bucket, key, err := SplitURI(prefix)
	if err != nil {
		return nil, err
	}
	var uris []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &bucket,
		Prefix: &key,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "objectstore: listing S3 objects")
		}
		for _, obj := range page.Contents {
			uris = append(uris, "s3://"+bucket+"/"+*obj.Key)
		}
	}
	return uris, nil
}

func (s *s3Store) SyncDown(ctx context.Context, uri, localPath string) error {
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

func (s *s3Store) downloadOne(ctx context.Context, bucket, key, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Wrap(err, "objectstore: creating local directory")
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return errors.Wrapf(err, "objectstore: getting s3://%s/%s", bucket, key)
	}
	defer out.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return errors.Wrap(err, "objectstore: creating local file")
	}
	defer f.Close()

	_, err = io.Copy(f, out.Body)
	return errors.Wrap(err, "objectstore: downloading object")
}

func (s *s3Store) SyncUp(ctx context.Context, localPath, uri string) error {
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

func (s *s3Store) uploadOne(ctx context.Context, localPath, bucket, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, "objectstore: opening local file")
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   f,
	})
	return errors.Wrapf(err, "objectstore: uploading to s3://%s/%s", bucket, key)
}
