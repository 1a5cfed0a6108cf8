// Package storage wraps the S3/MinIO object store behind the narrow
// interface the document services need. Path collisions are prevented by
// the upload orchestrator's name prefixing, not here.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"archidoc/config"
)

type ObjectStore interface {
	Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string) error
	// Remove deletes stored objects. Callers treat failures as non-fatal;
	// the janitor sweeps anything left behind.
	Remove(ctx context.Context, paths ...string) error
	PublicURL(path string) string
}

// PathLister is implemented by stores that can enumerate their objects.
// The janitor needs it; the document services do not.
type PathLister interface {
	ListPaths(ctx context.Context) ([]string, error)
}

type S3Store struct {
	client *minio.Client
	bucket string
	region string
	base   string
}

func NewS3Store(cfg config.StorageConfig) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		base:   fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket),
	}, nil
}

// EnsureBucket makes sure the document bucket exists before first use.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *S3Store) Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, path, reader, size, opts); err != nil {
		return fmt.Errorf("upload object %s: %w", path, err)
	}
	return nil
}

func (s *S3Store) Remove(ctx context.Context, paths ...string) error {
	var firstErr error
	for _, p := range paths {
		if err := s.client.RemoveObject(ctx, s.bucket, p, minio.RemoveObjectOptions{}); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove object %s: %w", p, err)
		}
	}
	return firstErr
}

func (s *S3Store) PublicURL(path string) string {
	return s.base + "/" + path
}

// ListPaths walks the bucket; the janitor uses it to find orphans.
func (s *S3Store) ListPaths(ctx context.Context) ([]string, error) {
	var res []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		res = append(res, obj.Key)
	}
	return res, nil
}
