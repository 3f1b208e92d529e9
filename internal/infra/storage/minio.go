package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bryanwahyu/medreport/internal/domain/artifacts"
)

type Store struct {
	client     *minio.Client
	bucketName string
	region     string
}

// New buat koneksi MinIO
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", artifacts.ErrUnavailable, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region}, nil
}

// Area returns a view of the bucket scoped to prefix.
func (s *Store) Area(prefix string) *MinioArea {
	return &MinioArea{store: s, prefix: prefix}
}

// Check pings the bucket; used by the readiness check.
func (s *Store) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("%w: %v", artifacts.ErrUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: bucket %s missing", artifacts.ErrUnavailable, s.bucketName)
	}
	return nil
}

// MinioArea stores objects under <prefix>/<base name>. A single PutObject replaces the object whole.
type MinioArea struct {
	store  *Store
	prefix string
}

func (a *MinioArea) key(name string) (string, error) {
	base, err := baseName(name)
	if err != nil {
		return "", err
	}
	return path.Join(a.prefix, base), nil
}

func (a *MinioArea) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	key, err := a.key(name)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = ContentType(name)
	}
	_, err = a.store.client.PutObject(ctx, a.store.bucketName, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", artifacts.ErrUnavailable, key, err)
	}
	return key, nil
}

func (a *MinioArea) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !a.owns(key) {
		return nil, fmt.Errorf("%w: %s", artifacts.ErrNotFound, key)
	}
	obj, err := a.store.client.GetObject(ctx, a.store.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioErr(key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapMinioErr(key, err)
	}
	return obj, nil
}

func (a *MinioArea) Remove(ctx context.Context, key string) error {
	if !a.owns(key) {
		return fmt.Errorf("%w: %s", artifacts.ErrNotFound, key)
	}
	if err := a.store.client.RemoveObject(ctx, a.store.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return mapMinioErr(key, err)
	}
	return nil
}

func (a *MinioArea) Check(ctx context.Context) error { return a.store.Check(ctx) }

func (a *MinioArea) owns(key string) bool {
	return path.Dir(key) == path.Clean(a.prefix)
}

func mapMinioErr(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", artifacts.ErrNotFound, key)
	}
	return fmt.Errorf("%w: %s: %v", artifacts.ErrUnavailable, key, err)
}
