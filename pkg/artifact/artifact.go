// Package artifact stores capture images so checkout can attach them to an
// order.
package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrInvalidName is returned for names that would escape the store.
var ErrInvalidName = errors.New("invalid artifact name")

// Store persists an artifact and returns the key it is retrievable under.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// ObjectKey returns the storage key for a capture of design designID.
func ObjectKey(designID, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if designID == "" {
		return path.Join("captures", name), nil
	}
	return path.Join("captures", designID, name), nil
}

// DirStore writes artifacts below a local directory.
type DirStore struct {
	Root string
}

// NewDirStore returns a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{Root: dir}
}

// Put writes data to Root/key and returns key.
func (s *DirStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := path.Clean(key)
	if clean == "." || strings.HasPrefix(clean, "../") || clean == ".." || path.IsAbs(clean) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, key)
	}
	full := filepath.Join(s.Root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return clean, nil
}

// MinioStore uploads artifacts to an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore creates a client for endpoint. It does not contact the
// server; call EnsureBucket to verify connectivity.
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// Put uploads data as a PNG object under key.
func (s *MinioStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/png"})
	if err != nil {
		return "", fmt.Errorf("upload artifact: %w", err)
	}
	return key, nil
}

// Bucket returns the bucket name.
func (s *MinioStore) Bucket() string { return s.bucket }
