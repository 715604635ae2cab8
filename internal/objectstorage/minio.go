// Package objectstorage is the narrow `read(path) -> bytes` external
// collaborator of §6; object/file storage itself is out of scope (§1),
// the core only consumes it.
package objectstorage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage is the contract the Document Analyzer and Pipeline Engine use
// to fetch a document's bytes given its source_path.
type Storage interface {
	Read(ctx context.Context, objectKey string) ([]byte, error)
	Exists(ctx context.Context, objectKey string) (bool, error)
}

// MinIOClient implements Storage over a MinIO/S3-compatible bucket,
// following the teacher's `pkg/storage/minio.go` client shape, narrowed
// to the single contract this core actually calls (presigned-URL and
// upload operations belong to the excluded HTTP/upload surface).
type MinIOClient struct {
	client     *minio.Client
	bucketName string
}

var _ Storage = (*MinIOClient)(nil)

// Config holds MinIO connection settings.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
}

// NewMinIOClient connects and ensures the bucket exists.
func NewMinIOClient(ctx context.Context, cfg Config) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOClient{client: client, bucketName: cfg.BucketName}, nil
}

// Read fetches the full object contents for objectKey.
func (mc *MinIOClient) Read(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := mc.client.GetObject(ctx, mc.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open object %q: %w", objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %q: %w", objectKey, err)
	}
	return data, nil
}

func (mc *MinIOClient) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := mc.client.StatObject(ctx, mc.bucketName, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %q: %w", objectKey, err)
	}
	return true, nil
}
