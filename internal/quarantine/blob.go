package quarantine

// file: internal/quarantine/blob.go

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kimosabey/dataquarantine/internal/logging"
)

var blobLogger = logging.GetLogger("quarantine_blob")

// MinioBlobStore is the reference BlobStore, backed by minio-go, for
// externalizing payloads larger than the configured threshold
// (spec.md §6).
type MinioBlobStore struct {
	client *minio.Client
	bucket string
}

// NewMinioBlobStore connects to a MinIO (or S3-compatible) endpoint and
// ensures bucket exists.
func NewMinioBlobStore(ctx context.Context, endpoint, accessKeyID, secretAccessKey, bucket string, useSSL bool) (*MinioBlobStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinioBlobStore{client: client, bucket: bucket}, nil
}

// Put implements BlobStore, returning an s3:// URI identifying the
// stored object.
func (m *MinioBlobStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		blobLogger.Error("blob put failed", "key", key, "error", err)
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", m.bucket, key), nil
}
