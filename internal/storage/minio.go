package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/taskforge/apiserver/config"
)

// MinioClient stores avatars in an S3-compatible MinIO bucket.
type MinioClient struct {
	client *minio.Client
	bucket string
}

func NewMinioClient(cfg config.MinioConfig) (*MinioClient, error) {
	var missing []string
	for name, value := range map[string]string{
		"MINIO_ENDPOINT":   cfg.Endpoint,
		"MINIO_ACCESS_KEY": cfg.AccessKey,
		"MINIO_SECRET_KEY": cfg.SecretKey,
		"MINIO_BUCKET":     cfg.Bucket,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("minio: missing %s", strings.Join(missing, ", "))
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinioClient{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinioClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil || exists {
		return err
	}
	err = m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	if resp := minio.ToErrorResponse(err); resp.Code == "BucketAlreadyOwnedByYou" {
		return nil
	}
	return err
}

func (m *MinioClient) Put(ctx context.Context, key string, obj Object) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(obj.Data), int64(len(obj.Data)), minio.PutObjectOptions{
		ContentType:  obj.ContentType,
		CacheControl: obj.CacheControl,
	})
	return err
}

// Get reads the whole object. GetObject is lazy, so a missing key only
// surfaces on the first read.
func (m *MinioClient) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, minioError(err)
	}
	defer obj.Close()

	data, err := readObject(obj)
	if err != nil {
		return nil, minioError(err)
	}
	return data, nil
}

func (m *MinioClient) Delete(ctx context.Context, key string) error {
	return minioError(m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}))
}

func (m *MinioClient) Bucket() string {
	return m.bucket
}

func minioError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, resp.Key)
	}
	return err
}
