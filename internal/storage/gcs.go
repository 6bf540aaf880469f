package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/taskforge/apiserver/config"
	"google.golang.org/api/option"
)

// GCSClient stores avatars in a Google Cloud Storage bucket.
type GCSClient struct {
	client    *storage.Client
	bucket    *storage.BucketHandle
	name      string
	projectID string
}

func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*GCSClient, error) {
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}

	return &GCSClient{
		client:    client,
		bucket:    client.Bucket(name),
		name:      name,
		projectID: strings.TrimSpace(cfg.ProjectID),
	}, nil
}

// EnsureBucket creates the bucket when it is missing. Creation needs
// GCS_PROJECT_ID.
func (g *GCSClient) EnsureBucket(ctx context.Context) error {
	_, err := g.bucket.Attrs(ctx)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, storage.ErrBucketNotExist):
		return err
	case g.projectID == "":
		return fmt.Errorf("bucket %s does not exist and GCS_PROJECT_ID is empty", g.name)
	}
	return g.bucket.Create(ctx, g.projectID, &storage.BucketAttrs{
		UniformBucketLevelAccess: storage.UniformBucketLevelAccess{Enabled: true},
	})
}

// Put writes obj in a single request.
func (g *GCSClient) Put(ctx context.Context, key string, obj Object) error {
	w := g.bucket.Object(key).NewWriter(ctx)
	w.ChunkSize = 0
	w.ContentType = obj.ContentType
	w.CacheControl = obj.CacheControl
	if _, err := w.Write(obj.Data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g *GCSClient) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, gcsError(err, key)
	}
	defer r.Close()
	return readObject(r)
}

func (g *GCSClient) Delete(ctx context.Context, key string) error {
	return gcsError(g.bucket.Object(key).Delete(ctx), key)
}

func (g *GCSClient) Close() error {
	return g.client.Close()
}

func (g *GCSClient) Bucket() string {
	return g.name
}

func gcsError(err error, key string) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return err
}
