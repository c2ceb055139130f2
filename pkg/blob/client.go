// Package blob stores migrated media in S3-compatible object storage.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
)

// Client is the object storage surface the image migrator needs.
type Client interface {
	// EnsureBucket creates the configured bucket if it does not exist.
	EnsureBucket(ctx context.Context) error
	// Upload writes data under key and returns its public URL.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Exists reports whether an object is already stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// URL returns the public URL an object under key would have.
	URL(key string) string
}

// Config holds object storage connection settings.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// objectAPI is the subset of *minio.Client the wrapper calls.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

type client struct {
	api        objectAPI
	bucket     string
	publicBase string
}

// New connects to the object storage endpoint.
func New(cfg Config) (Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "blob: connect")
	}

	base := cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &client{
		api:        mc,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(base, "/"),
	}, nil
}

func (c *client) EnsureBucket(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return eris.Wrapf(err, "blob: check bucket %s", c.bucket)
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return eris.Wrapf(err, "blob: create bucket %s", c.bucket)
	}
	return nil
}

func (c *client) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := c.api.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", eris.Wrapf(err, "blob: upload %s", key)
	}
	return c.URL(key), nil
}

func (c *client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, eris.Wrapf(err, "blob: stat %s", key)
	}
	return true, nil
}

func (c *client) URL(key string) string {
	return c.publicBase + "/" + strings.TrimLeft(key, "/")
}
