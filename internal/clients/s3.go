package clients

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
	URLExpiry       time.Duration
}

// S3Client stores exports in an S3-compatible bucket and hands out presigned links.
type S3Client struct {
	raw       *minio.Client
	bucket    string
	prefix    string
	urlExpiry time.Duration
}

func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &S3Client{
		raw:       client,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		urlExpiry: expiry,
	}, nil
}

func (c *S3Client) UploadXLSX(ctx context.Context, fileName string, data []byte) (string, error) {
	if c.raw == nil {
		return "", fmt.Errorf("s3 client is nil")
	}

	key := c.prefix + fileName

	_, err := c.raw.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	})
	if err != nil {
		return "", fmt.Errorf("put object %q failed: %w", key, err)
	}

	return key, nil
}

// Save uploads under a time-stamped key so repeated exports never collide.
func (c *S3Client) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	name := time.Now().UTC().Format("20060102T150405") + "_" + path.Base(fileName)
	return c.UploadXLSX(ctx, name, data)
}

func (c *S3Client) GetTemporaryURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if c.raw == nil {
		return "", fmt.Errorf("s3 client is nil")
	}

	u, err := c.raw.PresignedGetObject(ctx, c.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign get object %q failed: %w", key, err)
	}

	return u.String(), nil
}

func (c *S3Client) PublicURL(ctx context.Context, key string) (string, error) {
	return c.GetTemporaryURL(ctx, key, c.urlExpiry)
}

// CleanupOlderThan removes exports under the prefix last modified more than d ago.
func (c *S3Client) CleanupOlderThan(ctx context.Context, d time.Duration) (int, error) {
	if c.raw == nil {
		return 0, fmt.Errorf("s3 client is nil")
	}

	threshold := time.Now().Add(-d)
	removed := 0
	for obj := range c.raw.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: c.prefix, Recursive: true}) {
		if obj.Err != nil {
			return removed, fmt.Errorf("list objects: %w", obj.Err)
		}
		if !obj.LastModified.Before(threshold) {
			continue
		}
		if err := c.raw.RemoveObject(ctx, c.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			log.Printf("[EXPORT] failed to remove s3 object %s: %v", obj.Key, err)
			continue
		}
		removed++
	}
	return removed, nil
}
