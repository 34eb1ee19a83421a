// Package storage reads videos from an S3-compatible bucket so they can be
// handed to the backend without passing through the browser.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vidquery/vidquery/internal/upload"
)

var (
	ErrTooLarge   = errors.New("object exceeds upload limit")
	ErrInvalidKey = errors.New("invalid object key")
)

type Storage struct {
	client   *s3.Client
	bucket   string
	maxBytes int64
}

type Config struct {
	Endpoint       string
	Bucket         string
	AccessKey      string
	SecretKey      string
	Region         string
	MaxUploadBytes int64
}

func New(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Region == "" {
		cfg.Region = "eu-central-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &Storage{
		client:   client,
		bucket:   cfg.Bucket,
		maxBytes: cfg.MaxUploadBytes,
	}, nil
}

// Ping checks that the bucket is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Open streams an object as an upload blob. The caller closes the returned
// ReadCloser once the upload finishes.
func (s *Storage) Open(ctx context.Context, key string) (upload.Blob, io.ReadCloser, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return upload.Blob{}, nil, fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return upload.Blob{}, nil, fmt.Errorf("get object %s: %w", key, err)
	}

	size := aws.ToInt64(out.ContentLength)
	if s.maxBytes > 0 && size > s.maxBytes {
		_ = out.Body.Close()
		return upload.Blob{}, nil, fmt.Errorf("%s: %d > %d: %w", key, size, s.maxBytes, ErrTooLarge)
	}

	blob := upload.Blob{
		Name:        sanitizeFilename(path.Base(key)),
		ContentType: aws.ToString(out.ContentType),
		Size:        size,
		Body:        out.Body,
	}
	return blob, out.Body, nil
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '"' || r == '\\' || r < 0x20 {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
