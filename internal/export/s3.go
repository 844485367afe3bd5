// Package export uploads rendered reports to S3.
package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"amm-curve-lab/internal/config"
)

// putObjectAPI is the part of *s3.Client the uploader needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// File is one rendered report artifact.
type File struct {
	Name        string // e.g. "report.md"
	ContentType string
	Body        []byte
}

// S3Uploader writes report files under a dated prefix in one bucket.
type S3Uploader struct {
	client  putObjectAPI
	bucket  string
	prefix  string
	limiter *rate.Limiter
	now     func() time.Time
	newID   func() string
}

// NewS3Uploader builds an uploader from the export config. Static
// credentials are used when both keys are set, the default chain otherwise.
func NewS3Uploader(ctx context.Context, cfg config.S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return NewS3UploaderWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3UploaderWithClient wraps an existing client.
func NewS3UploaderWithClient(client putObjectAPI, bucket, prefix string) *S3Uploader {
	return &S3Uploader{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// Key returns the object key for name:
// <prefix>/date=YYYY-MM-DD/<batch>/<name>.
func (u *S3Uploader) Key(batch, name string, at time.Time) string {
	return path.Join(u.prefix, "date="+at.Format("2006-01-02"), batch, name)
}

// Upload writes files as one batch and returns their keys in input order.
// It stops at the first failure.
func (u *S3Uploader) Upload(ctx context.Context, files []File) ([]string, error) {
	batch := u.newID()
	at := u.now()
	keys := make([]string, 0, len(files))
	for _, f := range files {
		if err := u.limiter.Wait(ctx); err != nil {
			return keys, err
		}
		key := u.Key(batch, f.Name, at)
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		input := &s3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(f.Body),
			ContentType: aws.String(contentType),
		}

		putCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		_, err := u.client.PutObject(putCtx, input)
		cancel()
		if err != nil {
			return keys, fmt.Errorf("upload %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
