// Package archive uploads hash-chained audit logs to S3-compatible object
// storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ppiankov/stewardgate/internal/audit"
)

var (
	ErrMissingBucket = errors.New("archive bucket is required")
	ErrBrokenChain   = audit.ErrBrokenChain
)

// ObjectPutter is the subset of the S3 client the uploader uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds archive destination settings.
type Config struct {
	Bucket          string `koanf:"bucket"`
	Prefix          string `koanf:"prefix"`
	Endpoint        string `koanf:"endpoint"`
	Region          string `koanf:"region"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// Uploader copies verified audit logs to a bucket.
type Uploader struct {
	client  ObjectPutter
	bucket  string
	prefix  string
	timeNow func() time.Time
}

// NewUploader builds an S3 client. Static keys are used when configured;
// otherwise the default AWS chain (environment, shared config, instance
// role) supplies credentials. A custom endpoint switches to path-style
// addressing for S3-compatible stores.
func NewUploader(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, ErrMissingBucket
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	withEndpoint := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}

	if cfg.AccessKeyID != "" {
		opts := s3.Options{
			Region: region,
			Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		}
		withEndpoint(&opts)
		return NewUploaderWithClient(s3.New(opts), cfg.Bucket, cfg.Prefix), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewUploaderWithClient(s3.NewFromConfig(awsCfg, withEndpoint), cfg.Bucket, cfg.Prefix), nil
}

// NewUploaderWithClient wraps an existing client.
func NewUploaderWithClient(client ObjectPutter, bucket, prefix string) *Uploader {
	return &Uploader{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		timeNow: time.Now,
	}
}

// Key returns the object key a log at localPath is uploaded to.
func (u *Uploader) Key(localPath string) string {
	base := strings.TrimSuffix(filepath.Base(localPath), filepath.Ext(localPath))
	name := fmt.Sprintf("%s-%s.jsonl", base, u.timeNow().UTC().Format("20060102T150405Z"))
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// Upload verifies the hash chain of the log at localPath and uploads it.
// A log that fails verification is not uploaded.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	result := audit.Verify(localPath)
	if !result.Valid {
		return "", fmt.Errorf("%w: line %d: %s", ErrBrokenChain, result.ErrorLine, result.Error)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	key := u.Key(localPath)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/x-ndjson"),
		Metadata: map[string]string{
			"entries":    strconv.Itoa(result.Lines),
			"chain-tail": result.TailHash,
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", u.bucket, key, err)
	}
	return key, nil
}
