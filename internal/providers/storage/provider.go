package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/smallbiznis/kpireport/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Publisher copies run outputs to shared storage.
type Publisher interface {
	Publish(ctx context.Context, key string, body []byte) error
	Enabled() bool
}

// ObjectPutter is the subset of the S3 client used for publishing.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type NoOpPublisher struct{}

func (NoOpPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NoOpPublisher) Enabled() bool                                  { return false }

type S3Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
	log    *zap.Logger
}

func NewS3Publisher(client ObjectPutter, bucket, prefix string, log *zap.Logger) *S3Publisher {
	return &S3Publisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log.Named("storage.s3"),
	}
}

func (p *S3Publisher) Enabled() bool { return true }

// Publish uploads body under the configured prefix.
func (p *S3Publisher) Publish(ctx context.Context, key string, body []byte) error {
	objectKey := path.Join(p.prefix, key)
	contentType := contentTypeFor(key)

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", p.bucket, objectKey, err)
	}
	p.log.Info("object published", zap.String("bucket", p.bucket), zap.String("key", objectKey))
	return nil
}

var contentTypes = map[string]string{
	".csv":  "text/csv; charset=utf-8",
	".prom": "text/plain; version=0.0.4",
}

func contentTypeFor(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

var Module = fx.Module("providers.storage",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns an S3 publisher when a bucket is configured.
func NewFromConfig(cfg config.Config, log *zap.Logger) (Publisher, error) {
	if !cfg.S3.Enabled() {
		return NoOpPublisher{}, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3.Region)}
	if cfg.S3.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.S3.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return NewS3Publisher(s3.NewFromConfig(awsCfg), cfg.S3.Bucket, cfg.S3.Prefix, log), nil
}
