package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var s3Tracer = otel.Tracer("github.com/pluginverse/storefront/pkg/storage")

// S3BlobStore stores blobs in an S3 (or S3-compatible) bucket. References
// are "s3://<bucket>/<key>".
type S3BlobStore struct {
	client *s3.Client
	bucket string
}

// NewS3BlobStore creates an S3-backed blob store
func NewS3BlobStore(cfg Config) (*S3BlobStore, error) {
	ctx := context.Background()

	var awsCfg aws.Config
	var err error

	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		// Static credentials, for MinIO or AWS with explicit keys
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKey,
				cfg.S3SecretKey,
				"",
			)),
		)
	} else {
		// Default credential chain (IAM roles, env vars)
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		if cfg.S3UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3BlobStore{
		client: client,
		bucket: cfg.S3Bucket,
	}, nil
}

// Put uploads the content and returns its s3:// reference
func (s *S3BlobStore) Put(ctx context.Context, folder, filename, contentType string, content io.Reader) (string, error) {
	if err := validFolder(folder); err != nil {
		return "", err
	}

	key := folder + "/" + uuid.NewString() + "_" + sanitizeFilename(filename)

	ctx, span := s3Tracer.Start(ctx, "S3BlobStore.Put",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put failed")
		return "", fmt.Errorf("failed to upload blob: %w", err)
	}

	return "s3://" + s.bucket + "/" + key, nil
}

// Get opens the content behind a reference
func (s *S3BlobStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	key, err := s.key(ref)
	if err != nil {
		return nil, err
	}

	ctx, span := s3Tracer.Start(ctx, "S3BlobStore.Get",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		return nil, fmt.Errorf("failed to fetch blob %s: %w", ref, err)
	}

	return out.Body, nil
}

// Delete removes the content behind a reference
func (s *S3BlobStore) Delete(ctx context.Context, ref string) error {
	key, err := s.key(ref)
	if err != nil {
		return err
	}

	ctx, span := s3Tracer.Start(ctx, "S3BlobStore.Delete",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete blob %s: %w", ref, err)
	}
	return nil
}

func (s *S3BlobStore) key(ref string) (string, error) {
	prefix := "s3://" + s.bucket + "/"
	if !strings.HasPrefix(ref, prefix) {
		return "", fmt.Errorf("invalid blob reference: %s", ref)
	}
	return strings.TrimPrefix(ref, prefix), nil
}
