package registry

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/shotpipe/shotpipe/pkg/observability"
)

// S3ArchiveConfig configures the S3 archiver.
type S3ArchiveConfig struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	MaxAttempts  int
}

// S3Archiver uploads publish payloads to an S3 bucket as a cold-storage
// copy. Keys mirror the registry layout: <entity>/<name>/v<version>/<file>.
type S3Archiver struct {
	client *s3.Client
	bucket string
	retry  *RetryPolicy
	log    *observability.Logger
}

// NewS3Archiver creates a new S3-backed archiver.
func NewS3Archiver(cfg S3ArchiveConfig, log *observability.Logger) (*S3Archiver, error) {
	ctx := context.Background()

	var awsCfg aws.Config
	var err error

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		// Static credentials, for MinIO or AWS with explicit keys.
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Archiver{
		client: client,
		bucket: cfg.Bucket,
		retry: NewRetryPolicy(RetryConfig{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: 2 * time.Second,
			MaxDelay:     2 * time.Minute,
		}),
		log: log,
	}, nil
}

// Archive implements the Archiver interface. Transient upload failures are
// retried with exponential backoff.
func (a *S3Archiver) Archive(ctx context.Context, pf *PublishedFile) error {
	key := archiveKey(pf)

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = a.upload(ctx, pf.Path, key)
		if lastErr == nil {
			a.log.WithFields(map[string]interface{}{
				"publish_id": pf.ID,
				"bucket":     a.bucket,
				"key":        key,
			}).Info("archived publish payload")
			return nil
		}
		if !a.retry.ShouldRetry(attempt+1, lastErr) {
			break
		}

		delay := a.retry.NextRetryDelay(attempt + 1)
		a.log.WithError(lastErr).
			WithField("publish_id", pf.ID).
			Warnf("archive upload failed, retrying in %s", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("failed to archive %s: %w", pf.ID, lastErr)
}

func (a *S3Archiver) upload(ctx context.Context, filePath, key string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open publish payload: %w", err)
	}
	defer f.Close()

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

func archiveKey(pf *PublishedFile) string {
	entity := pf.Entity
	if entity == "" {
		entity = "_unscoped"
	}
	return path.Join(entity, pf.Name, fmt.Sprintf("v%03d", pf.VersionNumber), path.Base(pf.Path))
}
