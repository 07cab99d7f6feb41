package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"vttcore/internal/pkg/logx"
)

// S3Store implements Service against an S3-compatible endpoint.
type S3Store struct {
	bucket   string
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	logger   zerolog.Logger
}

// NewS3Store initializes the S3 client using static credentials and a custom, path-style endpoint.
func NewS3Store(ctx context.Context, cfg ServiceConfig) (*S3Store, error) {
	region := cfg.S3Region
	if region == "" {
		region = "auto"
	}

	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Store{
		bucket:   cfg.S3BucketName,
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
		logger:   logx.Component("Storage").With().Str("bucket", cfg.S3BucketName).Logger(),
	}, nil
}

// PresignUpload implements Service.
func (s *S3Store) PresignUpload(ctx context.Context, key, mimeType string, size int64, ttl time.Duration) (string, error) {
	resp, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to generate presigned upload URL.")
		return "", fmt.Errorf("presign upload %q: %w", key, err)
	}

	return resp.URL, nil
}

// PresignDownload implements Service.
func (s *S3Store) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	resp, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to generate presigned download URL.")
		return "", fmt.Errorf("presign download %q: %w", key, err)
	}

	return resp.URL, nil
}

// Upload implements Service. Large bodies are sent as a multipart upload.
func (s *S3Store) Upload(ctx context.Context, key, mimeType string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(mimeType),
		Body:        body,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("S3 upload failed.")
		return fmt.Errorf("upload %q: %w", key, err)
	}

	s.logger.Info().Str("key", key).Msg("Map image uploaded.")
	return nil
}

// Stat implements Service.
func (s *S3Store) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return ObjectInfo{}, ErrObjectNotFound
		}
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to get S3 object metadata.")
		return ObjectInfo{}, fmt.Errorf("head %q: %w", key, err)
	}

	return ObjectInfo{
		ContentType: aws.ToString(resp.ContentType),
		Size:        aws.ToInt64(resp.ContentLength),
	}, nil
}
