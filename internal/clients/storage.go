// Copyright 2025 James Ross
package clients

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/config"
	"github.com/videoforge/engine/internal/errs"
)

// s3StorageService uploads finished artifacts (video, cover, audio,
// subtitle) to an S3-compatible bucket, configurable with a custom
// endpoint and path-style addressing for MinIO/LocalStack in development.
type s3StorageService struct {
	bucket   string
	s3Client *s3.S3
	uploader *s3manager.Uploader
	log      *zap.Logger
}

func NewFileStorageService(cfg *config.ObjectStore, log *zap.Logger) (FileStorageService, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(cfg.ForcePathStyle)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	svc := &s3StorageService{
		bucket:   cfg.Bucket,
		s3Client: s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		log:      log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := svc.s3Client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("access bucket %s: %w", cfg.Bucket, err)
	}

	return svc, nil
}

func (s *s3StorageService) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", errs.NewPermanentServiceError("storage", fmt.Errorf("open %s: %w", localPath, err))
	}
	defer f.Close()

	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", errs.NewTransientServiceError("storage", fmt.Errorf("upload %s: %w", key, err))
	}
	return key, nil
}

func (s *s3StorageService) PresignGet(ctx context.Context, key string) (string, error) {
	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(1 * time.Hour)
	if err != nil {
		return "", errs.NewPermanentServiceError("storage", fmt.Errorf("presign %s: %w", key, err))
	}
	return url, nil
}
