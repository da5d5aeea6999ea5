package storage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// IDocumentStorage issues upload URLs for profile documents.
type IDocumentStorage interface {
	// GenerateInsuranceUploadURL returns a presigned PUT URL and the object key it writes to.
	GenerateInsuranceUploadURL(ctx context.Context, userID, filename, contentType string) (string, string, error)
}

// S3Settings configures the document bucket.
type S3Settings struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	URLTTL          time.Duration
}

type s3Storage struct {
	bucket        string
	urlTTL        time.Duration
	presignClient *s3.PresignClient
}

// NewS3Storage creates an S3 backed document storage.
func NewS3Storage(ctx context.Context, s S3Settings) (IDocumentStorage, error) {
	if s.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is not configured")
	}
	opts := []func(*aws_config.LoadOptions) error{aws_config.WithRegion(s.Region)}
	if s.AccessKeyID != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		))
	}
	awsCfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	ttl := s.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &s3Storage{
		bucket:        s.Bucket,
		urlTTL:        ttl,
		presignClient: s3.NewPresignClient(s3.NewFromConfig(awsCfg)),
	}, nil
}

func (s *s3Storage) GenerateInsuranceUploadURL(ctx context.Context, userID, filename, contentType string) (string, string, error) {
	objectKey := InsuranceObjectKey(userID, uuid.NewString(), filename)

	req, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.urlTTL))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", objectKey, err)
	}
	return req.URL, objectKey, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// InsuranceObjectKey builds insurance/<user>/<id>_<sanitized filename>.
func InsuranceObjectKey(userID, id, filename string) string {
	name := unsafeKeyChars.ReplaceAllString(path.Base(filename), "_")
	if name == "" || name == "." || name == "_" {
		name = "document"
	}
	return fmt.Sprintf("insurance/%s/%s_%s", userID, id, name)
}

// MockStorage returns fake URLs. Used when MOCK_SERVICES is on.
type MockStorage struct {
	BaseURL string
}

func (m *MockStorage) GenerateInsuranceUploadURL(ctx context.Context, userID, filename, contentType string) (string, string, error) {
	key := InsuranceObjectKey(userID, uuid.NewString(), filename)
	return fmt.Sprintf("%s/mock-upload/%s", m.BaseURL, key), key, nil
}
