// Package media issues presigned S3 URLs for profile files and message attachments.
package media

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Presigner is the subset of *s3.PresignClient the service uses.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Upload is a presigned PUT target.
type Upload struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Service struct {
	presigner Presigner
	bucket    string
}

func NewService(p Presigner, bucket string) *Service {
	return &Service{presigner: p, bucket: bucket}
}

// NewS3Service loads the default AWS credentials chain for region.
func NewS3Service(ctx context.Context, bucket, region string) (*Service, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewService(s3.NewPresignClient(s3.NewFromConfig(cfg)), bucket), nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// UploadURL presigns a PUT for a new object of the given kind owned by userID.
func (s *Service) UploadURL(ctx context.Context, userID uint, kind, fileName, contentType string) (*Upload, error) {
	prefix, ok := config.UploadKinds[kind]
	if !ok {
		return nil, apperrors.New(apperrors.ErrValidation, fmt.Sprintf("unknown upload kind %q", kind))
	}
	if fileName == "" || contentType == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "fileName and fileType are required")
	}

	name := unsafeChars.ReplaceAllString(path.Base(fileName), "_")
	key := fmt.Sprintf("%s%d/%s-%s", prefix, userID, uuid.NewString(), name)

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(config.PresignExpiry))
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return &Upload{URL: req.URL, Key: key, ExpiresAt: time.Now().Add(config.PresignExpiry)}, nil
}

// ReadURL presigns a GET for an object previously uploaded through UploadURL.
func (s *Service) ReadURL(ctx context.Context, key string) (string, error) {
	if !knownKey(key) {
		return "", apperrors.New(apperrors.ErrValidation, "unknown object key")
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(config.PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign read: %w", err)
	}
	return req.URL, nil
}

func knownKey(key string) bool {
	if strings.Contains(key, "..") {
		return false
	}
	for _, prefix := range config.UploadKinds {
		if strings.HasPrefix(key, prefix) && len(key) > len(prefix) {
			return true
		}
	}
	return false
}
