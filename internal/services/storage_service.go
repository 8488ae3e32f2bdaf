package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"partnerhub/internal/config"
	"partnerhub/internal/validation"
)

const (
	FolderPosts   = "posts"
	FolderCoupons = "coupons"
)

type UploadInput struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required,oneof=image/jpeg image/png image/webp image/gif"`
}

// UploadTicket is what the client needs to PUT the file straight to the bucket.
type UploadTicket struct {
	UploadURL string    `json:"upload_url"`
	ImageURL  string    `json:"image_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type StorageService interface {
	// PresignUpload returns a presigned PUT for folder/<uuid>.<ext>.
	PresignUpload(ctx context.Context, folder string, in UploadInput) (*UploadTicket, error)
	UserImageFolder() string
}

type presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type storageService struct {
	presigner  presigner
	bucket     string
	publicBase string
	userFolder string
	expires    time.Duration
	validate   *validation.Validator
	log        *zap.Logger
	now        func() time.Time
}

// NewStorageService builds an S3 presigner from cfg. Without a bucket every upload fails with ErrStorageUnavailable.
func NewStorageService(ctx context.Context, cfg config.StorageConfig, v *validation.Validator, log *zap.Logger) (StorageService, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Bucket == "" {
		log.Warn("[storage] bucket not configured, image uploads disabled")
		return newStorageService(nil, cfg, v, log), nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newStorageService(s3.NewPresignClient(client), cfg, v, log), nil
}

func newStorageService(p presigner, cfg config.StorageConfig, v *validation.Validator, log *zap.Logger) *storageService {
	expires := cfg.PresignExpiration
	if expires <= 0 {
		expires = 5 * time.Minute
	}
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" && cfg.Bucket != "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	folder := cfg.UserImageFolder
	if folder == "" {
		folder = "users"
	}
	return &storageService{
		presigner:  p,
		bucket:     cfg.Bucket,
		publicBase: base,
		userFolder: folder,
		expires:    expires,
		validate:   v,
		log:        log,
		now:        time.Now,
	}
}

func (s *storageService) UserImageFolder() string { return s.userFolder }

func (s *storageService) PresignUpload(ctx context.Context, folder string, in UploadInput) (*UploadTicket, error) {
	in.Filename = strings.TrimSpace(in.Filename)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if s.presigner == nil {
		return nil, ErrStorageUnavailable
	}

	key := objectKey(folder, in.Filename)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(in.ContentType),
	}, s3.WithPresignExpires(s.expires))
	if err != nil {
		s.log.Error("[storage][presign] failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return &UploadTicket{
		UploadURL: req.URL,
		ImageURL:  s.publicBase + "/" + key,
		ExpiresAt: s.now().Add(s.expires),
	}, nil
}

func objectKey(folder, filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	return path.Join(folder, name)
}
