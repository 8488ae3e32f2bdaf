package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partnerhub/internal/config"
	"partnerhub/internal/validation"
)

type fakePresigner struct {
	input   *s3.PutObjectInput
	expires time.Duration
	err     error
}

func (p *fakePresigner) PresignPutObject(_ context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if p.err != nil {
		return nil, p.err
	}
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	p.input = in
	p.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://bucket.example/" + *in.Key + "?X-Amz-Signature=abc", Method: "PUT"}, nil
}

func storageCfg() config.StorageConfig {
	return config.StorageConfig{Bucket: "partnerhub-media", Region: "ap-northeast-2", UserImageFolder: "profile"}
}

func TestPresignUpload(t *testing.T) {
	p := &fakePresigner{}
	svc := newStorageService(p, storageCfg(), validation.New(), nil)
	svc.now = func() time.Time { return t0 }

	ticket, err := svc.PresignUpload(context.Background(), FolderPosts, UploadInput{Filename: "Menu.PNG", ContentType: "image/png"})
	require.NoError(t, err)

	key := *p.input.Key
	assert.True(t, strings.HasPrefix(key, "posts/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)
	assert.Equal(t, "partnerhub-media", *p.input.Bucket)
	assert.Equal(t, "image/png", *p.input.ContentType)
	assert.Equal(t, 5*time.Minute, p.expires)

	assert.Equal(t, "https://partnerhub-media.s3.ap-northeast-2.amazonaws.com/"+key, ticket.ImageURL)
	assert.Contains(t, ticket.UploadURL, key)
	assert.Equal(t, t0.Add(5*time.Minute), ticket.ExpiresAt)
	assert.Equal(t, "profile", svc.UserImageFolder())
}

func TestPresignUpload_PublicBaseURL(t *testing.T) {
	cfg := storageCfg()
	cfg.PublicBaseURL = "https://cdn.partnerhub.test/"
	svc := newStorageService(&fakePresigner{}, cfg, validation.New(), nil)

	ticket, err := svc.PresignUpload(context.Background(), FolderCoupons, UploadInput{Filename: "qr.jpeg", ContentType: "image/jpeg"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ticket.ImageURL, "https://cdn.partnerhub.test/coupons/"), ticket.ImageURL)
}

func TestPresignUpload_Failures(t *testing.T) {
	ctx := context.Background()

	svc := newStorageService(&fakePresigner{}, storageCfg(), validation.New(), nil)
	_, err := svc.PresignUpload(ctx, FolderPosts, UploadInput{Filename: "doc.pdf", ContentType: "application/pdf"})
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.Fields(), "content_type")

	disabled := newStorageService(nil, config.StorageConfig{}, validation.New(), nil)
	_, err = disabled.PresignUpload(ctx, FolderPosts, UploadInput{Filename: "a.png", ContentType: "image/png"})
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	broken := newStorageService(&fakePresigner{err: errors.New("signer down")}, storageCfg(), validation.New(), nil)
	_, err = broken.PresignUpload(ctx, FolderPosts, UploadInput{Filename: "a.png", ContentType: "image/png"})
	assert.ErrorContains(t, err, "signer down")
}

func TestNewStorageService_WithoutBucket(t *testing.T) {
	svc, err := NewStorageService(context.Background(), config.StorageConfig{}, validation.New(), nil)
	require.NoError(t, err)
	_, err = svc.PresignUpload(context.Background(), FolderPosts, UploadInput{Filename: "a.png", ContentType: "image/png"})
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}
