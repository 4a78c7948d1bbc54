// Package storage uploads event media to S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrDisabled is returned by Upload when no bucket is configured.
var ErrDisabled = errors.New("media uploads are not configured")

// putter is the slice of the S3 API the uploader needs.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// MediaUploader stores media objects under media/<yyyy>/<mm>/.
type MediaUploader struct {
	client        putter
	bucket        string
	publicBaseURL string
	now           func() time.Time
}

// NewMediaUploader returns a disabled uploader when bucket is empty.
func NewMediaUploader(ctx context.Context, bucket, region, publicBaseURL string) (*MediaUploader, error) {
	if bucket == "" {
		return &MediaUploader{}, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newMediaUploader(s3.NewFromConfig(cfg), bucket, publicBaseURL), nil
}

func newMediaUploader(client putter, bucket, publicBaseURL string) *MediaUploader {
	return &MediaUploader{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}
}

func (u *MediaUploader) Enabled() bool { return u != nil && u.client != nil && u.bucket != "" }

// Upload stores body and returns the URL to record for it: the public base
// URL joined with the key when one is configured, s3://bucket/key otherwise.
func (u *MediaUploader) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	if !u.Enabled() {
		return "", ErrDisabled
	}
	key := u.objectKey(filename)
	in := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := u.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}
	if u.publicBaseURL != "" {
		return u.publicBaseURL + "/" + key, nil
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}

func (u *MediaUploader) objectKey(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) > 8 {
		ext = ""
	}
	return fmt.Sprintf("media/%s/%s%s", u.now().UTC().Format("2006/01"), uuid.NewString(), ext)
}
