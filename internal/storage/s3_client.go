// Package storage uploads media straight to an S3-compatible bucket (MinIO
// in development) instead of going through the API.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"snapshoot-sync/internal/domain/media"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const keyPrefix = "media/"

type S3Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PublicBase string
}

type Client struct {
	cfg S3Config
	s3  *s3.Client
}

func NewClient(ctx context.Context, cfg S3Config) (*Client, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(strings.TrimRight(cfg.Endpoint, "/"))
			o.UsePathStyle = true
		}
	})

	return &Client{
		cfg: cfg,
		s3:  s3Client,
	}, nil
}

// UploadMedia stores the file under a fresh key. The returned id is the
// object key, which DeleteMedia accepts.
func (c *Client) UploadMedia(ctx context.Context, up media.Upload) (media.Uploaded, error) {
	if c == nil {
		return media.Uploaded{}, errors.New("s3 client not initialized")
	}
	f, err := os.Open(up.LocalPath)
	if err != nil {
		return media.Uploaded{}, fmt.Errorf("opening %s: %w", up.LocalPath, err)
	}
	defer f.Close()

	key := keyPrefix + uuid.NewString() + strings.ToLower(filepath.Ext(up.LocalPath))
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(media.ContentType(up.LocalPath, up.Kind)),
	}
	if st, err := f.Stat(); err == nil {
		input.ContentLength = aws.Int64(st.Size())
	}
	if up.Kind != "" {
		input.Metadata = map[string]string{"media-type": up.Kind.APIName()}
	}

	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return media.Uploaded{}, fmt.Errorf("put %s: %w", key, err)
	}
	return media.Uploaded{ID: key, URL: c.FileURL(key)}, nil
}

// DeleteMedia removes the object. S3 treats deleting a missing key as
// success, so this is idempotent.
func (c *Client) DeleteMedia(ctx context.Context, id string) error {
	if c == nil {
		return errors.New("s3 client not initialized")
	}
	if id == "" {
		return errors.New("object key is required")
	}
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func (c *Client) FileURL(key string) string {
	if c == nil || key == "" {
		return ""
	}
	if c.cfg.PublicBase != "" {
		return strings.TrimRight(c.cfg.PublicBase, "/") + "/" + key
	}
	if c.cfg.Endpoint != "" {
		return strings.TrimRight(c.cfg.Endpoint, "/") + "/" + c.cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.cfg.Bucket, c.cfg.Region, key)
}
