// Package storage wraps the S3-compatible bucket that holds villa and boat
// photos and database backups.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/concierge-hq/concierge/bookings"
)

// DefaultPresignTTL is how long a presigned photo URL stays valid
const DefaultPresignTTL = time.Hour

// ErrNotConfigured is returned when the bucket or credentials are missing
var ErrNotConfigured = errors.New("storage not configured")

// Config holds bucket connection settings
type Config struct {
	Bucket        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	PublicBaseURL string
	PathStyle     bool
	PresignTTL    time.Duration
}

// ConfigFromEnv reads {prefix}_BUCKET, {prefix}_ENDPOINT_URL,
// {prefix}_ACCESS_KEY_ID, {prefix}_SECRET_ACCESS_KEY, {prefix}_REGION,
// {prefix}_PUBLIC_BASE_URL and {prefix}_FORCE_PATH_STYLE.
func ConfigFromEnv(prefix string) Config {
	env := func(name string) string {
		return strings.TrimSpace(os.Getenv(prefix + "_" + name))
	}

	cfg := Config{
		Bucket:        env("BUCKET"),
		Endpoint:      env("ENDPOINT_URL"),
		AccessKey:     env("ACCESS_KEY_ID"),
		SecretKey:     env("SECRET_ACCESS_KEY"),
		Region:        env("REGION"),
		PublicBaseURL: strings.TrimRight(env("PUBLIC_BASE_URL"), "/"),
		PathStyle:     env("FORCE_PATH_STYLE") == "true",
		PresignTTL:    DefaultPresignTTL,
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	return cfg
}

// Configured reports whether the bucket and credentials are set
func (c Config) Configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Client talks to one bucket
type Client struct {
	cfg     Config
	s3      *s3.Client
	presign *s3.PresignClient
}

// New creates a client for the configured bucket
func New(ctx context.Context, cfg Config) (*Client, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = DefaultPresignTTL
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &Client{
		cfg:     cfg,
		s3:      client,
		presign: s3.NewPresignClient(client),
	}, nil
}

// Bucket returns the bucket name
func (c *Client) Bucket() string {
	return c.cfg.Bucket
}

// PublicURL joins a public base URL and an object key
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// PhotoURL returns a browser-usable URL for an object key: a public URL when a
// public base is configured, else a presigned GET.
func (c *Client) PhotoURL(ctx context.Context, key string) (string, error) {
	if c.cfg.PublicBaseURL != "" {
		return PublicURL(c.cfg.PublicBaseURL, key), nil
	}

	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.cfg.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Photo is a reconciled photo with a resolved URL
type Photo struct {
	Key string `json:"key,omitempty"`
	URL string `json:"url"`
}

// ResolvePhotos turns reconciled references into URLs. External references
// keep their URL. Keys that fail to sign are skipped.
func (c *Client) ResolvePhotos(ctx context.Context, refs []bookings.PhotoRef) []Photo {
	out := make([]Photo, 0, len(refs))
	for _, ref := range refs {
		if ref.External != "" {
			out = append(out, Photo{URL: ref.External})
			continue
		}
		url, err := c.PhotoURL(ctx, ref.Key)
		if err != nil {
			log.Printf("[Storage] Warning: %v", err)
			continue
		}
		out = append(out, Photo{Key: ref.Key, URL: url})
	}
	return out
}

// Upload writes an object
func (c *Client) Upload(ctx context.Context, key string, body io.Reader) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// DeleteOlderThan removes objects under prefix last modified before cutoff.
// Returns the keys that were deleted.
func (c *Client) DeleteOlderThan(ctx context.Context, prefix string, cutoff time.Time) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.cfg.Bucket),
		Prefix: aws.String(prefix),
	})

	var stale []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.LastModified != nil && obj.LastModified.Before(cutoff) {
				stale = append(stale, aws.ToString(obj.Key))
			}
		}
	}

	var deleted []string
	for _, key := range stale {
		_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.cfg.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			log.Printf("[Storage] Warning: Failed to delete %s: %v", key, err)
			continue
		}
		deleted = append(deleted, key)
	}
	return deleted, nil
}
