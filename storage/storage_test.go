package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concierge-hq/concierge/bookings"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("S3_BUCKET", "photos")
	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("S3_PUBLIC_BASE_URL", "https://cdn.example.com/")
	t.Setenv("S3_REGION", "")

	cfg := ConfigFromEnv("S3")
	assert.True(t, cfg.Configured())
	assert.Equal(t, "auto", cfg.Region)
	assert.Equal(t, "https://cdn.example.com", cfg.PublicBaseURL)
	assert.Equal(t, DefaultPresignTTL, cfg.PresignTTL)

	assert.False(t, ConfigFromEnv("MISSING").Configured())
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Bucket: "photos"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/companies/a/villas/v/p.jpg",
		PublicURL("https://cdn.example.com/", "/companies/a/villas/v/p.jpg"))
}

func TestResolvePhotosPublic(t *testing.T) {
	c, err := New(context.Background(), Config{
		Bucket:        "photos",
		AccessKey:     "key",
		SecretKey:     "secret",
		Region:        "auto",
		PublicBaseURL: "https://cdn.example.com",
	})
	require.NoError(t, err)

	photos := c.ResolvePhotos(context.Background(), []bookings.PhotoRef{
		{Key: "companies/acme/villas/v1/pool.jpg"},
		{External: "https://elsewhere.example.com/x.jpg"},
	})
	assert.Equal(t, []Photo{
		{Key: "companies/acme/villas/v1/pool.jpg", URL: "https://cdn.example.com/companies/acme/villas/v1/pool.jpg"},
		{URL: "https://elsewhere.example.com/x.jpg"},
	}, photos)
}

func TestPhotoURLPresigned(t *testing.T) {
	c, err := New(context.Background(), Config{
		Bucket:    "photos",
		Endpoint:  "https://s3.example.com",
		AccessKey: "key",
		SecretKey: "secret",
		Region:    "auto",
		PathStyle: true,
	})
	require.NoError(t, err)

	url, err := c.PhotoURL(context.Background(), "companies/acme/boats/b1/deck.jpg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://s3.example.com/photos/companies/acme/boats/b1/deck.jpg?"), url)
	assert.Contains(t, url, "X-Amz-Expires=3600")
	assert.Contains(t, url, "X-Amz-Signature=")
}
