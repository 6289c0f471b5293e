package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareTokens(t *testing.T) {
	s := NewShareSigner("test-secret")
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	token, claims, err := s.Issue("offer1", "acme", ShareLinkTTL, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(14*24*time.Hour).Unix(), claims.ExpiresAt)

	got, err := s.Validate(token, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "offer1", got.OfferID)
	assert.Equal(t, "acme", got.Company)
	assert.Equal(t, claims.Nonce, got.Nonce)

	_, err = s.Validate(token, now.Add(ShareLinkTTL+time.Second))
	assert.ErrorIs(t, err, ErrShareTokenExpired)

	_, err = NewShareSigner("other").Validate(token, now)
	assert.ErrorIs(t, err, ErrShareTokenInvalid)

	payload, sig, _ := strings.Cut(token, ".")
	_, err = s.Validate(payload+"x."+sig, now)
	assert.ErrorIs(t, err, ErrShareTokenInvalid)

	for _, bad := range []string{"", ".", "nodot", "." + sig} {
		_, err = s.Validate(bad, now)
		assert.ErrorIs(t, err, ErrShareTokenInvalid, bad)
	}

	second, _, err := s.Issue("offer1", "acme", ShareLinkTTL, now)
	require.NoError(t, err)
	assert.NotEqual(t, token, second)
}
