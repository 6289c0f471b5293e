package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrShareTokenInvalid = errors.New("invalid share token")
	ErrShareTokenExpired = errors.New("share token expired")
)

// ShareClaims holds the data in an offer share token.
type ShareClaims struct {
	OfferID   string `json:"oid"`
	Company   string `json:"cid"`
	Nonce     string `json:"n"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// ShareSigner issues and validates HMAC-signed offer share tokens.
type ShareSigner struct {
	key []byte
}

// NewShareSigner creates a signer. The secret gets a domain separator so
// the PII encryption key is never used directly.
func NewShareSigner(secret string) *ShareSigner {
	if secret == "" {
		secret = "dev-share-key"
	}
	return &ShareSigner{key: []byte("offer-share:" + secret)}
}

// DefaultShareSigner returns a signer keyed by ENCRYPTION_KEY
func DefaultShareSigner() *ShareSigner {
	return NewShareSigner(os.Getenv("ENCRYPTION_KEY"))
}

// Issue creates a token for an offer valid for ttl from now.
func (s *ShareSigner) Issue(offerID, company string, ttl time.Duration, now time.Time) (string, ShareClaims, error) {
	claims := ShareClaims{
		OfferID:   offerID,
		Company:   company,
		Nonce:     uuid.NewString(),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", ShareClaims{}, err
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + s.sign(encoded), claims, nil
}

// Validate checks the signature and expiry of a token and returns its claims.
func (s *ShareSigner) Validate(token string, now time.Time) (*ShareClaims, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok || encoded == "" {
		return nil, ErrShareTokenInvalid
	}

	if !hmac.Equal([]byte(sig), []byte(s.sign(encoded))) {
		return nil, ErrShareTokenInvalid
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrShareTokenInvalid
	}

	var claims ShareClaims
	if err := json.Unmarshal(payload, &claims); err != nil || claims.OfferID == "" {
		return nil, ErrShareTokenInvalid
	}

	if now.Unix() > claims.ExpiresAt {
		return nil, ErrShareTokenExpired
	}

	return &claims, nil
}

func (s *ShareSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
