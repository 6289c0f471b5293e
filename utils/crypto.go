package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/pocketbase/pocketbase/core"
)

const encryptedPrefix = "enc:"

var (
	ErrNoKey         = errors.New("ENCRYPTION_KEY environment variable not set")
	ErrDecryptFailed = errors.New("decryption failed")
)

// PIIFields defines which fields need encryption per collection
var PIIFields = map[string][]string{
	CollectionClients: {"email", "phone"},
}

// Cipher encrypts PII with AES-256-GCM and builds HMAC blind indexes.
// A Cipher without a key passes values through unchanged.
type Cipher struct {
	key []byte
}

// NewCipher derives a 32-byte key from secret. An empty secret disables encryption.
func NewCipher(secret string) *Cipher {
	if secret == "" {
		return &Cipher{}
	}
	hash := sha256.Sum256([]byte(secret))
	return &Cipher{key: hash[:]}
}

var (
	defaultCipher *Cipher
	cipherOnce    sync.Once
)

// DefaultCipher returns the cipher keyed by ENCRYPTION_KEY
func DefaultCipher() *Cipher {
	cipherOnce.Do(func() {
		defaultCipher = NewCipher(os.Getenv("ENCRYPTION_KEY"))
		if defaultCipher.Enabled() {
			log.Printf("[Crypto] Encryption key initialized")
		} else {
			log.Printf("[Crypto] Warning: ENCRYPTION_KEY not set, encryption disabled")
		}
	})
	return defaultCipher
}

// Enabled returns true if encryption is configured
func (c *Cipher) Enabled() bool {
	return len(c.key) > 0
}

// IsEncrypted reports whether a stored value carries the encryption prefix
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix)
}

// Encrypt encrypts plaintext and returns "enc:" + base64(nonce|ciphertext).
// Empty input stays empty. Without a key the original value is returned.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" || !c.Enabled() || IsEncrypted(plaintext) {
		return plaintext, nil
	}

	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without the prefix are legacy plaintext
// and are returned as-is.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if !IsEncrypted(ciphertext) {
		return ciphertext, nil
	}
	if !c.Enabled() {
		return ciphertext, ErrNoKey
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, encryptedPrefix))
	if err != nil {
		return ciphertext, err
	}

	gcm, err := c.gcm()
	if err != nil {
		return ciphertext, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return ciphertext, ErrDecryptFailed
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return ciphertext, ErrDecryptFailed
	}
	return string(plaintext), nil
}

// DecryptField decrypts a value, falling back to the stored value on failure
func (c *Cipher) DecryptField(value string) string {
	decrypted, err := c.Decrypt(value)
	if err != nil {
		return value
	}
	return decrypted
}

// BlindIndex creates a deterministic hash for searchable encrypted fields.
// Input is lowercased and trimmed first. Returns "" without a key.
func (c *Cipher) BlindIndex(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" || !c.Enabled() {
		return ""
	}
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(normalized))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Cipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptRecord encrypts the PII fields of a record in place and refreshes
// its email blind index. Returns true when the record changed.
func (c *Cipher) EncryptRecord(record *core.Record) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}

	changed := false
	for _, field := range PIIFields[record.Collection().Name] {
		val := record.GetString(field)
		if val == "" || IsEncrypted(val) {
			continue
		}
		encrypted, err := c.Encrypt(val)
		if err != nil {
			return changed, err
		}
		record.Set(field, encrypted)
		changed = true
	}

	if email := record.GetString("email"); email != "" {
		index := c.BlindIndex(c.DecryptField(email))
		if record.GetString("email_index") != index {
			record.Set("email_index", index)
			changed = true
		}
	}

	return changed, nil
}

// DecryptRecord returns the plaintext PII fields of a record
func (c *Cipher) DecryptRecord(record *core.Record) map[string]string {
	out := map[string]string{}
	for _, field := range PIIFields[record.Collection().Name] {
		out[field] = c.DecryptField(record.GetString(field))
	}
	return out
}
