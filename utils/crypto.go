package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Wire format for an encrypted payload: hex(nonce).hex(ciphertext).hex(tag).
// A fresh random nonce is generated per encryption; reusing a nonce with the
// same key breaks GCM entirely, so the nonce is never derived from key material.
const payloadDelimiter = "."

const (
	gcmNonceSize = 12
	gcmTagSize   = 16
)

var (
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	ErrAuthenticationFailed = errors.New("payload authentication failed")
)

// DeriveKey expands the master secret into a purpose-bound key via HKDF-SHA256.
func DeriveKey(secret []byte, info string, size int) ([]byte, error) {
	h := hkdf.New(sha256.New, secret, nil, []byte(info))
	out := make([]byte, size)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncryptPayload seals plaintext with AES-256-GCM under key and returns the
// delimited wire encoding.
func EncryptPayload(key, plaintext []byte) (string, error) {
	if len(key) != 32 {
		return "", errors.New("payload key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ct := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(ct),
		hex.EncodeToString(tag),
	}, payloadDelimiter), nil
}

// DecryptPayload opens a wire-encoded payload. Any tag mismatch or structural
// defect fails; callers treat that as tamper evidence.
func DecryptPayload(key []byte, blob string) ([]byte, error) {
	if len(key) != 32 {
		return nil, errors.New("payload key must be 32 bytes")
	}

	parts := strings.Split(blob, payloadDelimiter)
	if len(parts) != 3 {
		return nil, ErrMalformedCiphertext
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != gcmNonceSize {
		return nil, ErrMalformedCiphertext
	}
	ct, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, ErrMalformedCiphertext
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil || len(tag) != gcmTagSize {
		return nil, ErrMalformedCiphertext
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// Checksum computes a short HMAC-SHA256 digest over the identity fields.
// Deterministic: same fields, same key, same digest.
func Checksum(key []byte, fields ...string) string {
	mac := hmac.New(sha256.New, key)
	for _, f := range fields {
		fmt.Fprintf(mac, "%d:%s;", len(f), f)
	}
	return hex.EncodeToString(mac.Sum(nil))[:16]
}

// VerifyChecksum compares digests in constant time.
func VerifyChecksum(key []byte, sum string, fields ...string) bool {
	return hmac.Equal([]byte(sum), []byte(Checksum(key, fields...)))
}
