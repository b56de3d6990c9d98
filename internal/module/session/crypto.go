package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const sealerInfo = "album session token sealing v1"

// TokenSealer encrypts token fields before they leave the process.
type TokenSealer struct {
	aead cipher.AEAD
}

// NewTokenSealer derives an AES-256 key from masterKey with HKDF-SHA256.
func NewTokenSealer(masterKey string) (*TokenSealer, error) {
	if masterKey == "" {
		return nil, fmt.Errorf("master key is empty")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(masterKey), nil, []byte(sealerInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &TokenSealer{aead: aead}, nil
}

// Seal returns base64(nonce || ciphertext || tag). Empty input stays empty.
func (t *TokenSealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, t.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := t.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (t *TokenSealer) Open(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: decode base64: %v", ErrDecryptionFailed, err)
	}

	nonceSize := t.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrDecryptionFailed
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := t.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}
