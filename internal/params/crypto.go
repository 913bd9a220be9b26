package params

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Key and nonce sizes for AES-256-GCM.
const (
	keySize   = 32
	nonceSize = 12
)

var (
	// ErrInvalidKey is returned when the encryption key is not 64 hex characters.
	ErrInvalidKey = errors.New("encryption key must be 64 hex characters (32 bytes)")

	// ErrDecryptFailed is returned when a stored secret cannot be decrypted.
	ErrDecryptFailed = errors.New("decrypting secret value failed")
)

// Encryptor provides AES-256-GCM encryption for secret parameter values,
// giving secrets encryption-at-rest semantics distinct from plain values.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates an Encryptor from a hex-encoded 32-byte key.
func NewEncryptor(hexKey string) (*Encryptor, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != keySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Encryptor{aead: aead}, nil
}

// Encrypt seals the plaintext with a random nonce. Output is nonce||ciphertext.
func (e *Encryptor) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens data produced by Encrypt.
func (e *Encryptor) Decrypt(data []byte) (string, error) {
	if len(data) < nonceSize {
		return "", ErrDecryptFailed
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
