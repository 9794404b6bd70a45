package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/devionx/uidshield/internal/core/domain"
)

const (
	algorithmID   = "aes-256-gcm"
	kdfIterations = 100_000
	keyLength     = 32
)

// Envelope performs authenticated encryption with a process-wide key derived
// once at construction. The derived key lives only in memory; it is never
// logged or serialized. Init-once: the envelope is immutable after New and
// safe for concurrent use.
type Envelope struct {
	aead       cipher.AEAD
	keyVersion int
}

// New derives the key from the configured secret and persisted salt with
// PBKDF2-HMAC-SHA256 and a fixed iteration count.
func New(secret, salt string, keyVersion int) (*Envelope, error) {
	if secret == "" {
		return nil, errors.New("envelope: secret is required")
	}
	if salt == "" {
		return nil, errors.New("envelope: salt is required")
	}
	if keyVersion <= 0 {
		keyVersion = 1
	}

	key := pbkdf2.Key([]byte(secret), []byte(salt), kdfIterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	return &Envelope{aead: aead, keyVersion: keyVersion}, nil
}

func (e *Envelope) KeyVersion() int {
	if e == nil {
		return 0
	}
	return e.keyVersion
}

// Seal encrypts plaintext under a fresh random nonce. Two calls on identical
// plaintext never produce identical blobs.
func (e *Envelope) Seal(plaintext []byte) (domain.CipherBlob, error) {
	if e == nil || e.aead == nil {
		return domain.CipherBlob{}, domain.WrapError(domain.ErrDecryptionFailed, "seal", errors.New("envelope not initialized"))
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return domain.CipherBlob{}, fmt.Errorf("generate nonce: %w", err)
	}

	return domain.CipherBlob{
		Algorithm:  algorithmID,
		KeyVersion: e.keyVersion,
		Nonce:      nonce,
		Ciphertext: e.aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// Open authenticates before returning plaintext. Any tampering with nonce,
// ciphertext or tag fails the whole call.
func (e *Envelope) Open(blob domain.CipherBlob) ([]byte, error) {
	if e == nil || e.aead == nil {
		return nil, domain.WrapError(domain.ErrDecryptionFailed, "open", errors.New("envelope not initialized"))
	}
	if blob.Algorithm != algorithmID {
		return nil, domain.WrapError(domain.ErrDecryptionFailed, "open", fmt.Errorf("unsupported algorithm %q", blob.Algorithm))
	}
	if blob.KeyVersion != e.keyVersion {
		return nil, domain.WrapError(domain.ErrDecryptionFailed, "open", fmt.Errorf("key version %d not available", blob.KeyVersion))
	}
	if len(blob.Nonce) != e.aead.NonceSize() {
		return nil, domain.WrapError(domain.ErrDecryptionFailed, "open", errors.New("malformed nonce"))
	}

	plaintext, err := e.aead.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDecryptionFailed, "open", err)
	}
	return plaintext, nil
}
