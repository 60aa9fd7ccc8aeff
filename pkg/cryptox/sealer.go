package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrCiphertext is returned when sealed data is truncated or was tampered with.
var ErrCiphertext = errors.New("cryptox: invalid ciphertext")

const sealerInfo = "aula token store v1"

// Sealer encrypts small secrets (tokens, cached profile) for storage at rest
// with XChaCha20-Poly1305. Output layout: [24-byte nonce][ciphertext+tag].
type Sealer struct {
	key []byte
}

// NewSealer derives a 32-byte key from arbitrary key material with HKDF-SHA256.
func NewSealer(material []byte) (*Sealer, error) {
	if len(material) == 0 {
		return nil, errors.New("cryptox: empty key material")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, material, nil, []byte(sealerInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("cryptox: derive key: %w", err)
	}

	return &Sealer{key: key}, nil
}

// LoadSealer reads key material from path, falling back to the env var named
// by envKey. Neither being set is an error, we never invent a key silently
// because the sealed data would be unreadable after restart.
func LoadSealer(path, envKey string) (*Sealer, error) {
	var material []byte

	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cryptox: read key file: %w", err)
		}
		material = []byte(strings.TrimSpace(string(data)))
	case envKey != "" && os.Getenv(envKey) != "":
		material = []byte(os.Getenv(envKey))
	default:
		return nil, errors.New("cryptox: no key material configured")
	}

	return NewSealer(material)
}

// Seal encrypts plaintext. The key name is bound as associated data so a
// value cannot be swapped under a different key.
func (s *Sealer) Seal(name string, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: init aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, []byte(name)), nil
}

// Open decrypts data produced by Seal under the same name.
func (s *Sealer) Open(name string, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: init aead: %w", err)
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrCiphertext
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return nil, ErrCiphertext
	}

	return plaintext, nil
}
