// Package credstore encrypts the auth editing state at rest. Credentials
// survive across sessions, so they are sealed with XChaCha20-Poly1305 before
// anything writes them to disk.
package credstore

import (
	"crypto/rand"
	"errors"

	"the-dev-tools/apiconsole/pkg/model/mauth"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required size of the master key (256-bit).
const KeySize = chacha20poly1305.KeySize

var (
	ErrInvalidKeySize     = errors.New("credstore: key must be 32 bytes")
	ErrCiphertextTooShort = errors.New("credstore: ciphertext too short")

	// defaultKey is a static all-zeros key used when no master key is
	// configured. Obfuscation only, not cryptographically secure.
	defaultKey = [KeySize]byte{}
)

type Vault struct {
	masterKey []byte
}

// NewDefault creates a Vault with the static all-zeros key.
func NewDefault() *Vault {
	return &Vault{masterKey: defaultKey[:]}
}

func New(masterKey []byte) (*Vault, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidKeySize
	}
	keyCopy := make([]byte, KeySize)
	copy(keyCopy, masterKey)
	return &Vault{masterKey: keyCopy}, nil
}

// Seal encrypts plaintext. Output format: [24-byte nonce][ciphertext+tag].
func (v *Vault) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(v.masterKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (v *Vault) Open(ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(v.masterKey)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, nil)
}

// SealAuth serializes and encrypts the whole auth state, every variant's
// stored fields included, so switching kinds after a reload still finds the
// previously entered values.
func (v *Vault) SealAuth(a mauth.Auth) ([]byte, error) {
	plaintext, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return v.Seal(plaintext)
}

func (v *Vault) OpenAuth(ciphertext []byte) (mauth.Auth, error) {
	plaintext, err := v.Open(ciphertext)
	if err != nil {
		return mauth.Auth{}, err
	}
	var a mauth.Auth
	if err := json.Unmarshal(plaintext, &a); err != nil {
		return mauth.Auth{}, err
	}
	return a, nil
}
