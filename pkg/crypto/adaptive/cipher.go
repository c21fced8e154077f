package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// CipherType identifies an AEAD algorithm.
type CipherType string

const (
	CipherAESGCM    CipherType = "aes-gcm"
	CipherChaCha20  CipherType = "chacha20-poly1305"
	CipherXChaCha20 CipherType = "xchacha20-poly1305"
)

// KeySize is the key length every supported algorithm uses.
const KeySize = 32

// MinSecretLength is the shortest master secret DeriveKey accepts.
const MinSecretLength = 16

var (
	ErrKeySize            = errors.New("adaptive: key must be 32 bytes")
	ErrSecretTooShort     = errors.New("adaptive: secret too short (minimum 16 bytes)")
	ErrCiphertextTooShort = errors.New("adaptive: ciphertext too short")
	ErrDecrypt            = errors.New("adaptive: decryption failed - wrong key or corrupted data")
)

// Cipher is an AEAD with a random nonce prepended to every ciphertext.
type Cipher struct {
	typ  CipherType
	aead cipher.AEAD
}

// New picks AES-GCM where it is hardware accelerated and
// XChaCha20-Poly1305 otherwise.
func New(key []byte) (*Cipher, error) {
	if hasAESAcceleration() {
		return NewWithType(key, CipherAESGCM)
	}
	return NewWithType(key, CipherXChaCha20)
}

// NewWithType creates a cipher of the given type. An empty type behaves
// like New.
func NewWithType(key []byte, typ CipherType) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch typ {
	case "":
		return New(key)
	case CipherAESGCM:
		var block cipher.Block
		if block, err = aes.NewCipher(key); err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case CipherChaCha20:
		aead, err = chacha20poly1305.New(key)
	case CipherXChaCha20:
		aead, err = chacha20poly1305.NewX(key)
	default:
		return nil, fmt.Errorf("adaptive: unknown cipher type %q", typ)
	}
	if err != nil {
		return nil, fmt.Errorf("adaptive: %s: %w", typ, err)
	}
	return &Cipher{typ: typ, aead: aead}, nil
}

// Go uses AES-NI on amd64 and the ARMv8 crypto extensions on arm64.
func hasAESAcceleration() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return true
	default:
		return false
	}
}

// Type returns the algorithm.
func (c *Cipher) Type() CipherType { return c.typ }

// NonceSize returns the nonce length in bytes.
func (c *Cipher) NonceSize() int { return c.aead.NonceSize() }

// Overhead returns the nonce plus tag length added to every plaintext.
func (c *Cipher) Overhead() int { return c.aead.NonceSize() + c.aead.Overhead() }

// Encrypt seals plaintext, binding additionalData.
func (c *Cipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("adaptive: nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (c *Cipher) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(ciphertext) < ns+c.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	plain, err := c.aead.Open(nil, ciphertext[:ns], ciphertext[ns:], additionalData)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

// DeriveKey derives a KeySize key for one purpose from a master secret
// using HKDF-SHA256. Different info strings yield independent keys.
func DeriveKey(secret []byte, info string) ([]byte, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("adaptive: derive key: %w", err)
	}
	return key, nil
}

// ZeroKey overwrites key with zeros.
func ZeroKey(key []byte) {
	clear(key)
}
