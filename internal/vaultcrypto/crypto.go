// Package vaultcrypto implements the archive's AEAD layer: PBKDF2 key
// derivation and AES-256-GCM sealing, pinned to a wire format a browser's
// WebCrypto implementation can reproduce (see SPEC_FULL.md §5.1).
package vaultcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/dlfi/archive/internal/archiveerr"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltLen is the length in bytes of a freshly generated KDF salt.
	SaltLen = 16
	// KeyLen is the AES-256 key length in bytes.
	KeyLen = 32
	// NonceLen is the GCM nonce length in bytes.
	NonceLen = 12
	// TagLen is the GCM authentication tag length in bytes.
	TagLen = 16
	// Iterations is the PBKDF2-HMAC-SHA256 iteration count. Pinned so a
	// browser deriving the same key via WebCrypto gets identical bytes.
	Iterations = 100_000

	// CheckPlaintext is the fixed known-plaintext sealed into
	// VaultConfig.check_value; a correct decryption validates a
	// candidate password before any blob is touched.
	CheckPlaintext = "DLFI_VERIFICATION"
)

// Crypto seals and opens byte buffers for one archive. A Disabled
// instance passes bytes through unchanged, matching an unencrypted
// archive.
type Crypto struct {
	key     []byte
	enabled bool
}

// New derives a fresh key from password with a newly generated random
// salt, returning both the Crypto and the salt to persist in
// VaultConfig.
func New(password string) (c *Crypto, salt []byte, err error) {
	salt = make([]byte, SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, &archiveerr.IOError{Op: "generate salt", Err: err}
	}
	return FromSalt(password, salt), salt, nil
}

// FromSalt re-derives a key from password and a previously stored salt
// (e.g. when reopening an encrypted archive).
func FromSalt(password string, salt []byte) *Crypto {
	key := pbkdf2.Key([]byte(password), salt, Iterations, KeyLen, sha256.New)
	return &Crypto{key: key, enabled: true}
}

// Disabled returns a passthrough Crypto for an unencrypted archive.
func Disabled() *Crypto {
	return &Crypto{enabled: false}
}

// Enabled reports whether this Crypto actually encrypts (vs. passthrough).
func (c *Crypto) Enabled() bool { return c.enabled }

// Encrypt seals plaintext as nonce(12) || ciphertext || tag(16). When
// disabled, it returns plaintext unchanged.
func (c *Crypto) Encrypt(plaintext []byte) ([]byte, error) {
	if !c.enabled {
		out := make([]byte, len(plaintext))
		copy(out, plaintext)
		return out, nil
	}

	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, &archiveerr.IOError{Op: "generate nonce", Err: err}
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt. It fails with a CryptoError on truncated
// input or AEAD tag mismatch (wrong password, or corrupted ciphertext).
func (c *Crypto) Decrypt(sealed []byte) ([]byte, error) {
	if !c.enabled {
		out := make([]byte, len(sealed))
		copy(out, sealed)
		return out, nil
	}

	if len(sealed) < NonceLen+TagLen {
		return nil, &archiveerr.CryptoError{Reason: "ciphertext truncated"}
	}

	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	nonce, ciphertext := sealed[:NonceLen], sealed[NonceLen:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &archiveerr.CryptoError{Reason: "authentication failed"}
	}
	return plaintext, nil
}

// EncryptString seals s and returns URL-safe base64.
func (c *Crypto) EncryptString(s string) (string, error) {
	sealed, err := c.Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func (c *Crypto) DecryptString(s string) (string, error) {
	sealed, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return "", &archiveerr.CryptoError{Reason: "invalid base64"}
	}
	plaintext, err := c.Decrypt(sealed)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// SealCheckValue seals the fixed known-plaintext used to validate a
// password without touching any blob.
func (c *Crypto) SealCheckValue() (string, error) {
	return c.EncryptString(CheckPlaintext)
}

// VerifyCheckValue decrypts checkValue and reports whether it equals
// the known plaintext.
func (c *Crypto) VerifyCheckValue(checkValue string) error {
	plaintext, err := c.DecryptString(checkValue)
	if err != nil {
		return &archiveerr.AuthError{Reason: "incorrect password"}
	}
	if plaintext != CheckPlaintext {
		return &archiveerr.AuthError{Reason: "incorrect password"}
	}
	return nil
}

func (c *Crypto) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, &archiveerr.CryptoError{Reason: err.Error()}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &archiveerr.CryptoError{Reason: err.Error()}
	}
	return gcm, nil
}
