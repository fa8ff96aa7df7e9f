package tokens

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Envelope seals raw refresh tokens for client transport and derives the
// one-way digest used as the DB lookup key.
//
// Sealed layout: nonce || ciphertext, base64 URL encoded without padding.
// Anything that does not authenticate under the current key comes back as
// ErrTokenTampered, never as a partial plaintext.
type Envelope struct {
	aead   cipher.AEAD
	pepper string
}

func NewEnvelope(key []byte, pepper string) (*Envelope, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("envelope key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Envelope{aead: aead, pepper: pepper}, nil
}

func (e *Envelope) Protect(raw string) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(raw), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (e *Envelope) Unprotect(encrypted string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrTokenTampered
	}
	if len(data) < chacha20poly1305.NonceSizeX+e.aead.Overhead() {
		return "", ErrTokenTampered
	}
	plain, err := e.aead.Open(nil, data[:chacha20poly1305.NonceSizeX], data[chacha20poly1305.NonceSizeX:], nil)
	if err != nil {
		return "", ErrTokenTampered
	}
	return string(plain), nil
}

// Hash is the lookup key derivation. Peppered so a DB dump alone is not
// enough to forge lookups for known raw values.
func (e *Envelope) Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw + e.pepper))
	return hex.EncodeToString(sum[:])
}
