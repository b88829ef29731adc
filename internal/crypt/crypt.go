// Package crypt encrypts chat content at rest.
//
// Ciphertext is AES-256-GCM encoded as "ivHex.tagHex.dataHex" so the three
// parts stay individually inspectable. Values that don't match that structure
// are treated as legacy plaintext and passed through unchanged on decrypt.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	ivLength  = 12
	tagLength = 16
	keyLength = 32
)

// Codec performs authenticated encryption of message content.
type Codec struct {
	aead cipher.AEAD
}

// New derives a 256-bit key from the configured passphrase and returns a
// ready-to-use Codec.
func New(passphrase string) (*Codec, error) {
	kdf := hkdf.New(sha256.New, []byte(passphrase), nil, []byte("vital-sign-be message content"))
	key := make([]byte, keyLength)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive content key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to build GCM: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals the plaintext and returns it in iv.tag.data hex form.
func (c *Codec) Encrypt(plain string) (string, error) {
	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	// Seal appends the 16-byte auth tag to the ciphertext; split it back out
	// to keep the stored layout explicit.
	sealed := c.aead.Seal(nil, iv, []byte(plain), nil)
	data, tag := sealed[:len(sealed)-tagLength], sealed[len(sealed)-tagLength:]

	return hex.EncodeToString(iv) + "." + hex.EncodeToString(tag) + "." + hex.EncodeToString(data), nil
}

// Decrypt opens an iv.tag.data value. Anything that is not shaped like our
// ciphertext, or that fails authentication, is returned as-received so
// listings never break on legacy or malformed rows.
func (c *Codec) Decrypt(enc string) string {
	iv, tag, data, ok := splitParts(enc)
	if !ok {
		return enc
	}

	plain, err := c.aead.Open(nil, iv, append(data, tag...), nil)
	if err != nil {
		return enc
	}
	return string(plain)
}

func splitParts(enc string) (iv, tag, data []byte, ok bool) {
	parts := strings.Split(enc, ".")
	if len(parts) != 3 {
		return nil, nil, nil, false
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivLength {
		return nil, nil, nil, false
	}
	tag, err = hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagLength {
		return nil, nil, nil, false
	}
	data, err = hex.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, false
	}
	return iv, tag, data, true
}
