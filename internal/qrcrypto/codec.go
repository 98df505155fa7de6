package qrcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gowebpki/jcs"

	"github.com/custodia-io/custodia/internal/domain"
)

const (
	// KeySize is the required AES-256 key length in bytes
	KeySize = 32
	// nonceSize is the GCM nonce length
	nonceSize = 12
	// tagSize is the GCM authentication tag length
	tagSize = 16
)

// Payload is the structured content sealed inside an issued QR credential
type Payload struct {
	EquipmentID  int64  `json:"equipo_id"`
	HolderID     int64  `json:"aprendiz_id"`
	SerialNumber string `json:"numero_serial"`
	Brand        string `json:"marca"`
}

// Codec seals and opens QR payloads with AES-256-GCM. The encoded blob layout
// is base64(nonce || tag || ciphertext).
type Codec struct {
	key []byte
}

// NewCodec creates a codec for the given 256-bit key. The key length is
// checked here so a misconfigured deployment fails at startup, not at the
// first scan.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", domain.ErrCrypto, KeySize, len(key))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &Codec{key: k}, nil
}

// Encrypt serializes the payload to canonical JSON (RFC 8785) and seals it
// under a fresh random nonce
func (c *Codec) Encrypt(payload Payload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: failed to serialize payload: %v", domain.ErrCrypto, err)
	}

	plaintext, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("%w: failed to canonicalize payload: %v", domain.ErrCrypto, err)
	}

	aead, err := c.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: failed to generate nonce: %v", domain.ErrCrypto, err)
	}

	// Seal appends the tag after the ciphertext; the blob layout puts the
	// tag between nonce and ciphertext instead
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	blob := make([]byte, 0, nonceSize+tagSize+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. It fails with ErrCrypto when the
// blob is malformed, truncated, not valid base64, or fails authentication.
func (c *Codec) Decrypt(blob string) (*Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: blob is not valid base64: %v", domain.ErrCrypto, err)
	}

	if len(raw) < nonceSize+tagSize+1 {
		return nil, fmt.Errorf("%w: blob too short (%d bytes)", domain.ErrCrypto, len(raw))
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ciphertext := raw[nonceSize+tagSize:]

	aead, err := c.aead()
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", domain.ErrCrypto)
	}

	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode payload: %v", domain.ErrCrypto, err)
	}

	return &payload, nil
}

// LooksEncrypted reports whether a blob is structurally shaped like an
// encrypted payload. This is a routing heuristic only, never a security
// boundary: a positive answer says nothing about authenticity.
func (c *Codec) LooksEncrypted(blob string) bool {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return false
	}
	return len(raw) >= nonceSize+tagSize+1
}

func (c *Codec) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize cipher: %v", domain.ErrCrypto, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize GCM: %v", domain.ErrCrypto, err)
	}
	return aead, nil
}
