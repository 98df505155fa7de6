package qrcrypto_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-io/custodia/internal/domain"
	"github.com/custodia-io/custodia/internal/qrcrypto"
)

func testKey() []byte {
	key := make([]byte, qrcrypto.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestNewCodec(t *testing.T) {
	t.Run("accepts 32-byte key", func(t *testing.T) {
		codec, err := qrcrypto.NewCodec(testKey())
		require.NoError(t, err)
		assert.NotNil(t, codec)
	})

	t.Run("rejects short key", func(t *testing.T) {
		_, err := qrcrypto.NewCodec(make([]byte, 31))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCrypto)
	})

	t.Run("rejects long key", func(t *testing.T) {
		_, err := qrcrypto.NewCodec(make([]byte, 33))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCrypto)
	})

	t.Run("rejects empty key", func(t *testing.T) {
		_, err := qrcrypto.NewCodec(nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCrypto)
	})
}

func TestEncryptDecrypt(t *testing.T) {
	codec, err := qrcrypto.NewCodec(testKey())
	require.NoError(t, err)

	payload := qrcrypto.Payload{
		EquipmentID:  42,
		HolderID:     7,
		SerialNumber: "SN-001-XYZ",
		Brand:        "Lenovo",
	}

	t.Run("round trips a payload", func(t *testing.T) {
		blob, err := codec.Encrypt(payload)
		require.NoError(t, err)
		assert.NotEmpty(t, blob)

		decoded, err := codec.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, payload, *decoded)
	})

	t.Run("encryption is randomized per call", func(t *testing.T) {
		blob1, err := codec.Encrypt(payload)
		require.NoError(t, err)
		blob2, err := codec.Encrypt(payload)
		require.NoError(t, err)
		assert.NotEqual(t, blob1, blob2)
	})

	t.Run("round trips unicode content", func(t *testing.T) {
		p := qrcrypto.Payload{
			EquipmentID:  1,
			HolderID:     2,
			SerialNumber: "ñ-serie-Ü",
			Brand:        "Señal",
		}
		blob, err := codec.Encrypt(p)
		require.NoError(t, err)

		decoded, err := codec.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, p, *decoded)
	})

	t.Run("rejects any flipped byte", func(t *testing.T) {
		blob, err := codec.Encrypt(payload)
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(blob)
		require.NoError(t, err)

		// Flipping any single byte of nonce, tag, or ciphertext must fail
		// authentication
		for i := range raw {
			tampered := make([]byte, len(raw))
			copy(tampered, raw)
			tampered[i] ^= 0x01

			_, err := codec.Decrypt(base64.StdEncoding.EncodeToString(tampered))
			assert.ErrorIs(t, err, domain.ErrCrypto, "byte %d", i)
		}
	})

	t.Run("rejects wrong key", func(t *testing.T) {
		otherKey := testKey()
		otherKey[0] ^= 0xFF
		other, err := qrcrypto.NewCodec(otherKey)
		require.NoError(t, err)

		blob, err := codec.Encrypt(payload)
		require.NoError(t, err)

		_, err = other.Decrypt(blob)
		assert.ErrorIs(t, err, domain.ErrCrypto)
	})

	t.Run("rejects non-base64 blob", func(t *testing.T) {
		_, err := codec.Decrypt("not-base64!!!")
		assert.ErrorIs(t, err, domain.ErrCrypto)
	})

	t.Run("rejects truncated blob", func(t *testing.T) {
		short := base64.StdEncoding.EncodeToString(make([]byte, 27))
		_, err := codec.Decrypt(short)
		assert.ErrorIs(t, err, domain.ErrCrypto)
	})

	t.Run("rejects empty blob", func(t *testing.T) {
		_, err := codec.Decrypt("")
		assert.ErrorIs(t, err, domain.ErrCrypto)
	})
}

func TestLooksEncrypted(t *testing.T) {
	codec, err := qrcrypto.NewCodec(testKey())
	require.NoError(t, err)

	t.Run("true for sealed blobs", func(t *testing.T) {
		blob, err := codec.Encrypt(qrcrypto.Payload{EquipmentID: 1, HolderID: 1})
		require.NoError(t, err)
		assert.True(t, codec.LooksEncrypted(blob))
	})

	t.Run("false for non-base64", func(t *testing.T) {
		assert.False(t, codec.LooksEncrypted("{json}"))
	})

	t.Run("false for short base64", func(t *testing.T) {
		assert.False(t, codec.LooksEncrypted(base64.StdEncoding.EncodeToString([]byte("short"))))
	})
}
