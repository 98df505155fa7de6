package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-io/custodia/internal/domain"
)

func TestParseScan(t *testing.T) {
	t.Run("plain string is a bare token", func(t *testing.T) {
		scan := domain.ParseScan("a1b2c3d4e5f6")
		assert.Equal(t, domain.ScanBareToken, scan.Kind)
		assert.Equal(t, "a1b2c3d4e5f6", scan.Token)
		assert.Zero(t, scan.EquipmentID)
		assert.Zero(t, scan.HolderID)
	})

	t.Run("surrounding whitespace is trimmed", func(t *testing.T) {
		scan := domain.ParseScan("  token-value \n")
		assert.Equal(t, domain.ScanBareToken, scan.Kind)
		assert.Equal(t, "token-value", scan.Token)
	})

	t.Run("base64 blob is a bare token", func(t *testing.T) {
		scan := domain.ParseScan("SGVsbG8gV29ybGQ=")
		assert.Equal(t, domain.ScanBareToken, scan.Kind)
	})

	t.Run("malformed JSON is a bare token", func(t *testing.T) {
		scan := domain.ParseScan(`{"token": "abc"`)
		assert.Equal(t, domain.ScanBareToken, scan.Kind)
		assert.Equal(t, `{"token": "abc"`, scan.Token)
	})

	t.Run("JSON with token field is a token envelope", func(t *testing.T) {
		scan := domain.ParseScan(`{"token": "abc123"}`)
		assert.Equal(t, domain.ScanTokenEnvelope, scan.Kind)
		assert.Equal(t, "abc123", scan.Token)
	})

	t.Run("envelope keeps identifiers next to the token", func(t *testing.T) {
		scan := domain.ParseScan(`{"token": "abc123", "equipo_id": 4, "aprendiz_id": 9}`)
		assert.Equal(t, domain.ScanTokenEnvelope, scan.Kind)
		assert.Equal(t, "abc123", scan.Token)
		assert.Equal(t, int64(4), scan.EquipmentID)
		assert.Equal(t, int64(9), scan.HolderID)
	})

	t.Run("JSON with identifiers only is a raw-identifier record", func(t *testing.T) {
		scan := domain.ParseScan(`{"equipo_id": 4, "aprendiz_id": 9}`)
		assert.Equal(t, domain.ScanRawIdentifiers, scan.Kind)
		assert.Empty(t, scan.Token)
		assert.Equal(t, int64(4), scan.EquipmentID)
		assert.Equal(t, int64(9), scan.HolderID)
	})

	t.Run("empty JSON object is a raw-identifier record with zero IDs", func(t *testing.T) {
		scan := domain.ParseScan(`{}`)
		assert.Equal(t, domain.ScanRawIdentifiers, scan.Kind)
		assert.Zero(t, scan.EquipmentID)
		assert.Zero(t, scan.HolderID)
	})

	t.Run("unknown fields are ignored", func(t *testing.T) {
		scan := domain.ParseScan(`{"equipo_id": 4, "aprendiz_id": 9, "extra": true}`)
		assert.Equal(t, domain.ScanRawIdentifiers, scan.Kind)
		assert.Equal(t, int64(4), scan.EquipmentID)
	})
}

func TestRejectionReasonMessage(t *testing.T) {
	// Operator-facing messages never leak payload contents
	assert.Equal(t, "QR inválido", domain.ReasonUnknownToken.Message())
	assert.Equal(t, "QR inválido", domain.ReasonInvalidOrInactiveToken.Message())
	assert.Equal(t, "QR desactivado", domain.ReasonTokenDeactivated.Message())
	assert.Equal(t, "QR expirado", domain.ReasonTokenExpired.Message())
	assert.NotEmpty(t, domain.RejectionReason("something_else").Message())
}
