package domain

import (
	"encoding/json"
	"strings"
)

// ScanKind discriminates the three wire shapes a checkpoint scanner may produce
type ScanKind string

const (
	// ScanBareToken is a raw token string with no structure around it
	ScanBareToken ScanKind = "bare_token"
	// ScanTokenEnvelope is a JSON object carrying a "token" field
	ScanTokenEnvelope ScanKind = "token_envelope"
	// ScanRawIdentifiers is a JSON object carrying equipo_id/aprendiz_id directly
	ScanRawIdentifiers ScanKind = "raw_identifiers"
)

// ScanPayload is the decoded form of a scan string. Decoding happens once at
// the boundary so the checkpoint protocol can switch exhaustively on Kind
// instead of probing fields ad hoc.
type ScanPayload struct {
	Kind ScanKind

	// Token is set for ScanBareToken and ScanTokenEnvelope
	Token string

	// EquipmentID and HolderID are set when the scanned record carried them.
	// An envelope may carry them next to the token; for ScanRawIdentifiers
	// they are the only identity source.
	EquipmentID int64
	HolderID    int64
}

// scanEnvelope mirrors the JSON shapes produced by issued QR codes and by
// externally generated ones
type scanEnvelope struct {
	Token       string `json:"token"`
	EquipmentID int64  `json:"equipo_id"`
	HolderID    int64  `json:"aprendiz_id"`
}

// ParseScan decodes a raw scan string into its tagged shape. A string that
// does not parse as a JSON object is treated as a bare token; a JSON object
// with a token field is a token envelope; anything else is a raw-identifier
// record (possibly with zero IDs, which the protocol rejects downstream).
func ParseScan(raw string) ScanPayload {
	trimmed := strings.TrimSpace(raw)

	var env scanEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil || !strings.HasPrefix(trimmed, "{") {
		return ScanPayload{Kind: ScanBareToken, Token: trimmed}
	}

	if env.Token != "" {
		return ScanPayload{
			Kind:        ScanTokenEnvelope,
			Token:       env.Token,
			EquipmentID: env.EquipmentID,
			HolderID:    env.HolderID,
		}
	}

	return ScanPayload{
		Kind:        ScanRawIdentifiers,
		EquipmentID: env.EquipmentID,
		HolderID:    env.HolderID,
	}
}
