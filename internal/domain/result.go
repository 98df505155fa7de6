package domain

// ResultKind discriminates the outcome of a checkpoint scan
type ResultKind string

const (
	// ResultEntry means a new custody session was opened
	ResultEntry ResultKind = "entry"
	// ResultExit means the open custody session for the equipment was closed
	ResultExit ResultKind = "exit"
	// ResultRejected means the scan was not usable; see the rejection reason
	ResultRejected ResultKind = "rejected"
)

// TrustTier labels how much authenticity the accepted scan carried.
// The raw-identifier fallback path deliberately bypasses the encrypted-token
// guarantee, so its results are tagged rather than silently equated with
// verified-token passages.
type TrustTier string

const (
	// TrustVerified means a registered token was resolved and validated
	TrustVerified TrustTier = "verified"
	// TrustUnverified means identity came straight from the scanned record
	// with no matching token on file
	TrustUnverified TrustTier = "unverified"
)

// RejectionReason classifies why a scan was rejected
type RejectionReason string

const (
	// ReasonUnknownToken: a bare token string matched no token record
	ReasonUnknownToken RejectionReason = "unknown_token"
	// ReasonInvalidOrInactiveToken: an envelope token matched no token record
	ReasonInvalidOrInactiveToken RejectionReason = "invalid_or_inactive_token"
	// ReasonTokenDeactivated: the resolved token was administratively revoked
	ReasonTokenDeactivated RejectionReason = "token_deactivated"
	// ReasonTokenExpired: the resolved token is past its expiry
	ReasonTokenExpired RejectionReason = "token_expired"
	// ReasonMissingIdentifiers: no usable equipment/holder identity resolved
	ReasonMissingIdentifiers RejectionReason = "missing_identifiers"
	// ReasonEquipmentNotFound: the resolved equipment ID matched no equipment
	ReasonEquipmentNotFound RejectionReason = "equipment_not_found"
	// ReasonHolderNotFound: the resolved holder ID matched no holder
	ReasonHolderNotFound RejectionReason = "holder_not_found"
	// ReasonProcessingError: an unexpected storage failure during the passage
	ReasonProcessingError RejectionReason = "processing_error"
)

// Message returns the short operator-facing message for a rejection.
// Checkpoint terminals display these verbatim, so they stay in the
// institution's language and never leak payload contents.
func (r RejectionReason) Message() string {
	switch r {
	case ReasonUnknownToken, ReasonInvalidOrInactiveToken:
		return "QR inválido"
	case ReasonTokenDeactivated:
		return "QR desactivado"
	case ReasonTokenExpired:
		return "QR expirado"
	case ReasonMissingIdentifiers:
		return "QR incompleto: faltan identificadores"
	case ReasonEquipmentNotFound:
		return "Equipo no registrado"
	case ReasonHolderNotFound:
		return "Aprendiz no registrado"
	case ReasonProcessingError:
		return "Error procesando el registro, intente de nuevo"
	default:
		return "Registro rechazado"
	}
}
