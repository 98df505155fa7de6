package store

import (
	"context"
	"time"

	"github.com/custodia-io/custodia/internal/store/schema"
)

// PassageDirection reports which way RecordPassage moved the equipment
type PassageDirection string

const (
	// DirectionEntry means a new custody session was opened
	DirectionEntry PassageDirection = "entry"
	// DirectionExit means the open custody session was closed
	DirectionExit PassageDirection = "exit"
)

// RegistrationInput carries everything needed to register an equipment and
// issue its first credential in one transaction. Issue runs inside the
// transaction once the equipment row exists, so the sealed payload can embed
// the equipment's assigned ID; its failure rolls back the equipment row too.
type RegistrationInput struct {
	SerialNumber string
	Brand        string
	Image        *string
	HolderID     int64
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Issue        func(equipmentID int64) (token string, qrData string, err error)
}

// PassageInput carries one checkpoint passage decision
type PassageInput struct {
	EquipmentID int64
	HolderID    int64
	OperatorID  int64
	Notes       *string
	Now         time.Time
}

// AnomalyInput carries one anomaly flag to persist
type AnomalyInput struct {
	SessionID   int64
	Description string
	ManagerID   int64
	CreatedAt   time.Time
}

// UpdateEquipmentInput carries administrative equipment edits. Nil fields are
// left unchanged; the serial number is immutable after registration.
type UpdateEquipmentInput struct {
	Brand  *string
	Image  *string
	Active *bool
}

// Store defines the interface for database operations.
// Lookup methods return (nil, nil) when no row matches.
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// GetEquipmentByID retrieves an equipment by its internal ID
	GetEquipmentByID(ctx context.Context, id int64) (*schema.Equipment, error)
	// GetEquipmentBySerial retrieves an equipment by its serial number
	GetEquipmentBySerial(ctx context.Context, serial string) (*schema.Equipment, error)
	// ListEquipment retrieves equipment ordered by ID with the total count
	ListEquipment(ctx context.Context, limit int, offset int) ([]*schema.Equipment, int64, error)
	// UpdateEquipment applies administrative edits and returns the updated row
	UpdateEquipment(ctx context.Context, id int64, input UpdateEquipmentInput) (*schema.Equipment, error)
	// GetHolderByID retrieves a holder from the roster
	GetHolderByID(ctx context.Context, id int64) (*schema.Holder, error)

	// CreateEquipmentRegistration inserts the equipment and its first token
	// record in a single transaction; any failure rolls back both rows
	CreateEquipmentRegistration(ctx context.Context, input RegistrationInput) (*schema.Equipment, *schema.TokenRecord, error)

	// GetTokenByValue retrieves the token record matching a token string
	// exactly, active or not; validity is the caller's concern
	GetTokenByValue(ctx context.Context, token string) (*schema.TokenRecord, error)
	// GetActiveTokenByEquipmentAndHolder retrieves the most recently issued
	// active token record for the pair
	GetActiveTokenByEquipmentAndHolder(ctx context.Context, equipmentID, holderID int64) (*schema.TokenRecord, error)
	// DeactivateToken clears the active flag on a token record
	DeactivateToken(ctx context.Context, token string) (*schema.TokenRecord, error)

	// RecordPassage decides and applies one checkpoint passage inside a
	// single transaction: it closes the open session for the equipment if one
	// exists, otherwise it opens a new one
	RecordPassage(ctx context.Context, input PassageInput) (*schema.CustodySession, PassageDirection, error)
	// GetOpenSessionByEquipmentID retrieves the open session for an equipment
	GetOpenSessionByEquipmentID(ctx context.Context, equipmentID int64) (*schema.CustodySession, error)
	// ListOpenSessions retrieves all currently open custody sessions
	ListOpenSessions(ctx context.Context) ([]*schema.CustodySession, error)

	// HasUnresolvedAnomaly reports whether a session already carries an
	// unresolved anomaly flag
	HasUnresolvedAnomaly(ctx context.Context, sessionID int64) (bool, error)
	// CreateAnomaly inserts a new anomaly flag
	CreateAnomaly(ctx context.Context, input AnomalyInput) (*schema.Anomaly, error)
	// ResolveAnomaly marks an anomaly resolved by the given administrator
	ResolveAnomaly(ctx context.Context, anomalyID, managerID int64, now time.Time) (*schema.Anomaly, error)
	// ListAnomalies retrieves anomalies, optionally only unresolved ones,
	// newest first, with the total count
	ListAnomalies(ctx context.Context, onlyUnresolved bool, limit int, offset int) ([]*schema.Anomaly, int64, error)
}
