package checkpoint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-io/custodia/internal/adapter"
	"github.com/custodia-io/custodia/internal/domain"
	"github.com/custodia-io/custodia/internal/logger"
	"github.com/custodia-io/custodia/internal/qrcrypto"
	"github.com/custodia-io/custodia/internal/store"
	"github.com/custodia-io/custodia/internal/store/schema"
)

// minSerialLength is the shortest serial number accepted at registration
const minSerialLength = 3

// DefaultTokenTTL is how long an issued credential stays valid
const DefaultTokenTTL = 365 * 24 * time.Hour

// RegisterInput describes an equipment registration request
type RegisterInput struct {
	SerialNumber string
	Brand        string
	Image        *string
	HolderID     int64
}

// Registration is the outcome of a successful equipment registration. QRData
// is the payload string handed to the (external) QR renderer.
type Registration struct {
	Equipment *schema.Equipment
	Token     *schema.TokenRecord
	QRData    string
}

// Registrar handles equipment registration and credential issuance: it
// creates the equipment row, seals the payload, and stores the token record,
// all inside one transaction so a failed issuance leaves no equipment behind.
type Registrar struct {
	store    store.Store
	codec    *qrcrypto.Codec
	tokens   adapter.TokenSource
	clock    adapter.Clock
	tokenTTL time.Duration
}

// NewRegistrar creates a new registrar. A non-positive tokenTTL falls back to
// DefaultTokenTTL.
func NewRegistrar(st store.Store, codec *qrcrypto.Codec, tokens adapter.TokenSource, clock adapter.Clock, tokenTTL time.Duration) *Registrar {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Registrar{
		store:    st,
		codec:    codec,
		tokens:   tokens,
		clock:    clock,
		tokenTTL: tokenTTL,
	}
}

// RegisterEquipment registers an equipment under a holder and issues its
// credential
func (r *Registrar) RegisterEquipment(ctx context.Context, input RegisterInput) (*Registration, error) {
	serial := strings.TrimSpace(input.SerialNumber)
	if len(serial) < minSerialLength {
		return nil, fmt.Errorf("serial number must be at least %d characters", minSerialLength)
	}
	if strings.TrimSpace(input.Brand) == "" {
		return nil, fmt.Errorf("brand is required")
	}

	holder, err := r.store.GetHolderByID(ctx, input.HolderID)
	if err != nil {
		return nil, err
	}
	if holder == nil {
		return nil, fmt.Errorf("%w: id %d", domain.ErrHolderNotFound, input.HolderID)
	}

	now := r.clock.Now()
	equipment, record, err := r.store.CreateEquipmentRegistration(ctx, store.RegistrationInput{
		SerialNumber: serial,
		Brand:        input.Brand,
		Image:        input.Image,
		HolderID:     holder.ID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(r.tokenTTL),
		// Issue runs inside the registration transaction so the sealed
		// payload can embed the assigned equipment ID; any failure here
		// rolls back the equipment row as well
		Issue: func(equipmentID int64) (string, string, error) {
			token, err := r.tokens.NewToken()
			if err != nil {
				return "", "", fmt.Errorf("failed to generate credential: %w", err)
			}
			qrData, err := r.codec.Encrypt(qrcrypto.Payload{
				EquipmentID:  equipmentID,
				HolderID:     holder.ID,
				SerialNumber: serial,
				Brand:        input.Brand,
			})
			if err != nil {
				return "", "", err
			}
			return token, qrData, nil
		},
	})
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Registered equipment and issued credential",
		zap.Int64("equipment_id", equipment.ID),
		zap.Int64("holder_id", holder.ID),
		zap.String("serial", equipment.SerialNumber),
		zap.Time("expires_at", record.ExpiresAt),
	)

	return &Registration{
		Equipment: equipment,
		Token:     record,
		QRData:    record.QRData,
	}, nil
}

// RevokeToken deactivates an issued credential. Revoked tokens are rejected
// at the checkpoint but kept on file for audit.
func (r *Registrar) RevokeToken(ctx context.Context, token string) (*schema.TokenRecord, error) {
	record, err := r.store.DeactivateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Revoked credential",
		zap.Int64("equipment_id", record.EquipmentID),
		zap.Int64("holder_id", record.HolderID),
	)

	return record, nil
}
