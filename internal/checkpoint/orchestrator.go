package checkpoint

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/custodia-io/custodia/internal/adapter"
	"github.com/custodia-io/custodia/internal/domain"
	"github.com/custodia-io/custodia/internal/logger"
	"github.com/custodia-io/custodia/internal/store"
	"github.com/custodia-io/custodia/internal/store/schema"
)

// Result is the structured outcome of one checkpoint scan. Kind discriminates
// entry/exit/rejected; Equipment, Holder, and Session are set on entry and
// exit; Reason is set on rejection.
type Result struct {
	Kind    domain.ResultKind
	Trust   domain.TrustTier
	Reason  domain.RejectionReason
	Summary string

	Equipment *schema.Equipment
	Holder    *schema.Holder
	Session   *schema.CustodySession
}

// Orchestrator is the checkpoint protocol engine. It decodes a raw scan
// string, resolves identities, and opens or closes the custody session for
// the equipment. All rejections are returned as Results, not errors; only
// unexpected storage failures produce a non-nil error (alongside a
// processing-error Result, after the transaction has been rolled back).
type Orchestrator struct {
	store store.Store
	clock adapter.Clock
}

// NewOrchestrator creates a new checkpoint orchestrator
func NewOrchestrator(st store.Store, clock adapter.Clock) *Orchestrator {
	return &Orchestrator{store: st, clock: clock}
}

// ProcessScan runs the checkpoint protocol for one scanned credential
func (o *Orchestrator) ProcessScan(ctx context.Context, rawScan string, operatorID int64, notes *string) (*Result, error) {
	scan := domain.ParseScan(rawScan)

	// Resolve a token record when the scan carries a token, or when the
	// raw-identifier shape happens to have one on file for the pair
	var record *schema.TokenRecord
	var trust domain.TrustTier

	switch scan.Kind {
	case domain.ScanBareToken:
		found, err := o.store.GetTokenByValue(ctx, scan.Token)
		if err != nil {
			return o.processingError(ctx, err)
		}
		if found == nil {
			return reject(domain.ReasonUnknownToken), nil
		}
		record = found
		trust = domain.TrustVerified

	case domain.ScanTokenEnvelope:
		found, err := o.store.GetTokenByValue(ctx, scan.Token)
		if err != nil {
			return o.processingError(ctx, err)
		}
		if found == nil {
			return reject(domain.ReasonInvalidOrInactiveToken), nil
		}
		record = found
		trust = domain.TrustVerified

	case domain.ScanRawIdentifiers:
		// Externally generated codes carry raw IDs with no issued token.
		// A registered token for the pair is still validated when one
		// exists; when none does, the scan proceeds anyway using the IDs
		// as scanned. Either way the credential itself was never
		// presented, so the whole shape stays on the reduced-trust tier.
		if scan.EquipmentID > 0 && scan.HolderID > 0 {
			found, err := o.store.GetActiveTokenByEquipmentAndHolder(ctx, scan.EquipmentID, scan.HolderID)
			if err != nil {
				return o.processingError(ctx, err)
			}
			record = found
		}
		trust = domain.TrustUnverified
	}

	// Token-level validity is enforced whenever a token record was resolved,
	// regardless of which shape the scan arrived in
	if record != nil {
		if !record.Active {
			return reject(domain.ReasonTokenDeactivated), nil
		}
		if o.clock.Now().After(record.ExpiresAt) {
			return reject(domain.ReasonTokenExpired), nil
		}
	}

	// The scanned record's own IDs win; the token record fills the gaps
	equipmentID := scan.EquipmentID
	holderID := scan.HolderID
	if record != nil {
		if equipmentID <= 0 {
			equipmentID = record.EquipmentID
		}
		if holderID <= 0 {
			holderID = record.HolderID
		}
	}
	if equipmentID <= 0 || holderID <= 0 {
		return reject(domain.ReasonMissingIdentifiers), nil
	}

	equipment, err := o.store.GetEquipmentByID(ctx, equipmentID)
	if err != nil {
		return o.processingError(ctx, err)
	}
	if equipment == nil {
		return reject(domain.ReasonEquipmentNotFound), nil
	}

	holder, err := o.store.GetHolderByID(ctx, holderID)
	if err != nil {
		return o.processingError(ctx, err)
	}
	if holder == nil {
		return reject(domain.ReasonHolderNotFound), nil
	}

	session, direction, err := o.store.RecordPassage(ctx, store.PassageInput{
		EquipmentID: equipment.ID,
		HolderID:    holder.ID,
		OperatorID:  operatorID,
		Notes:       notes,
		Now:         o.clock.Now(),
	})
	if err != nil {
		return o.processingError(ctx, err)
	}

	result := &Result{
		Trust:     trust,
		Equipment: equipment,
		Holder:    holder,
		Session:   session,
	}
	switch direction {
	case store.DirectionEntry:
		result.Kind = domain.ResultEntry
		result.Summary = fmt.Sprintf("Ingreso registrado: equipo %s a cargo de %s", equipment.SerialNumber, holder.Name)
	case store.DirectionExit:
		result.Kind = domain.ResultExit
		result.Summary = fmt.Sprintf("Salida registrada: equipo %s a cargo de %s", equipment.SerialNumber, holder.Name)
	}

	logger.InfoCtx(ctx, "Checkpoint passage processed",
		zap.String("kind", string(result.Kind)),
		zap.String("trust", string(trust)),
		zap.Int64("equipment_id", equipment.ID),
		zap.Int64("holder_id", holder.ID),
		zap.Int64("session_id", session.ID),
	)

	return result, nil
}

// processingError wraps an unexpected storage failure into a rejected result
// so the caller still gets a displayable outcome next to the error
func (o *Orchestrator) processingError(ctx context.Context, err error) (*Result, error) {
	logger.ErrorCtx(ctx, err)
	return reject(domain.ReasonProcessingError), err
}

func reject(reason domain.RejectionReason) *Result {
	return &Result{
		Kind:    domain.ResultRejected,
		Reason:  reason,
		Summary: reason.Message(),
	}
}
