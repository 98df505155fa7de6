package checkpoint_test

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-io/custodia/internal/store"
	"github.com/custodia-io/custodia/internal/store/schema"
)

// fakeClock returns a fixed instant
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time                         { return c.now }
func (c *fakeClock) Since(t time.Time) time.Duration        { return c.now.Sub(t) }
func (c *fakeClock) After(d time.Duration) <-chan time.Time { return time.After(0) }

// fakeTokenSource returns a fixed sequence of tokens
type fakeTokenSource struct {
	next int
	err  error
}

func (s *fakeTokenSource) NewToken() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.next++
	return fmt.Sprintf("token-%d", s.next), nil
}

// fakeStore is an in-memory store.Store keyed by IDs. Zero-value fields mean
// "not found"; the err field fails every call to exercise error paths.
type fakeStore struct {
	equipment map[int64]*schema.Equipment
	holders   map[int64]*schema.Holder
	tokens    map[string]*schema.TokenRecord
	open      map[int64]*schema.CustodySession

	nextSessionID int64
	passages      []store.PassageInput
	err           error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		equipment: make(map[int64]*schema.Equipment),
		holders:   make(map[int64]*schema.Holder),
		tokens:    make(map[string]*schema.TokenRecord),
		open:      make(map[int64]*schema.CustodySession),
	}
}

func (f *fakeStore) GetEquipmentByID(ctx context.Context, id int64) (*schema.Equipment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.equipment[id], nil
}

func (f *fakeStore) GetEquipmentBySerial(ctx context.Context, serial string) (*schema.Equipment, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, e := range f.equipment {
		if e.SerialNumber == serial {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListEquipment(ctx context.Context, limit, offset int) ([]*schema.Equipment, int64, error) {
	return nil, 0, f.err
}

func (f *fakeStore) UpdateEquipment(ctx context.Context, id int64, input store.UpdateEquipmentInput) (*schema.Equipment, error) {
	return f.equipment[id], f.err
}

func (f *fakeStore) GetHolderByID(ctx context.Context, id int64) (*schema.Holder, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.holders[id], nil
}

func (f *fakeStore) CreateEquipmentRegistration(ctx context.Context, input store.RegistrationInput) (*schema.Equipment, *schema.TokenRecord, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	equipment := &schema.Equipment{
		ID:           int64(len(f.equipment) + 1),
		SerialNumber: input.SerialNumber,
		Brand:        input.Brand,
		Image:        input.Image,
		Active:       true,
	}
	token, qrData, err := input.Issue(equipment.ID)
	if err != nil {
		// Transactional: the equipment row is not kept either
		return nil, nil, err
	}
	record := &schema.TokenRecord{
		ID:          int64(len(f.tokens) + 1),
		EquipmentID: equipment.ID,
		HolderID:    input.HolderID,
		Token:       token,
		QRData:      qrData,
		IssuedAt:    input.IssuedAt,
		ExpiresAt:   input.ExpiresAt,
		Active:      true,
	}
	f.equipment[equipment.ID] = equipment
	f.tokens[token] = record
	return equipment, record, nil
}

func (f *fakeStore) GetTokenByValue(ctx context.Context, token string) (*schema.TokenRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tokens[token], nil
}

func (f *fakeStore) GetActiveTokenByEquipmentAndHolder(ctx context.Context, equipmentID, holderID int64) (*schema.TokenRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var latest *schema.TokenRecord
	for _, record := range f.tokens {
		if record.EquipmentID != equipmentID || record.HolderID != holderID || !record.Active {
			continue
		}
		if latest == nil || record.IssuedAt.After(latest.IssuedAt) {
			latest = record
		}
	}
	return latest, nil
}

func (f *fakeStore) DeactivateToken(ctx context.Context, token string) (*schema.TokenRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	record, ok := f.tokens[token]
	if !ok {
		return nil, fmt.Errorf("token not found: %s", token)
	}
	record.Active = false
	return record, nil
}

func (f *fakeStore) RecordPassage(ctx context.Context, input store.PassageInput) (*schema.CustodySession, store.PassageDirection, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	f.passages = append(f.passages, input)

	if open, ok := f.open[input.EquipmentID]; ok {
		exitDate := input.Now
		exitTime := input.Now.Format(schema.TimeOfDayLayout)
		open.ExitDate = &exitDate
		open.ExitTime = &exitTime
		delete(f.open, input.EquipmentID)
		return open, store.DirectionExit, nil
	}

	f.nextSessionID++
	session := &schema.CustodySession{
		ID:          f.nextSessionID,
		EquipmentID: input.EquipmentID,
		HolderID:    input.HolderID,
		EntryDate:   input.Now,
		EntryTime:   input.Now.Format(schema.TimeOfDayLayout),
		OperatorID:  input.OperatorID,
		Notes:       input.Notes,
	}
	f.open[input.EquipmentID] = session
	return session, store.DirectionEntry, nil
}

func (f *fakeStore) GetOpenSessionByEquipmentID(ctx context.Context, equipmentID int64) (*schema.CustodySession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.open[equipmentID], nil
}

func (f *fakeStore) ListOpenSessions(ctx context.Context) ([]*schema.CustodySession, error) {
	if f.err != nil {
		return nil, f.err
	}
	sessions := make([]*schema.CustodySession, 0, len(f.open))
	for _, session := range f.open {
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (f *fakeStore) HasUnresolvedAnomaly(ctx context.Context, sessionID int64) (bool, error) {
	return false, f.err
}

func (f *fakeStore) CreateAnomaly(ctx context.Context, input store.AnomalyInput) (*schema.Anomaly, error) {
	return nil, f.err
}

func (f *fakeStore) ResolveAnomaly(ctx context.Context, anomalyID, managerID int64, now time.Time) (*schema.Anomaly, error) {
	return nil, f.err
}

func (f *fakeStore) ListAnomalies(ctx context.Context, onlyUnresolved bool, limit, offset int) ([]*schema.Anomaly, int64, error) {
	return nil, 0, f.err
}
