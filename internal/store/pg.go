package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/custodia-io/custodia/internal/domain"
	"github.com/custodia-io/custodia/internal/store/schema"
)

// passageLockNamespace partitions the advisory lock space used by
// RecordPassage from any other advisory locks on the same database
const passageLockNamespace = 4217

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store instance. The connection must
// be opened with TranslateError enabled so unique violations surface as
// gorm.ErrDuplicatedKey on every dialect.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// Migrate creates or updates the checkpoint tables, including the partial
// unique index that enforces at most one open session per equipment
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.Holder{},
		&schema.Equipment{},
		&schema.TokenRecord{},
		&schema.CustodySession{},
		&schema.Anomaly{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to defaults: 20 open, 5 idle,
// 5m max lifetime, 10m max idle time.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// GetEquipmentByID retrieves an equipment by its internal ID
func (s *gormStore) GetEquipmentByID(ctx context.Context, id int64) (*schema.Equipment, error) {
	var equipment schema.Equipment
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&equipment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to get equipment: %v", domain.ErrStorage, err)
	}
	return &equipment, nil
}

// GetEquipmentBySerial retrieves an equipment by its serial number
func (s *gormStore) GetEquipmentBySerial(ctx context.Context, serial string) (*schema.Equipment, error) {
	var equipment schema.Equipment
	err := s.db.WithContext(ctx).Where("numero_serial = ?", serial).First(&equipment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to get equipment by serial: %v", domain.ErrStorage, err)
	}
	return &equipment, nil
}

// ListEquipment retrieves equipment ordered by ID with the total count
func (s *gormStore) ListEquipment(ctx context.Context, limit int, offset int) ([]*schema.Equipment, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&schema.Equipment{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: failed to count equipment: %v", domain.ErrStorage, err)
	}

	var equipment []*schema.Equipment
	err := s.db.WithContext(ctx).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&equipment).Error
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to list equipment: %v", domain.ErrStorage, err)
	}

	return equipment, total, nil
}

// UpdateEquipment applies administrative edits and returns the updated row
func (s *gormStore) UpdateEquipment(ctx context.Context, id int64, input UpdateEquipmentInput) (*schema.Equipment, error) {
	updates := map[string]interface{}{}
	if input.Brand != nil {
		updates["marca"] = *input.Brand
	}
	if input.Image != nil {
		updates["imagen"] = *input.Image
	}
	if input.Active != nil {
		updates["activo"] = *input.Active
	}

	if len(updates) > 0 {
		result := s.db.WithContext(ctx).
			Model(&schema.Equipment{}).
			Where("id = ?", id).
			Updates(updates)
		if result.Error != nil {
			return nil, fmt.Errorf("%w: failed to update equipment: %v", domain.ErrStorage, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, nil
		}
	}

	return s.GetEquipmentByID(ctx, id)
}

// GetHolderByID retrieves a holder from the roster
func (s *gormStore) GetHolderByID(ctx context.Context, id int64) (*schema.Holder, error) {
	var holder schema.Holder
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&holder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to get holder: %v", domain.ErrStorage, err)
	}
	return &holder, nil
}

// CreateEquipmentRegistration inserts the equipment and its first token
// record in a single transaction; any failure rolls back both rows
func (s *gormStore) CreateEquipmentRegistration(ctx context.Context, input RegistrationInput) (*schema.Equipment, *schema.TokenRecord, error) {
	equipment := schema.Equipment{
		SerialNumber: input.SerialNumber,
		Brand:        input.Brand,
		Image:        input.Image,
		Active:       true,
	}
	record := schema.TokenRecord{
		HolderID:  input.HolderID,
		IssuedAt:  input.IssuedAt,
		ExpiresAt: input.ExpiresAt,
		Active:    true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&equipment).Error; err != nil {
			return err
		}
		token, qrData, err := input.Issue(equipment.ID)
		if err != nil {
			return err
		}
		record.EquipmentID = equipment.ID
		record.Token = token
		record.QRData = qrData
		return tx.Create(&record).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrDuplicateSerial, input.SerialNumber)
		}
		return nil, nil, fmt.Errorf("%w: failed to register equipment: %v", domain.ErrStorage, err)
	}

	return &equipment, &record, nil
}

// GetTokenByValue retrieves the token record matching a token string exactly,
// active or not
func (s *gormStore) GetTokenByValue(ctx context.Context, token string) (*schema.TokenRecord, error) {
	var record schema.TokenRecord
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to get token record: %v", domain.ErrStorage, err)
	}
	return &record, nil
}

// GetActiveTokenByEquipmentAndHolder retrieves the most recently issued
// active token record for the pair
func (s *gormStore) GetActiveTokenByEquipmentAndHolder(ctx context.Context, equipmentID, holderID int64) (*schema.TokenRecord, error) {
	var record schema.TokenRecord
	err := s.db.WithContext(ctx).
		Where("id_equipo = ? AND id_aprendiz = ? AND activo = ?", equipmentID, holderID, true).
		Order("fecha_generacion DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to get active token record: %v", domain.ErrStorage, err)
	}
	return &record, nil
}

// DeactivateToken clears the active flag on a token record
func (s *gormStore) DeactivateToken(ctx context.Context, token string) (*schema.TokenRecord, error) {
	record, err := s.GetTokenByValue(ctx, token)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTokenNotFound, token)
	}

	err = s.db.WithContext(ctx).
		Model(&schema.TokenRecord{}).
		Where("id = ?", record.ID).
		Update("activo", false).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to deactivate token: %v", domain.ErrStorage, err)
	}

	record.Active = false
	return record, nil
}

// RecordPassage decides and applies one checkpoint passage inside a single
// transaction. On postgres a transaction-scoped advisory lock on the
// equipment serializes concurrent scans of the same equipment; the partial
// unique index on open sessions backstops the decision on every dialect.
func (s *gormStore) RecordPassage(ctx context.Context, input PassageInput) (*schema.CustodySession, PassageDirection, error) {
	var session schema.CustodySession
	var direction PassageDirection

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?, ?)", passageLockNamespace, input.EquipmentID).Error; err != nil {
				return fmt.Errorf("failed to acquire passage lock: %w", err)
			}
		}

		var open schema.CustodySession
		err := tx.Where("id_equipo = ? AND fecha_salida IS NULL", input.EquipmentID).
			First(&open).Error
		if err == nil {
			exitDate := dateOf(input.Now)
			exitTime := input.Now.Format(schema.TimeOfDayLayout)
			open.ExitDate = &exitDate
			open.ExitTime = &exitTime
			open.Notes = mergeNotes(open.Notes, input.Notes)
			if err := tx.Save(&open).Error; err != nil {
				return fmt.Errorf("failed to close session: %w", err)
			}
			session = open
			direction = DirectionExit
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to query open session: %w", err)
		}

		session = schema.CustodySession{
			EquipmentID: input.EquipmentID,
			HolderID:    input.HolderID,
			EntryDate:   dateOf(input.Now),
			EntryTime:   input.Now.Format(schema.TimeOfDayLayout),
			OperatorID:  input.OperatorID,
			Notes:       input.Notes,
		}
		if err := tx.Create(&session).Error; err != nil {
			return fmt.Errorf("failed to open session: %w", err)
		}
		direction = DirectionEntry
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to record passage: %v", domain.ErrStorage, err)
	}

	return &session, direction, nil
}

// GetOpenSessionByEquipmentID retrieves the open session for an equipment
func (s *gormStore) GetOpenSessionByEquipmentID(ctx context.Context, equipmentID int64) (*schema.CustodySession, error) {
	var session schema.CustodySession
	err := s.db.WithContext(ctx).
		Where("id_equipo = ? AND fecha_salida IS NULL", equipmentID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to get open session: %v", domain.ErrStorage, err)
	}
	return &session, nil
}

// ListOpenSessions retrieves all currently open custody sessions
func (s *gormStore) ListOpenSessions(ctx context.Context) ([]*schema.CustodySession, error) {
	var sessions []*schema.CustodySession
	err := s.db.WithContext(ctx).
		Where("fecha_salida IS NULL").
		Order("id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list open sessions: %v", domain.ErrStorage, err)
	}
	return sessions, nil
}

// HasUnresolvedAnomaly reports whether a session already carries an
// unresolved anomaly flag
func (s *gormStore) HasUnresolvedAnomaly(ctx context.Context, sessionID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.Anomaly{}).
		Where("id_ingreso = ? AND resuelta = ?", sessionID, false).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: failed to check anomalies: %v", domain.ErrStorage, err)
	}
	return count > 0, nil
}

// CreateAnomaly inserts a new anomaly flag
func (s *gormStore) CreateAnomaly(ctx context.Context, input AnomalyInput) (*schema.Anomaly, error) {
	anomaly := schema.Anomaly{
		SessionID:   input.SessionID,
		Description: input.Description,
		ManagerID:   input.ManagerID,
		CreatedAt:   input.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&anomaly).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to create anomaly: %v", domain.ErrStorage, err)
	}
	return &anomaly, nil
}

// ResolveAnomaly marks an anomaly resolved by the given administrator
func (s *gormStore) ResolveAnomaly(ctx context.Context, anomalyID, managerID int64, now time.Time) (*schema.Anomaly, error) {
	result := s.db.WithContext(ctx).
		Model(&schema.Anomaly{}).
		Where("id = ? AND resuelta = ?", anomalyID, false).
		Updates(map[string]interface{}{
			"resuelta":                 true,
			"resuelta_en":              now,
			"id_administrativo_gestor": managerID,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("%w: failed to resolve anomaly: %v", domain.ErrStorage, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var anomaly schema.Anomaly
	if err := s.db.WithContext(ctx).Where("id = ?", anomalyID).First(&anomaly).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to reload anomaly: %v", domain.ErrStorage, err)
	}
	return &anomaly, nil
}

// ListAnomalies retrieves anomalies, newest first, with the total count
func (s *gormStore) ListAnomalies(ctx context.Context, onlyUnresolved bool, limit int, offset int) ([]*schema.Anomaly, int64, error) {
	countQuery := s.db.WithContext(ctx).Model(&schema.Anomaly{})
	listQuery := s.db.WithContext(ctx)
	if onlyUnresolved {
		countQuery = countQuery.Where("resuelta = ?", false)
		listQuery = listQuery.Where("resuelta = ?", false)
	}

	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: failed to count anomalies: %v", domain.ErrStorage, err)
	}

	var anomalies []*schema.Anomaly
	err := listQuery.
		Order("creada_en DESC").
		Limit(limit).
		Offset(offset).
		Find(&anomalies).Error
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to list anomalies: %v", domain.ErrStorage, err)
	}

	return anomalies, total, nil
}

// dateOf truncates a timestamp to its date at midnight
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// mergeNotes joins entry and exit notes, keeping both when present
func mergeNotes(existing *string, incoming *string) *string {
	if incoming == nil || *incoming == "" {
		return existing
	}
	if existing == nil || *existing == "" {
		return incoming
	}
	merged := *existing + "; " + *incoming
	return &merged
}
