package schema

import "time"

// TokenRecord represents the qr_equipos table - an issued credential binding
// an (equipment, holder) pair. The model does not hard-enforce one active
// record per pair; lookups always take the most recently issued active one.
type TokenRecord struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// EquipmentID references the equipment this credential was issued for
	EquipmentID int64 `gorm:"column:id_equipo;not null;index:idx_qr_equipos_pair,priority:1"`
	// HolderID references the holder accountable for the equipment
	HolderID int64 `gorm:"column:id_aprendiz;not null;index:idx_qr_equipos_pair,priority:2"`
	// Token is the random opaque credential string embedded in the QR code
	Token string `gorm:"column:token;not null;uniqueIndex;type:text"`
	// QRData is the encrypted payload blob (base64 of nonce || tag || ciphertext)
	QRData string `gorm:"column:qr_data;not null;type:text"`
	// IssuedAt is when the credential was generated
	IssuedAt time.Time `gorm:"column:fecha_generacion;not null"`
	// ExpiresAt is when the credential stops being accepted
	ExpiresAt time.Time `gorm:"column:fecha_expiracion;not null"`
	// Active is cleared by an administrative revoke; never mutated otherwise
	Active bool `gorm:"column:activo;not null;default:true"`
}

// TableName specifies the table name for the TokenRecord model
func (TokenRecord) TableName() string {
	return "qr_equipos"
}
