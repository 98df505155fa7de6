package schema

import "time"

// Anomaly represents the anomalias_equipos table - a flag raised when a
// custody session stays open past the allowed threshold. The session itself
// is never mutated by anomaly handling.
type Anomaly struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// SessionID weakly references the overdue custody session
	SessionID int64 `gorm:"column:id_ingreso;not null;index"`
	// Description is a human-readable explanation embedding the elapsed time
	Description string `gorm:"column:descripcion;not null;type:text"`
	// ManagerID is the administrative account the flag is attributed to
	ManagerID int64 `gorm:"column:id_administrativo_gestor;not null"`
	// Resolved is set manually by an administrator
	Resolved bool `gorm:"column:resuelta;not null;default:false"`
	// CreatedAt is when the sweep raised the flag
	CreatedAt time.Time `gorm:"column:creada_en;not null"`
	// ResolvedAt is null until the flag is resolved
	ResolvedAt *time.Time `gorm:"column:resuelta_en"`
}

// TableName specifies the table name for the Anomaly model
func (Anomaly) TableName() string {
	return "anomalias_equipos"
}
