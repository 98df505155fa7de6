package schema

import "time"

// TimeOfDayLayout is the storage format for the hora_* columns
const TimeOfDayLayout = "15:04:05"

// CustodySession represents the ingresos_equipos table - one open-to-close
// cycle of an equipment passing the checkpoint. A session is open while
// fecha_salida is null; the partial unique index on id_equipo guarantees at
// most one open session per equipment even under concurrent scans.
type CustodySession struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// EquipmentID references the equipment passing the checkpoint
	EquipmentID int64 `gorm:"column:id_equipo;not null;index;uniqueIndex:uidx_ingresos_abiertos,where:fecha_salida IS NULL"`
	// HolderID references the holder carrying the equipment
	HolderID int64 `gorm:"column:id_aprendiz;not null;index"`
	// EntryDate and EntryTime record when the session opened
	EntryDate time.Time `gorm:"column:fecha_ingreso;not null"`
	EntryTime string    `gorm:"column:hora_ingreso;not null;type:text"`
	// OperatorID is the checkpoint staff member who performed the scan
	OperatorID int64 `gorm:"column:id_portero;not null"`
	// Notes is optional free text merged across the entry and exit scans
	Notes *string `gorm:"column:observaciones;type:text"`
	// ExitDate and ExitTime are null while the session is open
	ExitDate *time.Time `gorm:"column:fecha_salida"`
	ExitTime *string    `gorm:"column:hora_salida;type:text"`
}

// TableName specifies the table name for the CustodySession model
func (CustodySession) TableName() string {
	return "ingresos_equipos"
}

// Open reports whether the session has not been closed yet
func (s *CustodySession) Open() bool {
	return s.ExitDate == nil
}

// OpenedAt reconstructs the full open timestamp from the split date/time
// columns. The time-of-day portion is dropped silently if it fails to parse,
// leaving the date's midnight, which only widens the measured elapsed time.
func (s *CustodySession) OpenedAt() time.Time {
	t, err := time.Parse(TimeOfDayLayout, s.EntryTime)
	if err != nil {
		return s.EntryDate
	}
	y, m, d := s.EntryDate.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, s.EntryDate.Location())
}
