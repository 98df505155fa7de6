package schema

// Equipment represents the equipos table - a physical asset under custody
// (e.g., a laptop) carried through the checkpoint
type Equipment struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// SerialNumber is the manufacturer serial, unique across the fleet
	SerialNumber string `gorm:"column:numero_serial;not null;uniqueIndex;type:text"`
	// Brand is the manufacturer/label shown to checkpoint operators
	Brand string `gorm:"column:marca;not null;type:text"`
	// Image is an optional reference to a stored photo of the equipment
	Image *string `gorm:"column:imagen;type:text"`
	// Active indicates the equipment is still in circulation. Equipment is
	// never hard-deleted while sessions reference it; it is deactivated.
	Active bool `gorm:"column:activo;not null;default:true"`

	// Associations
	Tokens   []TokenRecord    `gorm:"foreignKey:EquipmentID"`
	Sessions []CustodySession `gorm:"foreignKey:EquipmentID"`
}

// TableName specifies the table name for the Equipment model
func (Equipment) TableName() string {
	return "equipos"
}
