package schema

// Holder represents the aprendices table - the person accountable for an
// equipment. The roster domain owns these rows; this service only reads them.
type Holder struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name     string `gorm:"column:nombre;not null;type:text"`
	Document string `gorm:"column:documento;not null;type:text"`
	Active   bool   `gorm:"column:activo;not null;default:true"`
}

// TableName specifies the table name for the Holder model
func (Holder) TableName() string {
	return "aprendices"
}
