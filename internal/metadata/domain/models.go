package domain

// TableMetadata is a per-(table, attribute) key/value row used to checkpoint
// sync progress. Exactly one row exists per composite key; setters upsert and
// no history is retained.
type TableMetadata struct {
	Table          string `gorm:"primaryKey;column:table_name"`
	AttributeName  string `gorm:"primaryKey"`
	AttributeValue string `gorm:"type:text"`
}

// TableName sets the database table name.
func (TableMetadata) TableName() string { return "table_metadata" }

// Attribute names used by the sync orchestrator.
const (
	AttrLastRunStartTime = "last_run_start_time"
	AttrLastRunStartPage = "last_run_start_page"
)
