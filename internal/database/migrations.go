package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type compositeIndex struct {
	table   string
	name    string
	columns string
}

// Composite indexes that the model tags cannot express.
var compositeIndexes = []compositeIndex{
	// Member lists and capacity checks filter on both columns
	{"study_members", "idx_study_members_study_status", "study_id, status"},

	// Notice list: pinned first, newest first
	{"notices", "idx_notices_study_pinned_created", "study_id, is_pinned, created_at"},

	// Chat history pages
	{"messages", "idx_messages_study_created", "study_id, created_at"},

	// Admin log reads are "most recent N by action"
	{"admin_logs", "idx_admin_logs_action_created", "action, created_at"},
}

// AddIndexes creates the composite indexes that do not exist yet.
func AddIndexes(db *gorm.DB, log *zap.Logger) error {
	for _, idx := range compositeIndexes {
		if db.Migrator().HasIndex(idx.table, idx.name) {
			log.Debug("index exists, skipping", zap.String("index", idx.name))
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		log.Info("created index", zap.String("index", idx.name), zap.String("table", idx.table))
	}

	return nil
}

// MigrateDatabase runs the schema migration and then adds indexes.
func MigrateDatabase(db *gorm.DB, log *zap.Logger) error {
	if err := Migrate(db); err != nil {
		return err
	}
	if err := AddIndexes(db, log); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}
	return nil
}
