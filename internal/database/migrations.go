package database

import (
	"bikey/internal/logger"
	"bikey/internal/models"
)

// ModelsToMigrate lists every table owned by the application.
var ModelsToMigrate = []any{
	&models.Ride{},
	&models.Log{},
	&models.ImportRun{},
}

// MigrateModels runs GORM AutoMigrate for all models. The bolt driver has no
// schema and is skipped.
func (db *DB) MigrateModels() error {
	log := logger.New("database").Function("MigrateModels")

	if db.SQL == nil {
		log.Info("No SQL database configured, skipping migration", "driver", db.Driver)
		return nil
	}

	log.Info("Starting database migration")
	for _, model := range ModelsToMigrate {
		if err := db.SQL.AutoMigrate(model); err != nil {
			return log.Err("Failed to migrate model", err, "model", model)
		}
	}

	log.Info("Database migration completed successfully")
	return nil
}

// CreateIndexes creates indexes GORM does not derive from the models.
func (db *DB) CreateIndexes() error {
	log := logger.New("database").Function("CreateIndexes")

	if db.SQL == nil {
		return nil
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_import_runs_started_at ON import_runs(started_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_import_runs_status_started ON import_runs(status, started_at)",
	}

	for _, indexSQL := range indexes {
		if err := db.SQL.Exec(indexSQL).Error; err != nil {
			log.Warn("Failed to create index", "sql", indexSQL, "error", err)
		}
	}

	return nil
}
