package main

import (
	"database/sql"
	"os"
	"path/filepath"
	"strconv"

	"bikey/config"
	"bikey/internal/database"
	"bikey/internal/logger"

	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
)

const MIGRATION_PATH = "cmd/migration/migrations"

func main() {
	log := logger.New("migrations").Function("main")

	config, err := config.InitConfig()
	if err != nil {
		log.Er("failed to initialize config", err)
		os.Exit(1)
	}

	db, err := database.New(config)
	if err != nil {
		log.Er("failed to create database", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Er("failed to close database", err)
		}
	}()

	migrationType := "up"
	if len(os.Args) > 1 {
		migrationType = os.Args[1]
	}

	switch migrationType {
	case "up":
		err = migrateUp(db, config, log)
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			steps, err = strconv.Atoi(os.Args[2])
			if err != nil {
				log.Er("failed to parse step", err)
				os.Exit(1)
			}
		}
		err = migrateDown(db, config, steps, log)
	case "reset":
		err = migrateReset(db, config, log)
	default:
		err = log.Error("unknown migration command", "command", migrationType)
	}

	if err != nil {
		log.Er("failed to run migrations", err)
		_ = db.Close()
		os.Exit(1)
	}

	log.Info("Migrations complete")
}

func migrateUp(db database.DB, config config.Config, log logger.Logger) error {
	log = log.Function("migrateUp")
	log.Info("Running migrations up", "driver", db.Driver)

	if err := db.MigrateModels(); err != nil {
		return log.Err("failed to auto migrate", err)
	}

	if err := db.CreateIndexes(); err != nil {
		return log.Err("failed to create indexes", err)
	}

	// File migrations run after AutoMigrate because they index its tables.
	if err := runMigrations(db, config, log, migrate.Up, 0); err != nil {
		return log.Err("failed to run migrations", err)
	}

	return nil
}

func migrateDown(db database.DB, config config.Config, steps int, log logger.Logger) error {
	log = log.Function("migrateDown")
	log.Info("Running migrations down", "steps", steps)

	return runMigrations(db, config, log, migrate.Down, steps)
}

// migrateReset drops every table, flushes the caches and migrates up again.
// The bolt store is reset by removing its buckets.
func migrateReset(db database.DB, config config.Config, log logger.Logger) error {
	log = log.Function("migrateReset")
	log.Info("Resetting database", "driver", db.Driver)

	if db.SQL != nil {
		if err := runMigrations(db, config, log, migrate.Down, 0); err != nil {
			return log.Err("failed to revert file migrations", err)
		}
		if err := db.SQL.Migrator().DropTable(database.ModelsToMigrate...); err != nil {
			return log.Err("failed to drop tables", err)
		}
		log.Info("Dropped all tables")
	}

	if err := db.ResetBolt(); err != nil {
		return log.Err("failed to reset bolt store", err)
	}

	if err := db.FlushAllCaches(); err != nil {
		return log.Err("failed to flush cache databases", err)
	}

	return migrateUp(db, config, log)
}

// runMigrations applies the files in MIGRATION_PATH. max of 0 applies all of
// them. Postgres gets its own lib/pq connection; sqlite reuses the store's.
func runMigrations(
	db database.DB,
	config config.Config,
	log logger.Logger,
	direction migrate.MigrationDirection,
	max int,
) error {
	log = log.Function("runMigrations")

	if db.SQL == nil {
		log.Info("No SQL database configured, skipping file-based migrations", "driver", db.Driver)
		return nil
	}

	if _, err := os.Stat(MIGRATION_PATH); os.IsNotExist(err) {
		log.Info("Migrations directory does not exist, skipping file-based migrations")
		return nil
	}

	files, err := filepath.Glob(filepath.Join(MIGRATION_PATH, "*.sql"))
	if err != nil {
		return log.Err("failed to check for migration files", err)
	}
	if len(files) == 0 {
		log.Info("No migration files found, skipping file-based migrations")
		return nil
	}

	migrations := &migrate.FileMigrationSource{Dir: MIGRATION_PATH}

	sqlDB, dialect, closeDB, err := migrationConnection(db, config)
	if err != nil {
		return log.Err("failed to open database for migrations", err)
	}
	defer closeDB()

	n, err := migrate.ExecMax(sqlDB, dialect, migrations, direction, max)
	if err != nil {
		return log.Err("failed to run migrations", err)
	}

	if n == 0 {
		log.Info("No migrations to apply")
	} else {
		log.Info("Applied migrations", "migrationCount", n, "direction", direction)
	}

	return nil
}

func migrationConnection(db database.DB, cfg config.Config) (*sql.DB, string, func(), error) {
	if cfg.DatabaseDriver == config.DriverPostgres {
		sqlDB, err := sql.Open("postgres", database.PostgresDSN(cfg))
		if err != nil {
			return nil, "", nil, err
		}
		return sqlDB, "postgres", func() { _ = sqlDB.Close() }, nil
	}

	sqlDB, err := db.SQL.DB()
	if err != nil {
		return nil, "", nil, err
	}
	return sqlDB, "sqlite3", func() {}, nil
}
