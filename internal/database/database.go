package database

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"bikey/config"
	"bikey/internal/logger"

	"go.etcd.io/bbolt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// sqliteDriverName is the database/sql name registered by modernc.org/sqlite.
const sqliteDriverName = "sqlite"

// DB bundles the storage handles. SQL is set for the postgres and sqlite
// drivers, Bolt for the bolt driver. Cache is optional.
type DB struct {
	Driver string
	SQL    *gorm.DB
	Bolt   *bbolt.DB
	Cache  Cache
	log    logger.Logger
}

func New(config config.Config) (DB, error) {
	log := logger.New("database").Function("New")

	log.Info("Initializing database", "driver", config.DatabaseDriver)
	db := &DB{Driver: config.DatabaseDriver, log: log}

	if err := db.initializeDB(config); err != nil {
		return DB{}, log.Err("failed to initialize database", err)
	}

	if err := db.initializeCacheDB(config); err != nil {
		return DB{}, log.Err("failed to initialize cache database", err)
	}

	return *db, nil
}

func newGormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormLogger.New(
			slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
			gormLogger.Config{
				SlowThreshold:             10 * time.Second,
				LogLevel:                  gormLogger.Silent,
				IgnoreRecordNotFoundError: true,
			},
		),
		SkipDefaultTransaction: true,
	}
}

func (s *DB) initializeDB(cfg config.Config) error {
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		db, err := OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return err
		}
		s.SQL = db
		return nil
	case config.DriverBolt:
		db, err := OpenBolt(cfg.DatabasePath)
		if err != nil {
			return err
		}
		s.Bolt = db
		return nil
	default:
		return s.initializePostgresDB(cfg)
	}
}

func (s *DB) initializePostgresDB(config config.Config) error {
	log := s.log.Function("initializePostgresDB")

	if config.DatabaseHost == "" {
		return log.Error("database host is empty")
	}
	if config.DatabaseName == "" {
		return log.Error("database name is empty")
	}
	if config.DatabaseUser == "" {
		return log.Error("database user is empty")
	}

	log.Info("Connecting to PostgreSQL",
		"host", config.DatabaseHost,
		"port", config.DatabasePort,
		"database", config.DatabaseName,
	)
	db, err := gorm.Open(postgres.Open(PostgresDSN(config)), newGormConfig())
	if err != nil {
		return log.Err("failed to open PostgreSQL database with GORM", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return log.Err("failed to get database from GORM", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return log.Err("failed to ping PostgreSQL database through GORM", err)
	}

	log.Info("Successfully connected to PostgreSQL with GORM")
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s.SQL = db
	return nil
}

func PostgresDSN(config config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		config.DatabaseHost,
		config.DatabasePort,
		config.DatabaseUser,
		config.DatabasePassword,
		config.DatabaseName,
	)
}

// OpenSQLite opens a SQLite file through the pure Go driver with WAL and
// foreign keys enabled.
func OpenSQLite(path string) (*gorm.DB, error) {
	log := logger.New("database").Function("OpenSQLite")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, log.Err("failed to create database directory", err, "path", path)
	}

	dsn := fmt.Sprintf(
		"file:%s?mode=rwc&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		url.PathEscape(path),
	)
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: sqliteDriverName, DSN: dsn}), newGormConfig())
	if err != nil {
		return nil, log.Err("failed to open SQLite database", err, "path", path)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, log.Err("failed to get database from GORM", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, log.Err("failed to ping SQLite database", err, "path", path)
	}
	// WAL allows concurrent readers, writes stay serialized.
	sqlDB.SetMaxOpenConns(4)

	log.Info("Opened SQLite database", "path", path)
	return db, nil
}

func OpenBolt(path string) (*bbolt.DB, error) {
	log := logger.New("database").Function("OpenBolt")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, log.Err("failed to create database directory", err, "path", path)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, log.Err("failed to open bolt database", err, "path", path)
	}

	log.Info("Opened bolt database", "path", path)
	return db, nil
}

func (s *DB) Close() (err error) {
	if s.SQL != nil {
		sqlDB, dbErr := s.SQL.DB()
		if dbErr == nil {
			if closeErr := sqlDB.Close(); closeErr != nil {
				err = s.log.Err("failed to close database", closeErr)
			}
		}
	}

	if s.Bolt != nil {
		if closeErr := s.Bolt.Close(); closeErr != nil {
			err = s.log.Err("failed to close bolt database", closeErr)
		}
	}

	s.Cache.Close()
	return err
}

func (s *DB) SQLWithContext(ctx context.Context) *gorm.DB {
	return s.SQL.WithContext(ctx)
}

func (s *DB) IsSQL() bool {
	return s.SQL != nil
}

// ResetBolt deletes every root bucket of the bolt store. It is a no-op for
// SQL drivers.
func (s *DB) ResetBolt() error {
	if s.Bolt == nil {
		return nil
	}

	return s.Bolt.Update(func(tx *bbolt.Tx) error {
		var names [][]byte
		if err := tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			names = append(names, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}

		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}
