package repositories

import (
	"path/filepath"
	"testing"

	"bikey/internal/database"
	"bikey/internal/imports"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (database.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return database.DB{Driver: "postgres", SQL: gormDB}, mock
}

func setupSQLiteDB(t *testing.T) database.DB {
	t.Helper()

	gormDB, err := database.OpenSQLite(filepath.Join(t.TempDir(), "bikey.db"))
	require.NoError(t, err)

	db := database.DB{Driver: "sqlite", SQL: gormDB}
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.MigrateModels())

	return db
}

func setupBoltDB(t *testing.T) database.DB {
	t.Helper()

	boltDB, err := database.OpenBolt(filepath.Join(t.TempDir(), "bikey.bolt"))
	require.NoError(t, err)

	db := database.DB{Driver: "bolt", Bolt: boltDB}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func row(pairs ...any) *imports.FieldMap {
	m := imports.NewFieldMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		name := pairs[i].(string)
		switch v := pairs[i+1].(type) {
		case nil:
			m.Set(name, imports.NullValue())
		case string:
			m.Set(name, imports.StringValue(v))
		case int:
			m.Set(name, imports.IntegerValue(int64(v)))
		case int64:
			m.Set(name, imports.IntegerValue(v))
		case float64:
			m.Set(name, imports.FloatValue(v))
		}
	}
	return m
}

// backends runs fn against every storage driver that needs no server.
func backends(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Run("sqlite", func(t *testing.T) {
		fn(t, New(setupSQLiteDB(t)))
	})
	t.Run("bolt", func(t *testing.T) {
		fn(t, New(setupBoltDB(t)))
	})
}
