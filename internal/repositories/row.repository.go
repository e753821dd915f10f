package repositories

import (
	"context"
	"strings"

	contextutil "bikey/internal/context"
	"bikey/internal/database"
	"bikey/internal/imports"
	"bikey/internal/logger"

	"gorm.io/gorm"
)

// maxBindVars keeps a multi-row insert under the SQLite and Postgres
// placeholder limits.
const maxBindVars = 32000

// RowRepository writes schema-free rows into SQL tables and implements the
// importer's Sink.
type RowRepository interface {
	Insert(ctx context.Context, table string, row *imports.FieldMap) (int64, error)
	BulkInsert(ctx context.Context, table string, rows []*imports.FieldMap) (int64, error)
}

type rowRepository struct {
	db  database.DB
	log logger.Logger
}

func NewRowRepository(db database.DB) RowRepository {
	return &rowRepository{
		db:  db,
		log: logger.New("rowRepository"),
	}
}

func (r *rowRepository) getDB(ctx context.Context) *gorm.DB {
	return contextutil.DB(ctx, r.db.SQL)
}

// Insert adds one row and returns the id generated by the database.
func (r *rowRepository) Insert(ctx context.Context, table string, row *imports.FieldMap) (int64, error) {
	log := r.log.Function("Insert")

	columns := row.Keys()
	if err := validateTable(table); err != nil {
		return 0, log.Err("refusing insert", err)
	}
	if err := validateColumns(columns); err != nil {
		return 0, log.Err("refusing insert", err, "table", table)
	}

	db := r.getDB(ctx)
	values := row.AsMap()

	var sql strings.Builder
	sql.WriteString("INSERT INTO ")
	quote(db, &sql, table)
	args := make([]any, 0, len(columns))
	if len(columns) == 0 {
		sql.WriteString(" DEFAULT VALUES")
	} else {
		writeColumnList(db, &sql, columns)
		sql.WriteString(" VALUES ")
		writePlaceholders(&sql, len(columns))
		for _, column := range columns {
			args = append(args, values[column])
		}
	}
	sql.WriteString(" RETURNING ")
	quote(db, &sql, "id")

	var id int64
	if err := db.Raw(sql.String(), args...).Scan(&id).Error; err != nil {
		return 0, log.Err("failed to insert row", err, "table", table)
	}

	log.Debug("Inserted row", "table", table, "id", id)
	return id, nil
}

// BulkInsert writes rows with gorm's CreateInBatches. gorm builds the column
// list from the union of every row's keys and sends NULL where a row lacks one.
func (r *rowRepository) BulkInsert(ctx context.Context, table string, rows []*imports.FieldMap) (int64, error) {
	log := r.log.Function("BulkInsert")

	if len(rows) == 0 {
		return 0, nil
	}
	if err := validateTable(table); err != nil {
		return 0, log.Err("refusing bulk insert", err)
	}

	columns := unionColumns(rows)
	if len(columns) == 0 {
		return 0, log.Err("refusing bulk insert", ErrRowMissingData, "table", table)
	}
	if err := validateColumns(columns); err != nil {
		return 0, log.Err("refusing bulk insert", err, "table", table)
	}

	values := make([]map[string]any, len(rows))
	for i, row := range rows {
		values[i] = row.AsMap()
	}

	result := r.getDB(ctx).Table(table).CreateInBatches(values, bulkBatchSize(len(columns)))
	if result.Error != nil {
		return 0, log.Err("failed to bulk insert rows", result.Error,
			"table", table,
			"rows", len(rows),
		)
	}

	log.Debug("Bulk inserted rows", "table", table, "rows", result.RowsAffected)
	return result.RowsAffected, nil
}

// bulkBatchSize keeps one batch under the placeholder limit.
func bulkBatchSize(columns int) int {
	return max(1, maxBindVars/columns)
}

func unionColumns(rows []*imports.FieldMap) []string {
	seen := make(map[string]struct{})
	var columns []string
	for _, row := range rows {
		for _, key := range row.Keys() {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			columns = append(columns, key)
		}
	}
	return columns
}

func quote(db *gorm.DB, sql *strings.Builder, name string) {
	db.Dialector.QuoteTo(sql, name)
}

func writeColumnList(db *gorm.DB, sql *strings.Builder, columns []string) {
	sql.WriteString(" (")
	for i, column := range columns {
		if i > 0 {
			sql.WriteString(", ")
		}
		quote(db, sql, column)
	}
	sql.WriteString(")")
}

func writePlaceholders(sql *strings.Builder, n int) {
	sql.WriteString("(")
	sql.WriteString(strings.TrimSuffix(strings.Repeat("?, ", n), ", "))
	sql.WriteString(")")
}

var _ imports.Sink = RowRepository(nil)
