package repositories

import (
	"context"
	"fmt"

	"bikey/internal/database"
	"bikey/internal/imports"
	"bikey/internal/logger"

	"go.etcd.io/bbolt"
)

type boltRowRepository struct {
	db  database.DB
	log logger.Logger
}

// NewBoltRowRepository stores each table as a bucket of msgpack rows keyed
// by a big-endian sequence id. Log rows are also indexed per ride.
func NewBoltRowRepository(db database.DB) RowRepository {
	return &boltRowRepository{
		db:  db,
		log: logger.New("boltRowRepository"),
	}
}

func (r *boltRowRepository) Insert(ctx context.Context, table string, row *imports.FieldMap) (int64, error) {
	log := r.log.Function("Insert")

	if err := r.validate(table, []*imports.FieldMap{row}); err != nil {
		return 0, log.Err("refusing insert", err, "table", table)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var id int64
	err := r.db.Bolt.Update(func(tx *bbolt.Tx) error {
		var err error
		id, err = putRow(tx, table, row)
		return err
	})
	if err != nil {
		return 0, log.Err("failed to insert row", err, "table", table)
	}

	log.Debug("Inserted row", "table", table, "id", id)
	return id, nil
}

// BulkInsert writes all rows in a single bolt transaction.
func (r *boltRowRepository) BulkInsert(ctx context.Context, table string, rows []*imports.FieldMap) (int64, error) {
	log := r.log.Function("BulkInsert")

	if len(rows) == 0 {
		return 0, nil
	}
	if err := r.validate(table, rows); err != nil {
		return 0, log.Err("refusing bulk insert", err, "table", table)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	err := r.db.Bolt.Update(func(tx *bbolt.Tx) error {
		for _, row := range rows {
			if _, err := putRow(tx, table, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, log.Err("failed to bulk insert rows", err, "table", table, "rows", len(rows))
	}

	log.Debug("Bulk inserted rows", "table", table, "rows", len(rows))
	return int64(len(rows)), nil
}

func (r *boltRowRepository) validate(table string, rows []*imports.FieldMap) error {
	if err := validateTable(table); err != nil {
		return err
	}
	if table == bucketLogsByRide || table == bucketImportRuns {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidTable, table)
	}
	for _, row := range rows {
		if err := validateColumns(row.Keys()); err != nil {
			return err
		}
	}
	return nil
}

func putRow(tx *bbolt.Tx, table string, row *imports.FieldMap) (int64, error) {
	bucket, err := tx.CreateBucketIfNotExists([]byte(table))
	if err != nil {
		return 0, err
	}

	seq, err := bucket.NextSequence()
	if err != nil {
		return 0, err
	}
	id := int64(seq)

	values := row.AsMap()
	values[columnPrimaryKey] = id
	data, err := encodeRecord(values)
	if err != nil {
		return 0, fmt.Errorf("encode row: %w", err)
	}
	if err := bucket.Put(itob(seq), data); err != nil {
		return 0, err
	}

	if table == imports.TableLogs {
		if err := indexLog(tx, values[imports.ColumnRideID], seq); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func indexLog(tx *bbolt.Tx, rideID any, logID uint64) error {
	id, ok := rideID.(int64)
	if !ok || id <= 0 {
		return nil
	}

	index, err := tx.CreateBucketIfNotExists([]byte(bucketLogsByRide))
	if err != nil {
		return err
	}
	ride, err := index.CreateBucketIfNotExists(itob(uint64(id)))
	if err != nil {
		return err
	}
	return ride.Put(itob(logID), []byte{})
}
