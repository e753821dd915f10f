package repositories

import (
	"context"
	"errors"
	"time"

	contextutil "bikey/internal/context"
	"bikey/internal/database"
	"bikey/internal/logger"
	. "bikey/internal/models"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
	"gorm.io/gorm"
)

const DEFAULT_IMPORT_RUN_LIMIT = 20

type ImportRunRepository interface {
	Create(ctx context.Context, run *ImportRun) error
	Update(ctx context.Context, run *ImportRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*ImportRun, error)
	ListRecent(ctx context.Context, limit int) ([]*ImportRun, error)
}

type importRunRepository struct {
	db  database.DB
	log logger.Logger
}

func NewImportRunRepository(db database.DB) ImportRunRepository {
	return &importRunRepository{
		db:  db,
		log: logger.New("importRunRepository"),
	}
}

func (r *importRunRepository) getDB(ctx context.Context) *gorm.DB {
	return contextutil.DB(ctx, r.db.SQL)
}

func (r *importRunRepository) Create(ctx context.Context, run *ImportRun) error {
	log := r.log.Function("Create")

	if err := r.getDB(ctx).Create(run).Error; err != nil {
		return log.Err("failed to create import run", err, "source", run.Source)
	}

	return nil
}

func (r *importRunRepository) Update(ctx context.Context, run *ImportRun) error {
	log := r.log.Function("Update")

	if err := r.getDB(ctx).Save(run).Error; err != nil {
		return log.Err("failed to update import run", err, "id", run.ID)
	}

	return nil
}

func (r *importRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*ImportRun, error) {
	log := r.log.Function("GetByID")

	var run ImportRun
	if err := r.getDB(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, log.Err("failed to get import run", err, "id", id)
	}

	return &run, nil
}

func (r *importRunRepository) ListRecent(ctx context.Context, limit int) ([]*ImportRun, error) {
	log := r.log.Function("ListRecent")

	if limit <= 0 {
		limit = DEFAULT_IMPORT_RUN_LIMIT
	}

	var runs []*ImportRun
	if err := r.getDB(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, log.Err("failed to list import runs", err, "limit", limit)
	}

	return runs, nil
}

type boltImportRunRepository struct {
	db  database.DB
	log logger.Logger
}

// NewBoltImportRunRepository keys runs by their UUIDv7 bytes, so bucket
// order is start order.
func NewBoltImportRunRepository(db database.DB) ImportRunRepository {
	return &boltImportRunRepository{
		db:  db,
		log: logger.New("boltImportRunRepository"),
	}
}

func (r *boltImportRunRepository) Create(ctx context.Context, run *ImportRun) error {
	log := r.log.Function("Create")

	if err := run.BeforeCreate(nil); err != nil {
		return log.Err("invalid import run", err, "source", run.Source)
	}
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	if err := r.put(run); err != nil {
		return log.Err("failed to create import run", err, "source", run.Source)
	}
	return nil
}

func (r *boltImportRunRepository) Update(ctx context.Context, run *ImportRun) error {
	log := r.log.Function("Update")

	if run.ID == uuid.Nil {
		return log.Error("import run has no id")
	}
	run.UpdatedAt = time.Now().UTC()

	if err := r.put(run); err != nil {
		return log.Err("failed to update import run", err, "id", run.ID)
	}
	return nil
}

func (r *boltImportRunRepository) put(run *ImportRun) error {
	data, err := encodeRecord(run)
	if err != nil {
		return err
	}
	return r.db.Bolt.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(bucketImportRuns))
		if err != nil {
			return err
		}
		return bucket.Put(run.ID[:], data)
	})
}

func (r *boltImportRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*ImportRun, error) {
	log := r.log.Function("GetByID")

	var run *ImportRun
	err := r.db.Bolt.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketImportRuns))
		if bucket == nil {
			return nil
		}
		data := bucket.Get(id[:])
		if data == nil {
			return nil
		}
		run = &ImportRun{}
		return decodeRecord(data, run)
	})
	if err != nil {
		return nil, log.Err("failed to get import run", err, "id", id)
	}
	if run == nil {
		return nil, ErrNotFound
	}
	return run, nil
}

func (r *boltImportRunRepository) ListRecent(ctx context.Context, limit int) ([]*ImportRun, error) {
	log := r.log.Function("ListRecent")

	if limit <= 0 {
		limit = DEFAULT_IMPORT_RUN_LIMIT
	}

	var runs []*ImportRun
	err := r.db.Bolt.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketImportRuns))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.Last(); k != nil && len(runs) < limit; k, v = c.Prev() {
			var run ImportRun
			if err := decodeRecord(v, &run); err != nil {
				return err
			}
			runs = append(runs, &run)
		}
		return nil
	})
	if err != nil {
		return nil, log.Err("failed to list import runs", err, "limit", limit)
	}
	return runs, nil
}
