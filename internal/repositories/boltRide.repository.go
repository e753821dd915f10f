package repositories

import (
	"context"
	"errors"

	"bikey/internal/database"
	"bikey/internal/imports"
	"bikey/internal/logger"
	. "bikey/internal/models"

	"go.etcd.io/bbolt"
)

type boltRideRepository struct {
	db  database.DB
	log logger.Logger
}

func NewBoltRideRepository(db database.DB) RideRepository {
	return &boltRideRepository{
		db:  db,
		log: logger.New("boltRideRepository"),
	}
}

// List walks the rides bucket newest first.
func (r *boltRideRepository) List(ctx context.Context, limit, offset int) ([]*Ride, error) {
	log := r.log.Function("List")

	limit, offset = normalizePage(limit, offset)

	var rides []*Ride
	err := r.db.Bolt.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(imports.TableRides))
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		skipped := 0
		for k, v := c.Last(); k != nil && len(rides) < limit; k, v = c.Prev() {
			if skipped < offset {
				skipped++
				continue
			}
			var ride Ride
			if err := decodeRecord(v, &ride); err != nil {
				return err
			}
			rides = append(rides, &ride)
		}
		return nil
	})
	if err != nil {
		return nil, log.Err("failed to list rides", err, "limit", limit, "offset", offset)
	}

	return rides, nil
}

func (r *boltRideRepository) GetByID(ctx context.Context, id int64) (*Ride, error) {
	log := r.log.Function("GetByID")

	if id <= 0 {
		return nil, ErrNotFound
	}

	var ride *Ride
	err := r.db.Bolt.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(imports.TableRides))
		if bucket == nil {
			return nil
		}
		data := bucket.Get(itob(uint64(id)))
		if data == nil {
			return nil
		}
		ride = &Ride{}
		return decodeRecord(data, ride)
	})
	if err != nil {
		return nil, log.Err("failed to get ride by ID", err, "id", id)
	}
	if ride == nil {
		return nil, ErrNotFound
	}

	return ride, nil
}

func (r *boltRideRepository) CountLogs(ctx context.Context, rideID int64) (int64, error) {
	var count int64
	err := r.db.Bolt.View(func(tx *bbolt.Tx) error {
		index := rideLogIndex(tx, rideID)
		if index == nil {
			return nil
		}
		count = int64(index.Stats().KeyN)
		return nil
	})
	if err != nil {
		return 0, r.log.Function("CountLogs").Err("failed to count logs", err, "rideID", rideID)
	}
	return count, nil
}

func (r *boltRideRepository) GetLogs(ctx context.Context, rideID int64) ([]*Log, error) {
	log := r.log.Function("GetLogs")

	var logs []*Log
	err := r.db.Bolt.View(func(tx *bbolt.Tx) error {
		index := rideLogIndex(tx, rideID)
		rows := tx.Bucket([]byte(imports.TableLogs))
		if index == nil || rows == nil {
			return nil
		}

		return index.ForEach(func(k, _ []byte) error {
			data := rows.Get(k)
			if data == nil {
				return nil
			}
			var entry Log
			if err := decodeRecord(data, &entry); err != nil {
				return err
			}
			logs = append(logs, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, log.Err("failed to get logs", err, "rideID", rideID)
	}

	return logs, nil
}

func (r *boltRideRepository) Delete(ctx context.Context, id int64) error {
	log := r.log.Function("Delete")

	if id <= 0 {
		return ErrNotFound
	}

	err := r.db.Bolt.Update(func(tx *bbolt.Tx) error {
		rides := tx.Bucket([]byte(imports.TableRides))
		key := itob(uint64(id))
		if rides == nil || rides.Get(key) == nil {
			return ErrNotFound
		}

		if index := rideLogIndex(tx, id); index != nil {
			if logs := tx.Bucket([]byte(imports.TableLogs)); logs != nil {
				err := index.ForEach(func(k, _ []byte) error {
					return logs.Delete(k)
				})
				if err != nil {
					return err
				}
			}
			if err := tx.Bucket([]byte(bucketLogsByRide)).DeleteBucket(key); err != nil {
				return err
			}
		}

		return rides.Delete(key)
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return log.Err("failed to delete ride", err, "id", id)
	}

	log.Info("Deleted ride", "id", id)
	return nil
}

func rideLogIndex(tx *bbolt.Tx, rideID int64) *bbolt.Bucket {
	if rideID <= 0 {
		return nil
	}
	index := tx.Bucket([]byte(bucketLogsByRide))
	if index == nil {
		return nil
	}
	return index.Bucket(itob(uint64(rideID)))
}
