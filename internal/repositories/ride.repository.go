package repositories

import (
	"context"
	"errors"

	contextutil "bikey/internal/context"
	"bikey/internal/database"
	"bikey/internal/logger"
	. "bikey/internal/models"

	"gorm.io/gorm"
)

const DEFAULT_RIDE_PAGE_SIZE = 50

type RideRepository interface {
	List(ctx context.Context, limit, offset int) ([]*Ride, error)
	GetByID(ctx context.Context, id int64) (*Ride, error)
	CountLogs(ctx context.Context, rideID int64) (int64, error)
	GetLogs(ctx context.Context, rideID int64) ([]*Log, error)
	Delete(ctx context.Context, id int64) error
}

type rideRepository struct {
	db  database.DB
	log logger.Logger
}

func NewRideRepository(db database.DB) RideRepository {
	return &rideRepository{
		db:  db,
		log: logger.New("rideRepository"),
	}
}

func (r *rideRepository) getDB(ctx context.Context) *gorm.DB {
	return contextutil.DB(ctx, r.db.SQL)
}

func (r *rideRepository) List(ctx context.Context, limit, offset int) ([]*Ride, error) {
	log := r.log.Function("List")

	limit, offset = normalizePage(limit, offset)

	var rides []*Ride
	err := r.getDB(ctx).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rides).Error
	if err != nil {
		return nil, log.Err("failed to list rides", err, "limit", limit, "offset", offset)
	}

	return rides, nil
}

func (r *rideRepository) GetByID(ctx context.Context, id int64) (*Ride, error) {
	log := r.log.Function("GetByID")

	var ride Ride
	if err := r.getDB(ctx).First(&ride, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, log.Err("failed to get ride by ID", err, "id", id)
	}

	return &ride, nil
}

func (r *rideRepository) CountLogs(ctx context.Context, rideID int64) (int64, error) {
	log := r.log.Function("CountLogs")

	var count int64
	if err := r.getDB(ctx).Model(&Log{}).Where("ride_id = ?", rideID).Count(&count).Error; err != nil {
		return 0, log.Err("failed to count logs", err, "rideID", rideID)
	}

	return count, nil
}

func (r *rideRepository) GetLogs(ctx context.Context, rideID int64) ([]*Log, error) {
	log := r.log.Function("GetLogs")

	var logs []*Log
	if err := r.getDB(ctx).Where("ride_id = ?", rideID).Order("id ASC").Find(&logs).Error; err != nil {
		return nil, log.Err("failed to get logs", err, "rideID", rideID)
	}

	return logs, nil
}

// Delete removes the ride's logs and then the ride. Run it inside a
// transaction so a failure leaves both in place.
func (r *rideRepository) Delete(ctx context.Context, id int64) error {
	log := r.log.Function("Delete")

	db := r.getDB(ctx)
	if err := db.Where("ride_id = ?", id).Delete(&Log{}).Error; err != nil {
		return log.Err("failed to delete ride logs", err, "id", id)
	}

	result := db.Delete(&Ride{}, "id = ?", id)
	if result.Error != nil {
		return log.Err("failed to delete ride", result.Error, "id", id)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	log.Info("Deleted ride", "id", id)
	return nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DEFAULT_RIDE_PAGE_SIZE
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
