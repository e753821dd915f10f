package ridesController

import (
	"context"
	"errors"

	"bikey/internal/events"
	"bikey/internal/logger"
	. "bikey/internal/models"
	"bikey/internal/repositories"
	"bikey/internal/services"

	"gorm.io/gorm"
)

var ErrInvalidID = errors.New("ride id must be positive")

type RideDetail struct {
	Ride     *Ride `json:"ride"`
	LogCount int64 `json:"logCount"`
}

type RidesController struct {
	rideRepo           repositories.RideRepository
	summaryService     *services.RideSummaryService
	transactionService *services.TransactionService
	eventBus           *events.EventBus
	log                logger.Logger
}

type RidesControllerInterface interface {
	ListRides(ctx context.Context, limit, offset int) ([]*Ride, error)
	GetRide(ctx context.Context, id int64) (*RideDetail, error)
	GetSummary(ctx context.Context, id int64) (*services.RideSummary, error)
	DeleteRide(ctx context.Context, id int64) error
}

func New(
	repos repositories.Repository,
	services services.Service,
	eventBus *events.EventBus,
) RidesControllerInterface {
	return &RidesController{
		rideRepo:           repos.Ride,
		summaryService:     services.RideSummary,
		transactionService: services.Transaction,
		eventBus:           eventBus,
		log:                logger.New("ridesController"),
	}
}

func (rc *RidesController) ListRides(ctx context.Context, limit, offset int) ([]*Ride, error) {
	return rc.rideRepo.List(ctx, limit, offset)
}

func (rc *RidesController) GetRide(ctx context.Context, id int64) (*RideDetail, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}

	ride, err := rc.rideRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	count, err := rc.rideRepo.CountLogs(ctx, id)
	if err != nil {
		return nil, err
	}

	return &RideDetail{Ride: ride, LogCount: count}, nil
}

func (rc *RidesController) GetSummary(ctx context.Context, id int64) (*services.RideSummary, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}
	return rc.summaryService.Summarize(ctx, id)
}

// DeleteRide removes the ride with its logs, then drops the cached summary
// and tells connected clients.
func (rc *RidesController) DeleteRide(ctx context.Context, id int64) error {
	log := rc.log.TraceFromContext(ctx).Function("DeleteRide")

	if id <= 0 {
		return ErrInvalidID
	}

	err := rc.transactionService.Execute(ctx, func(txCtx context.Context, _ *gorm.DB) error {
		return rc.rideRepo.Delete(txCtx, id)
	})
	if err != nil {
		return err
	}

	rc.summaryService.Invalidate(ctx, id)

	if rc.eventBus != nil {
		if err := rc.eventBus.PublishRideDeleted(id); err != nil {
			log.Warn("failed to publish ride deletion", "rideID", id, "error", err)
		}
	}

	log.Info("Ride deleted", "rideID", id)
	return nil
}
