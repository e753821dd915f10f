package services

import (
	"context"

	"bikey/internal/constants"
	"bikey/internal/database"
	"bikey/internal/logger"
	"bikey/internal/models"
	"bikey/internal/repositories"

	"github.com/shopspring/decimal"
)

const SUMMARY_DECIMAL_PLACES = 2

// RideSummary aggregates a ride's logs. Log distance and duration are
// per-sample deltas; the ride's own totals win when the export has them.
type RideSummary struct {
	RideID       int64           `json:"rideId"`
	Name         string          `json:"name,omitempty"`
	LogCount     int64           `json:"logCount"`
	Distance     decimal.Decimal `json:"distance"`
	Duration     int64           `json:"duration"`
	MaxSpeed     decimal.Decimal `json:"maxSpeed"`
	AverageSpeed decimal.Decimal `json:"averageSpeed"`
	MaxHeartRate int64           `json:"maxHeartRate"`
	AverageHR    decimal.Decimal `json:"averageHeartRate"`
	Elevation    decimal.Decimal `json:"elevationGain"`
}

type RideSummaryService struct {
	rides repositories.RideRepository
	cache database.CacheClient
	log   logger.Logger
}

// NewRideSummaryService caches summaries when the cache client is non-nil.
func NewRideSummaryService(rides repositories.RideRepository, cache database.CacheClient) *RideSummaryService {
	return &RideSummaryService{
		rides: rides,
		cache: cache,
		log:   logger.New("RideSummaryService"),
	}
}

func (s *RideSummaryService) Summarize(ctx context.Context, rideID int64) (*RideSummary, error) {
	log := s.log.TraceFromContext(ctx).Function("Summarize")

	if s.cache != nil {
		var cached RideSummary
		found, err := s.cacheEntry(ctx, rideID).Get(&cached)
		if err != nil {
			log.Warn("failed to read cached summary", "rideID", rideID, "error", err)
		} else if found {
			return &cached, nil
		}
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	logs, err := s.rides.GetLogs(ctx, rideID)
	if err != nil {
		return nil, err
	}

	summary := Summarize(ride, logs)

	if s.cache != nil {
		if err := s.cacheEntry(ctx, rideID).WithStruct(summary).WithTTL(constants.RideSummaryCacheExpiry).Set(); err != nil {
			log.Warn("failed to cache summary", "rideID", rideID, "error", err)
		}
	}

	return summary, nil
}

// Invalidate drops a cached summary after the ride changed or was deleted.
func (s *RideSummaryService) Invalidate(ctx context.Context, rideID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cacheEntry(ctx, rideID).Delete(); err != nil {
		s.log.Function("Invalidate").Warn("failed to delete cached summary", "rideID", rideID, "error", err)
	}
}

func (s *RideSummaryService) cacheEntry(ctx context.Context, rideID int64) *database.CacheBuilder {
	return database.NewCacheBuilder(s.cache, rideID).
		WithHash(constants.RideSummaryCachePrefix).
		WithContext(ctx)
}

// Summarize computes the summary of a ride from its logs.
func Summarize(ride *models.Ride, logs []*models.Log) *RideSummary {
	summary := &RideSummary{
		RideID:   ride.ID,
		LogCount: int64(len(logs)),
	}
	if ride.Name != nil {
		summary.Name = *ride.Name
	}

	distance := decimal.Zero
	speedSum, speedCount := decimal.Zero, int64(0)
	maxSpeed := decimal.Zero
	hrSum, hrCount := decimal.Zero, int64(0)
	gain := decimal.Zero
	var duration int64
	var lastEle *float64

	for _, entry := range logs {
		if entry.LogDistance != nil {
			distance = distance.Add(decimal.NewFromFloat(*entry.LogDistance))
		}
		if entry.LogDuration != nil {
			duration += *entry.LogDuration
		}
		if entry.Speed != nil {
			speed := decimal.NewFromFloat(*entry.Speed)
			speedSum = speedSum.Add(speed)
			speedCount++
			if speed.GreaterThan(maxSpeed) {
				maxSpeed = speed
			}
		}
		if entry.HeartRate != nil {
			hrSum = hrSum.Add(decimal.NewFromInt(*entry.HeartRate))
			hrCount++
			summary.MaxHeartRate = max(summary.MaxHeartRate, *entry.HeartRate)
		}
		if entry.Ele != nil {
			if lastEle != nil && *entry.Ele > *lastEle {
				gain = gain.Add(decimal.NewFromFloat(*entry.Ele - *lastEle))
			}
			lastEle = entry.Ele
		}
	}

	if ride.Distance != nil {
		distance = decimal.NewFromFloat(*ride.Distance)
	}
	if ride.Duration != nil {
		duration = *ride.Duration
	}

	summary.Distance = distance.Round(SUMMARY_DECIMAL_PLACES)
	summary.Duration = duration
	summary.MaxSpeed = maxSpeed.Round(SUMMARY_DECIMAL_PLACES)
	summary.AverageSpeed = average(speedSum, speedCount)
	summary.AverageHR = average(hrSum, hrCount)
	summary.Elevation = gain.Round(SUMMARY_DECIMAL_PLACES)

	return summary
}

func average(sum decimal.Decimal, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(count)).Round(SUMMARY_DECIMAL_PLACES)
}
