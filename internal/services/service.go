package services

import (
	"bikey/config"
	"bikey/internal/database"
	"bikey/internal/events"
	"bikey/internal/repositories"
)

type Service struct {
	Transaction *TransactionService
	Scheduler   *SchedulerService
	Token       *TokenService
	RideImport  *RideImportService
	RideSummary *RideSummaryService
	Inbox       *InboxService
}

func New(db database.DB, config config.Config, eventBus *events.EventBus) (Service, error) {
	repos := repositories.New(db)

	rideImportService := NewRideImportService(repos, eventBus)

	return Service{
		Transaction: NewTransactionService(db),
		Scheduler:   NewSchedulerService(),
		Token:       NewTokenService(config),
		RideImport:  rideImportService,
		RideSummary: NewRideSummaryService(repos.Ride, db.Cache.General),
		Inbox:       NewInboxService(config, rideImportService),
	}, nil
}
