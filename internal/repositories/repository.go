package repositories

import (
	"bikey/internal/database"
)

type Repository struct {
	Row       RowRepository
	Ride      RideRepository
	ImportRun ImportRunRepository
}

// New selects the bolt or gorm implementations from the configured driver.
func New(db database.DB) Repository {
	if db.Bolt != nil {
		return Repository{
			Row:       NewBoltRowRepository(db),
			Ride:      NewBoltRideRepository(db),
			ImportRun: NewBoltImportRunRepository(db),
		}
	}

	return Repository{
		Row:       NewRowRepository(db),
		Ride:      NewRideRepository(db),
		ImportRun: NewImportRunRepository(db),
	}
}
