package controllers

import (
	"bikey/internal/events"
	"bikey/internal/repositories"
	"bikey/internal/services"

	importsController "bikey/internal/controllers/imports"
	ridesController "bikey/internal/controllers/rides"
)

type Controllers struct {
	Rides   ridesController.RidesControllerInterface
	Imports importsController.ImportsControllerInterface
}

func New(
	services services.Service,
	repos repositories.Repository,
	eventBus *events.EventBus,
) Controllers {
	return Controllers{
		Rides:   ridesController.New(repos, services, eventBus),
		Imports: importsController.New(repos, services),
	}
}
