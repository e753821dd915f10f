package ridesController

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bikey/config"
	"bikey/internal/database"
	"bikey/internal/events"
	"bikey/internal/repositories"
	"bikey/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const document = `<bikey version="1"><ride logCount="2">` +
	`<name type="3">Evening loop</name><distance type="2">4.5</distance><duration type="1">600</duration>` +
	`<logs><log><speed type="2">10</speed><ele type="2">100</ele></log>` +
	`<log><speed type="2">20</speed><ele type="2">110</ele></log></logs>` +
	`</ride></bikey>`

func setup(t *testing.T) (RidesControllerInterface, services.Service, *events.EventBus) {
	t.Helper()

	boltDB, err := database.OpenBolt(filepath.Join(t.TempDir(), "bikey.bolt"))
	require.NoError(t, err)
	db := database.DB{Driver: config.DriverBolt, Bolt: boltDB}
	t.Cleanup(func() { _ = db.Close() })

	eventBus := events.New(nil, config.Config{})
	svc, err := services.New(db, config.Config{}, eventBus)
	require.NoError(t, err)

	return New(repositories.New(db), svc, eventBus), svc, eventBus
}

func importRide(t *testing.T, svc services.Service) int64 {
	t.Helper()

	outcome, err := svc.RideImport.Import(context.Background(), "test", strings.NewReader(document), nil)
	require.NoError(t, err)
	return outcome.Result.RideID
}

func TestRidesController_GetRide(t *testing.T) {
	controller, svc, _ := setup(t)
	rideID := importRide(t, svc)

	detail, err := controller.GetRide(context.Background(), rideID)
	require.NoError(t, err)
	assert.Equal(t, rideID, detail.Ride.ID)
	assert.Equal(t, int64(2), detail.LogCount)
	require.NotNil(t, detail.Ride.Name)
	assert.Equal(t, "Evening loop", *detail.Ride.Name)

	_, err = controller.GetRide(context.Background(), rideID+100)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = controller.GetRide(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestRidesController_GetSummary(t *testing.T) {
	controller, svc, _ := setup(t)
	rideID := importRide(t, svc)

	summary, err := controller.GetSummary(context.Background(), rideID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.LogCount)
	assert.Equal(t, "20", summary.MaxSpeed.String())
}

func TestRidesController_DeleteRide(t *testing.T) {
	controller, svc, eventBus := setup(t)
	rideID := importRide(t, svc)

	deleted := make(chan events.Event, 1)
	require.NoError(t, eventBus.Subscribe(events.RIDE_CHANNEL, func(event events.Event) error {
		deleted <- event
		return nil
	}))

	require.NoError(t, controller.DeleteRide(context.Background(), rideID))

	select {
	case event := <-deleted:
		assert.Equal(t, events.RIDE_DELETED, event.Type)
		assert.Equal(t, rideID, event.Data["rideId"])
	case <-time.After(time.Second):
		t.Fatal("ride deletion was not published")
	}

	_, err := controller.GetRide(context.Background(), rideID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	assert.ErrorIs(t, controller.DeleteRide(context.Background(), rideID), repositories.ErrNotFound)
}

func TestRidesController_ListRides(t *testing.T) {
	controller, svc, _ := setup(t)
	first := importRide(t, svc)
	second := importRide(t, svc)

	rides, err := controller.ListRides(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, rides, 2)
	assert.Equal(t, second, rides[0].ID)
	assert.Equal(t, first, rides[1].ID)
}
