package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"bikey/config"
	"bikey/internal/database"
	"bikey/internal/events"
	"bikey/internal/imports"
	"bikey/internal/models"
	"bikey/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) database.DB {
	t.Helper()

	gormDB, err := database.OpenSQLite(filepath.Join(t.TempDir(), "bikey.db"))
	require.NoError(t, err)

	db := database.DB{Driver: config.DriverSQLite, SQL: gormDB}
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.MigrateModels())
	return db
}

func setupBolt(t *testing.T) database.DB {
	t.Helper()

	boltDB, err := database.OpenBolt(filepath.Join(t.TempDir(), "bikey.bolt"))
	require.NoError(t, err)

	db := database.DB{Driver: config.DriverBolt, Bolt: boltDB}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func rideXML(logs int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprintf(&b, `<bikey version="1"><ride logCount="%d">`, logs)
	b.WriteString(`<_id type="1">3</_id><name type="3">Lunch ride</name><distance type="2">12.5</distance>`)
	b.WriteString(`<logs>`)
	for i := 0; i < logs; i++ {
		fmt.Fprintf(&b, `<log><speed type="2">%d.25</speed><heart_rate type="1">%d</heart_rate></log>`, i%40, 100+i%60)
	}
	b.WriteString(`</logs></ride></bikey>`)
	return b.String()
}

type eventCollector struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *eventCollector) handle(event events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *eventCollector) types() []events.MessageType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.MessageType, 0, len(c.events))
	for _, event := range c.events {
		out = append(out, event.Type)
	}
	return out
}

func TestRideImportService_ImportSuccess(t *testing.T) {
	for name, db := range map[string]func(*testing.T) database.DB{"sqlite": setupSQLite, "bolt": setupBolt} {
		t.Run(name, func(t *testing.T) {
			repos := repositories.New(db(t))
			bus := events.New(nil, config.Config{})
			collector := &eventCollector{}
			require.NoError(t, bus.Subscribe(events.IMPORT_CHANNEL, collector.handle))

			service := NewRideImportService(repos, bus)
			var progress []int64
			listener := imports.ProgressFuncs{Imported: func(index, _ int64) { progress = append(progress, index) }}

			outcome, err := service.Import(context.Background(), "upload:lunch.xml", strings.NewReader(rideXML(250)), listener)
			require.NoError(t, err)

			assert.Positive(t, outcome.Result.RideID)
			assert.Equal(t, int64(250), outcome.Result.LogsImported)
			assert.Equal(t, []int64{100, 200, 250}, progress)
			assert.False(t, service.IsRunning())

			run, err := repos.ImportRun.GetByID(context.Background(), outcome.Run.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ImportRunStatusCompleted, run.Status)
			assert.Equal(t, int64(250), run.LogsImported)
			assert.Equal(t, int64(250), run.LogCount)
			require.NotNil(t, run.RideID)
			assert.Equal(t, outcome.Result.RideID, *run.RideID)
			assert.Equal(t, "Lunch ride", run.RideFields["name"])

			count, err := repos.Ride.CountLogs(context.Background(), outcome.Result.RideID)
			require.NoError(t, err)
			assert.Equal(t, int64(250), count)

			assert.Eventually(t, func() bool { return len(collector.types()) == 5 }, time.Second, 10*time.Millisecond)
			assert.ElementsMatch(t, []events.MessageType{
				events.IMPORT_STARTED,
				events.IMPORT_PROGRESS,
				events.IMPORT_PROGRESS,
				events.IMPORT_PROGRESS,
				events.IMPORT_COMPLETE,
			}, collector.types())
		})
	}
}

func TestRideImportService_ImportFailureIsRecorded(t *testing.T) {
	repos := repositories.New(setupSQLite(t))
	service := NewRideImportService(repos, nil)

	doc := `<bikey version="1"><ride><name type="3">x</name><logs/><log><speed type="1">fast</speed></log></ride></bikey>`
	outcome, err := service.Import(context.Background(), "upload:bad.xml", strings.NewReader(doc), nil)

	require.Error(t, err)
	var importErr *imports.ImportError
	assert.ErrorAs(t, err, &importErr)
	assert.ErrorIs(t, err, imports.ErrValueDecode)
	require.NotNil(t, outcome)

	run, err := repos.ImportRun.GetByID(context.Background(), outcome.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportRunStatusFailed, run.Status)
	require.NotNil(t, run.ErrorMessage)
	assert.Contains(t, *run.ErrorMessage, "could not import ride document")
	require.NotNil(t, run.RideID)
	assert.Equal(t, outcome.Result.RideID, *run.RideID)
}

func TestRideImportService_CancelledImportIsRecorded(t *testing.T) {
	repos := repositories.New(setupSQLite(t))
	service := NewRideImportService(repos, nil)

	ctx, cancel := context.WithCancel(context.Background())
	listener := imports.ProgressFuncs{Started: cancel}

	outcome, err := service.Import(ctx, "upload:cancel.xml", strings.NewReader(rideXML(10)), listener)

	assert.ErrorIs(t, err, context.Canceled)
	run, getErr := repos.ImportRun.GetByID(context.Background(), outcome.Run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ImportRunStatusFailed, run.Status)
}

func TestRideImportService_RejectsConcurrentImport(t *testing.T) {
	service := NewRideImportService(repositories.New(setupSQLite(t)), nil)
	service.running.Store(true)

	outcome, err := service.Import(context.Background(), "upload:x.xml", strings.NewReader(rideXML(1)), nil)

	assert.ErrorIs(t, err, ErrImportInProgress)
	assert.Nil(t, outcome)
}

func TestRideImportService_ImportFile(t *testing.T) {
	repos := repositories.New(setupSQLite(t))
	service := NewRideImportService(repos, nil)

	path := filepath.Join(t.TempDir(), "ride.xml.gz")
	require.NoError(t, os.WriteFile(path, gzipBytes(t, rideXML(3)), 0o600))

	outcome, err := service.ImportFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), outcome.Result.LogsImported)
	assert.Equal(t, "file:ride.xml.gz", outcome.Run.Source)

	_, err = service.ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.xml"), nil)
	assert.Error(t, err)
}
