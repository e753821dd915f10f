package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync/atomic"

	"bikey/internal/events"
	"bikey/internal/imports"
	"bikey/internal/logger"
	"bikey/internal/models"
	"bikey/internal/repositories"

	"gorm.io/datatypes"
)

// IMPORT_RUN_SAVE_INTERVAL is how many logs pass between audit row updates
// while an import is running.
const IMPORT_RUN_SAVE_INTERVAL = 1000

var ErrImportInProgress = errors.New("an import is already running")

// ImportOutcome pairs the importer result with its audit row.
type ImportOutcome struct {
	Run    *models.ImportRun `json:"run"`
	Result imports.Result    `json:"result"`
}

// RideImportService runs one document import at a time and records each
// attempt as an ImportRun.
type RideImportService struct {
	repos    repositories.Repository
	eventBus *events.EventBus
	log      logger.Logger
	running  atomic.Bool
}

func NewRideImportService(repos repositories.Repository, eventBus *events.EventBus) *RideImportService {
	return &RideImportService{
		repos:    repos,
		eventBus: eventBus,
		log:      logger.New("RideImportService"),
	}
}

func (s *RideImportService) IsRunning() bool {
	return s.running.Load()
}

// ImportFile opens a document from disk, gzip and zstd included, and imports it.
func (s *RideImportService) ImportFile(
	ctx context.Context,
	path string,
	listener imports.ProgressListener,
) (*ImportOutcome, error) {
	log := s.log.TraceFromContext(ctx).Function("ImportFile")

	reader, err := OpenDocument(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.Warn("failed to close document", "path", path, "error", err)
		}
	}()

	return s.Import(ctx, "file:"+filepath.Base(path), reader, listener)
}

// Import streams one document into the configured store. listener may be nil.
// On failure the returned outcome still describes the partial import.
func (s *RideImportService) Import(
	ctx context.Context,
	source string,
	reader io.Reader,
	listener imports.ProgressListener,
) (*ImportOutcome, error) {
	log := s.log.TraceFromContext(ctx).Function("Import")

	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrImportInProgress
	}
	defer s.running.Store(false)

	run := &models.ImportRun{
		Source:   source,
		LogCount: -1,
		Version:  imports.DocumentVersion,
	}
	if err := s.repos.ImportRun.Create(ctx, run); err != nil {
		return nil, log.Err("failed to record import run", err, "source", source)
	}
	runID := run.ID.String()
	log = log.With("runID", runID, "source", source)

	progress := imports.MultiProgress{
		&runProgress{service: s, ctx: ctx, run: run, log: log},
		s.eventProgress(runID),
		listener,
	}
	sink := &auditingSink{Sink: s.repos.Row, run: run}

	result, importErr := imports.NewRideImporter(sink, reader, progress).Run(ctx)

	run.Version = result.Version
	run.VersionMismatch = result.VersionMismatch
	if importErr != nil {
		run.LogCount = result.LogCount
		run.MarkAsFailed(result.RideID, result.LogsImported, importErr.Error())
	} else {
		run.MarkAsCompleted(result.RideID, result.LogCount, result.LogsImported)
	}

	// The run is recorded even when ctx was cancelled.
	if err := s.repos.ImportRun.Update(context.WithoutCancel(ctx), run); err != nil {
		log.Er("failed to update import run", err)
	}

	s.publishOutcome(runID, result, importErr)

	outcome := &ImportOutcome{Run: run, Result: result}
	if importErr != nil {
		return outcome, importErr
	}
	return outcome, nil
}

func (s *RideImportService) eventProgress(runID string) imports.ProgressListener {
	if s.eventBus == nil {
		return nil
	}
	log := s.log.Function("eventProgress")

	return imports.ProgressFuncs{
		Started: func() {
			if err := s.eventBus.PublishImportEvent(events.IMPORT_STARTED, runID, nil); err != nil {
				log.Warn("failed to publish import start", "runID", runID, "error", err)
			}
		},
		Imported: func(index, total int64) {
			data := map[string]any{"index": index, "total": total}
			if err := s.eventBus.PublishImportEvent(events.IMPORT_PROGRESS, runID, data); err != nil {
				log.Warn("failed to publish import progress", "runID", runID, "error", err)
			}
		},
	}
}

func (s *RideImportService) publishOutcome(runID string, result imports.Result, importErr error) {
	if s.eventBus == nil {
		return
	}

	messageType := events.IMPORT_COMPLETE
	data := map[string]any{
		"rideId":          result.RideID,
		"logCount":        result.LogCount,
		"logsImported":    result.LogsImported,
		"versionMismatch": result.VersionMismatch,
	}
	if importErr != nil {
		messageType = events.IMPORT_FAILED
		data["error"] = importErr.Error()
	}

	if err := s.eventBus.PublishImportEvent(messageType, runID, data); err != nil {
		s.log.Function("publishOutcome").Warn("failed to publish import outcome", "runID", runID, "error", err)
	}
}

// runProgress keeps the audit row's counters current during long imports.
type runProgress struct {
	service *RideImportService
	ctx     context.Context
	run     *models.ImportRun
	log     logger.Logger
}

func (p *runProgress) OnImportStarted() {
	p.log.Info("Import started")
}

func (p *runProgress) OnLogImported(index, total int64) {
	p.run.LogsImported = index
	p.run.LogCount = total
	p.log.Debug("Import progress", "index", index, "total", total)

	if index%IMPORT_RUN_SAVE_INTERVAL != 0 {
		return
	}
	if err := p.service.repos.ImportRun.Update(p.ctx, p.run); err != nil {
		p.log.Warn("failed to save import progress", "index", index, "error", err)
	}
}

func (p *runProgress) OnImportFinished(status imports.ImportStatus) {
	p.log.Info("Import finished", "status", status.String(), "logsImported", p.run.LogsImported)
}

// auditingSink copies the ride row into the import run before storing it.
type auditingSink struct {
	imports.Sink
	run *models.ImportRun
}

func (a *auditingSink) Insert(ctx context.Context, table string, row *imports.FieldMap) (int64, error) {
	if table == imports.TableRides {
		a.run.RideFields = datatypes.JSONMap(row.AsMap())
	}
	return a.Sink.Insert(ctx, table, row)
}
