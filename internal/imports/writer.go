package imports

import (
	"context"
	"fmt"

	"bikey/internal/logger"
)

const (
	TableRides = "rides"
	TableLogs  = "logs"

	ColumnID     = "_id"
	ColumnRideID = "ride_id"

	// LogBatchSize is the number of log rows buffered before a bulk write.
	LogBatchSize = 100
)

// Sink is the storage the importer writes through. Insert returns the
// generated id of the new row, BulkInsert the number of rows written.
type Sink interface {
	Insert(ctx context.Context, table string, row *FieldMap) (int64, error)
	BulkInsert(ctx context.Context, table string, rows []*FieldMap) (int64, error)
}

// LogRecord is one telemetry sample waiting to be written for a ride.
type LogRecord struct {
	Fields *FieldMap
	RideID int64
}

type rideWriter struct {
	sink Sink
	log  logger.Logger
}

func (w rideWriter) create(ctx context.Context, ride *FieldMap) (int64, error) {
	log := w.log.Function("create")

	id, err := w.sink.Insert(ctx, TableRides, ride)
	if err != nil {
		return 0, fmt.Errorf("%w: insert ride: %w", ErrStoreWrite, err)
	}

	log.Debug("Created ride", "rideID", id, "fields", ride.Len())
	return id, nil
}

// LogBatchWriter buffers log records and writes them with one bulk insert
// per full batch.
type LogBatchWriter struct {
	sink     Sink
	capacity int
	pending  []*FieldMap
	written  int64
	log      logger.Logger
}

func NewLogBatchWriter(sink Sink, capacity int) *LogBatchWriter {
	if capacity <= 0 {
		capacity = LogBatchSize
	}
	return &LogBatchWriter{
		sink:     sink,
		capacity: capacity,
		pending:  make([]*FieldMap, 0, capacity),
		log:      logger.New("imports").File("writer").Function("LogBatchWriter"),
	}
}

// Append buffers the record and flushes once the buffer is full, so the
// buffer never holds more than capacity rows when Append returns.
func (w *LogBatchWriter) Append(ctx context.Context, record LogRecord) error {
	w.pending = append(w.pending, record.Fields.withRideID(record.RideID))
	if len(w.pending) >= w.capacity {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes every buffered row. An empty buffer is a no-op.
func (w *LogBatchWriter) Flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}

	size := len(w.pending)
	if _, err := w.sink.BulkInsert(ctx, TableLogs, w.pending); err != nil {
		return fmt.Errorf("%w: bulk insert %d logs: %w", ErrStoreWrite, size, err)
	}

	w.written += int64(size)
	w.pending = make([]*FieldMap, 0, w.capacity)
	w.log.Debug("Flushed log batch", "size", size, "written", w.written)
	return nil
}

func (w *LogBatchWriter) Len() int {
	return len(w.pending)
}

// Written is the number of rows successfully handed to the sink.
func (w *LogBatchWriter) Written() int64 {
	return w.written
}
