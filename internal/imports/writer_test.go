package imports

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logRecord(rideID int64, speed float64) LogRecord {
	fields := NewFieldMap()
	fields.Set("speed", FloatValue(speed))
	return LogRecord{Fields: fields, RideID: rideID}
}

func TestLogBatchWriter_FlushesWhenFull(t *testing.T) {
	ctx := context.Background()
	sink := newRecordingSink(1, nil)
	writer := NewLogBatchWriter(sink, 3)

	for i := 0; i < 7; i++ {
		require.NoError(t, writer.Append(ctx, logRecord(5, float64(i))))
		assert.LessOrEqual(t, writer.Len(), 3)
	}

	assert.Len(t, sink.batches, 2)
	assert.Equal(t, 1, writer.Len())
	assert.Equal(t, int64(6), writer.Written())

	require.NoError(t, writer.Flush(ctx))
	assert.Len(t, sink.batches, 3)
	assert.Equal(t, 0, writer.Len())
	assert.Equal(t, int64(7), writer.Written())

	for _, row := range sink.logRows() {
		id, _ := row.Get(ColumnRideID)
		value, _ := id.Integer()
		assert.Equal(t, int64(5), value)
	}
}

func TestLogBatchWriter_EmptyFlushIsNoop(t *testing.T) {
	var events []string
	sink := newRecordingSink(1, &events)

	require.NoError(t, NewLogBatchWriter(sink, LogBatchSize).Flush(context.Background()))
	assert.Empty(t, events)
}

func TestLogBatchWriter_DefaultCapacity(t *testing.T) {
	writer := NewLogBatchWriter(newRecordingSink(1, nil), 0)

	assert.Equal(t, LogBatchSize, writer.capacity)
}

func TestLogBatchWriter_SinkError(t *testing.T) {
	sink := newRecordingSink(1, nil)
	sink.bulkErr = errors.New("locked")
	writer := NewLogBatchWriter(sink, 1)

	err := writer.Append(context.Background(), logRecord(1, 1))

	assert.ErrorIs(t, err, ErrStoreWrite)
	assert.Equal(t, int64(0), writer.Written())
}

func TestLogBatchWriter_DoesNotMutateRecordFields(t *testing.T) {
	record := logRecord(8, 2)
	writer := NewLogBatchWriter(newRecordingSink(1, nil), LogBatchSize)

	require.NoError(t, writer.Append(context.Background(), record))
	assert.False(t, record.Fields.Has(ColumnRideID))
}

func TestMultiProgress(t *testing.T) {
	var first, second []string

	listener := MultiProgress{recordingListener(&first), nil, recordingListener(&second)}
	listener.OnImportStarted()
	listener.OnLogImported(100, -1)
	listener.OnImportFinished(StatusSuccess)

	expected := []string{"started", "progress 100/-1", "finished success"}
	assert.Equal(t, expected, first)
	assert.Equal(t, expected, second)
}

func TestProgressFuncs_NilCallbacks(t *testing.T) {
	assert.NotPanics(t, func() {
		var p ProgressFuncs
		p.OnImportStarted()
		p.OnLogImported(1, 1)
		p.OnImportFinished(StatusFail)
	})
}
