package imports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	nextID    int64
	rides     []*FieldMap
	batches   [][]*FieldMap
	events    *[]string
	insertErr error
	bulkErr   error
	failBulk  int
}

func newRecordingSink(id int64, events *[]string) *recordingSink {
	return &recordingSink{nextID: id, events: events}
}

func (s *recordingSink) record(event string) {
	if s.events != nil {
		*s.events = append(*s.events, event)
	}
}

func (s *recordingSink) Insert(_ context.Context, table string, row *FieldMap) (int64, error) {
	s.record("insert " + table)
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.rides = append(s.rides, row)
	id := s.nextID
	s.nextID++
	return id, nil
}

func (s *recordingSink) BulkInsert(_ context.Context, table string, rows []*FieldMap) (int64, error) {
	s.record(fmt.Sprintf("bulk %s %d", table, len(rows)))
	if s.bulkErr != nil && len(s.batches) == s.failBulk {
		return 0, s.bulkErr
	}
	batch := make([]*FieldMap, len(rows))
	copy(batch, rows)
	s.batches = append(s.batches, batch)
	return int64(len(rows)), nil
}

func (s *recordingSink) logRows() []*FieldMap {
	var rows []*FieldMap
	for _, batch := range s.batches {
		rows = append(rows, batch...)
	}
	return rows
}

func recordingListener(events *[]string) ProgressFuncs {
	return ProgressFuncs{
		Started: func() { *events = append(*events, "started") },
		Imported: func(index, total int64) {
			*events = append(*events, fmt.Sprintf("progress %d/%d", index, total))
		},
		Finished: func(status ImportStatus) { *events = append(*events, "finished "+status.String()) },
	}
}

func rideDocument(version string, logCount string, logs int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	if version == "" {
		b.WriteString("<bikey>\n")
	} else {
		fmt.Fprintf(&b, "<bikey version=%q>\n", version)
	}
	if logCount == "" {
		b.WriteString("  <ride>\n")
	} else {
		fmt.Fprintf(&b, "  <ride logCount=%q>\n", logCount)
	}
	b.WriteString("    <_id type=\"1\">12</_id>\n")
	b.WriteString("    <name type=\"3\">Morning loop</name>\n")
	b.WriteString("    <distance type=\"2\">1234.5</distance>\n")
	b.WriteString("    <logs>\n")
	for i := 0; i < logs; i++ {
		b.WriteString("      <log>\n")
		fmt.Fprintf(&b, "        <_id type=\"1\">%d</_id>\n", i+100)
		b.WriteString("        <ride_id type=\"1\">12</ride_id>\n")
		fmt.Fprintf(&b, "        <lat type=\"2\">%d.5</lat>\n", i)
		b.WriteString("      </log>\n")
	}
	b.WriteString("    </logs>\n")
	b.WriteString("  </ride>\n")
	b.WriteString("</bikey>\n")
	return b.String()
}

func runDocument(t *testing.T, sink Sink, doc string, listener ProgressListener) (Result, error) {
	t.Helper()
	return NewRideImporter(sink, strings.NewReader(doc), listener).Run(context.Background())
}

func TestRun_ThreeFloatLogs(t *testing.T) {
	doc := `<bikey version="1"><ride><name type="3">Ride</name><logs/>` +
		`<log><lat type="2">1.0</lat></log>` +
		`<log><lat type="2">2.0</lat></log>` +
		`<log><lat type="2">3.0</lat></log></ride></bikey>`
	sink := newRecordingSink(42, nil)

	result, err := runDocument(t, sink, doc, nil)

	require.NoError(t, err)
	assert.Equal(t, int64(42), result.RideID)
	assert.Equal(t, int64(3), result.LogsImported)
	assert.Equal(t, int64(-1), result.LogCount)
	assert.False(t, result.VersionMismatch)

	require.Len(t, sink.rides, 1)
	name, ok := sink.rides[0].Get("name")
	require.True(t, ok)
	text, _ := name.String()
	assert.Equal(t, "Ride", text)

	require.Len(t, sink.batches, 1)
	rows := sink.batches[0]
	require.Len(t, rows, 3)
	for i, row := range rows {
		lat, _ := row.Get("lat")
		value, isFloat := lat.Float()
		assert.True(t, isFloat)
		assert.Equal(t, float64(i+1), value)

		rideID, _ := row.Get(ColumnRideID)
		id, _ := rideID.Integer()
		assert.Equal(t, int64(42), id)
		assert.Equal(t, []string{"lat", ColumnRideID}, row.Keys())
	}
}

func TestRun_ProgressAndBatching(t *testing.T) {
	var events []string
	sink := newRecordingSink(7, &events)

	result, err := runDocument(t, sink, rideDocument("1", "250", 250), recordingListener(&events))

	require.NoError(t, err)
	assert.Equal(t, int64(250), result.LogsImported)
	assert.Equal(t, int64(250), result.LogCount)
	assert.Len(t, sink.logRows(), 250)
	assert.Equal(t, []string{
		"started",
		"insert rides",
		"bulk logs 100",
		"progress 100/250",
		"bulk logs 100",
		"progress 200/250",
		"progress 250/250",
		"bulk logs 50",
		"finished success",
	}, events)
}

func TestRun_LogCountMismatchIsAdvisory(t *testing.T) {
	var events []string
	sink := newRecordingSink(1, nil)

	result, err := runDocument(t, sink, rideDocument("1", "10", 3), recordingListener(&events))

	require.NoError(t, err)
	assert.Equal(t, int64(3), result.LogsImported)
	assert.Equal(t, []string{"started", "progress 3/10", "finished success"}, events)
}

func TestRun_RideCreatedBeforeAnyLogWrite(t *testing.T) {
	var events []string
	sink := newRecordingSink(3, &events)

	_, err := runDocument(t, sink, rideDocument("1", "", 120), nil)

	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "insert rides", events[0])
	assert.Equal(t, []string{"insert rides", "bulk logs 100", "bulk logs 20"}, events)
}

func TestRun_ReservedFieldsNeverParsed(t *testing.T) {
	doc := `<bikey version="1"><_id type="1">5</_id><ride><_id type="1">9</_id>` +
		`<ride_id type="1">9</ride_id><name type="3">x</name><logs/>` +
		`<log><_id type="1">1</_id><ride_id type="1">2</ride_id><speed type="2">3.5</speed></log>` +
		`</ride></bikey>`
	sink := newRecordingSink(11, nil)

	_, err := runDocument(t, sink, doc, nil)

	require.NoError(t, err)
	require.Len(t, sink.rides, 1)
	assert.False(t, sink.rides[0].Has(ColumnID))
	assert.False(t, sink.rides[0].Has(ColumnRideID))

	rows := sink.logRows()
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Has(ColumnID))
	rideID, _ := rows[0].Get(ColumnRideID)
	id, _ := rideID.Integer()
	assert.Equal(t, int64(11), id)
}

func TestRun_ExplicitNull(t *testing.T) {
	doc := `<bikey version="1"><ride><activated_date type="0"></activated_date><logs/>` +
		`<log><ele type="0"/></log></ride></bikey>`
	sink := newRecordingSink(1, nil)

	_, err := runDocument(t, sink, doc, nil)

	require.NoError(t, err)
	value, ok := sink.rides[0].Get("activated_date")
	require.True(t, ok)
	assert.True(t, value.IsNull())

	ele, ok := sink.logRows()[0].Get("ele")
	require.True(t, ok)
	assert.True(t, ele.IsNull())
	assert.Nil(t, sink.logRows()[0].AsMap()["ele"])
}

func TestRun_VersionMismatchContinues(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{name: "newer version", version: "2"},
		{name: "missing version", version: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var events []string
			sink := newRecordingSink(5, nil)

			result, err := runDocument(t, sink, rideDocument(tt.version, "", 2), recordingListener(&events))

			require.NoError(t, err)
			assert.True(t, result.VersionMismatch)
			assert.Equal(t, tt.version, result.Version)
			assert.Equal(t, int64(2), result.LogsImported)
			assert.Equal(t, "finished success", events[len(events)-1])
		})
	}
}

func TestRun_InvalidIntegerFails(t *testing.T) {
	doc := `<bikey version="1"><ride><logs/><log><heart_rate type="1">abc</heart_rate></log></ride></bikey>`
	var events []string
	sink := newRecordingSink(1, &events)

	_, err := runDocument(t, sink, doc, recordingListener(&events))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValueDecode)

	var importErr *ImportError
	require.ErrorAs(t, err, &importErr)
	assert.True(t, strings.HasPrefix(err.Error(), "could not import ride document"))
	assert.Equal(t, "finished fail", events[len(events)-1])
	assert.Equal(t, 1, strings.Count(strings.Join(events, ","), "finished"))
	assert.Empty(t, sink.batches)
}

func TestRun_FormatErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty document", doc: ``},
		{name: "wrong root", doc: `<export version="1"><ride><logs/></ride></export>`},
		{name: "logs outside ride", doc: `<bikey version="1"><logs/></bikey>`},
		{name: "log outside ride", doc: `<bikey version="1"><log/></bikey>`},
		{name: "log before logs marker", doc: `<bikey version="1"><ride><log/></ride></bikey>`},
		{name: "duplicate logs marker", doc: `<bikey version="1"><ride><logs/><logs/></ride></bikey>`},
		{name: "malformed xml", doc: `<bikey version="1"><ride><logs></ride></bikey>`},
		{name: "truncated", doc: `<bikey version="1"><ride><logs/><log>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var events []string
			sink := newRecordingSink(1, nil)

			_, err := runDocument(t, sink, tt.doc, recordingListener(&events))

			assert.ErrorIs(t, err, ErrFormat)
			assert.Equal(t, "finished fail", events[len(events)-1])
		})
	}
}

func TestRun_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing type", doc: `<bikey version="1"><ride><name>x</name><logs/></ride></bikey>`},
		{name: "non numeric type", doc: `<bikey version="1"><ride><name type="s">x</name><logs/></ride></bikey>`},
		{name: "blob type", doc: `<bikey version="1"><ride><name type="4">x</name><logs/></ride></bikey>`},
		{name: "malformed logCount", doc: `<bikey version="1"><ride logCount="many"><logs/></ride></bikey>`},
		{name: "empty float", doc: `<bikey version="1"><ride><logs/><log><lat type="2"></lat></log></ride></bikey>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runDocument(t, newRecordingSink(1, nil), tt.doc, nil)

			assert.ErrorIs(t, err, ErrValueDecode)
		})
	}
}

func TestRun_RootOnlySucceeds(t *testing.T) {
	sink := newRecordingSink(9, nil)

	result, err := runDocument(t, sink, `<bikey version="1"></bikey>`, nil)

	require.NoError(t, err)
	assert.Equal(t, int64(0), result.RideID)
	assert.Empty(t, sink.rides)
	assert.Empty(t, sink.batches)
}

func TestRun_RideWithoutLogs(t *testing.T) {
	sink := newRecordingSink(4, nil)

	result, err := runDocument(t, sink, rideDocument("1", "0", 0), nil)

	require.NoError(t, err)
	assert.Equal(t, int64(4), result.RideID)
	assert.Len(t, sink.rides, 1)
	assert.Empty(t, sink.batches)
}

func TestRun_RideWithoutLogsMarkerSucceeds(t *testing.T) {
	var events []string
	sink := newRecordingSink(4, &events)
	doc := `<bikey version="1"><ride logCount="3"><name type="3">x</name></ride></bikey>`

	result, err := runDocument(t, sink, doc, recordingListener(&events))

	require.NoError(t, err)
	assert.Equal(t, int64(0), result.RideID)
	assert.Equal(t, int64(3), result.LogCount)
	assert.Empty(t, sink.rides)
	assert.Empty(t, sink.batches)
	assert.Equal(t, []string{"started", "finished success"}, events)
}

func TestRun_SecondRideKeepsFirstRideLogs(t *testing.T) {
	var events []string
	sink := newRecordingSink(1, &events)
	doc := `<bikey version="1">` +
		`<ride logCount="1"><name type="3">first</name><logs/><log><lat type="2">1</lat></log></ride>` +
		`<ride logCount="2"><name type="3">second</name><logs/>` +
		`<log><lat type="2">2</lat></log><log><lat type="2">3</lat></log></ride>` +
		`</bikey>`

	result, err := runDocument(t, sink, doc, recordingListener(&events))

	require.NoError(t, err)
	assert.Equal(t, int64(2), result.RideID)
	assert.Equal(t, int64(2), result.LogCount)
	assert.Equal(t, int64(3), result.LogsImported)

	require.Len(t, sink.rides, 2)
	first, _ := sink.rides[0].Get("name")
	second, _ := sink.rides[1].Get("name")
	text, _ := first.String()
	assert.Equal(t, "first", text)
	text, _ = second.String()
	assert.Equal(t, "second", text)

	rows := sink.logRows()
	require.Len(t, rows, 3)
	wantRides := []int64{1, 2, 2}
	for i, row := range rows {
		rideID, ok := row.Get(ColumnRideID)
		require.True(t, ok)
		id, _ := rideID.Integer()
		assert.Equal(t, wantRides[i], id, "log %d", i)
	}
	assert.Equal(t, "finished success", events[len(events)-1])
}

func TestRun_FieldsBeforeFirstLogAreIgnored(t *testing.T) {
	doc := `<bikey version="1"><ride><logs><stray type="3">x</stray><log><lat type="2">1</lat></log></logs></ride></bikey>`
	sink := newRecordingSink(1, nil)

	_, err := runDocument(t, sink, doc, nil)

	require.NoError(t, err)
	assert.False(t, sink.rides[0].Has("stray"))
	assert.False(t, sink.logRows()[0].Has("stray"))
}

func TestRun_TextHandling(t *testing.T) {
	doc := `<bikey version="1"><ride><name type="3"> padded </name><empty type="3"></empty><logs/>` +
		`<log><lat type="2"> 1.5 </lat><cadence type="1">` + "\n 90\n" + `</cadence></log></ride></bikey>`
	sink := newRecordingSink(1, nil)

	_, err := runDocument(t, sink, doc, nil)

	require.NoError(t, err)
	name, _ := sink.rides[0].Get("name")
	text, _ := name.String()
	assert.Equal(t, " padded ", text)

	empty, ok := sink.rides[0].Get("empty")
	require.True(t, ok)
	text, _ = empty.String()
	assert.Equal(t, "", text)

	row := sink.logRows()[0]
	lat, _ := row.Get("lat")
	f, _ := lat.Float()
	assert.Equal(t, 1.5, f)
	cadence, _ := row.Get("cadence")
	i, _ := cadence.Integer()
	assert.Equal(t, int64(90), i)
}

func TestRun_Latin1Document(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>" +
		"<bikey version=\"1\"><ride><name type=\"3\">Caf\xe9</name><logs/></ride></bikey>"
	sink := newRecordingSink(1, nil)

	_, err := runDocument(t, sink, doc, nil)

	require.NoError(t, err)
	name, _ := sink.rides[0].Get("name")
	text, _ := name.String()
	assert.Equal(t, "Café", text)
}

func TestRun_StoreWriteFailures(t *testing.T) {
	t.Run("ride insert", func(t *testing.T) {
		sink := newRecordingSink(1, nil)
		sink.insertErr = errors.New("disk full")

		_, err := runDocument(t, sink, rideDocument("1", "", 5), nil)

		assert.ErrorIs(t, err, ErrStoreWrite)
		assert.Contains(t, err.Error(), "disk full")
		assert.Empty(t, sink.batches)
	})

	t.Run("second batch keeps the first", func(t *testing.T) {
		var events []string
		sink := newRecordingSink(1, nil)
		sink.bulkErr = errors.New("constraint violation")
		sink.failBulk = 1

		result, err := runDocument(t, sink, rideDocument("1", "", 250), recordingListener(&events))

		assert.ErrorIs(t, err, ErrStoreWrite)
		assert.Len(t, sink.batches, 1)
		assert.Equal(t, int64(1), result.RideID)
		assert.Equal(t, "finished fail", events[len(events)-1])
	})
}

func TestRun_ReadError(t *testing.T) {
	reader := iotest.ErrReader(errors.New("connection reset"))
	var events []string

	_, err := NewRideImporter(newRecordingSink(1, nil), reader, recordingListener(&events)).
		Run(context.Background())

	assert.ErrorIs(t, err, ErrRead)
	assert.Equal(t, []string{"started", "finished fail"}, events)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := newRecordingSink(1, nil)

	_, err := NewRideImporter(sink, strings.NewReader(rideDocument("1", "", 3)), nil).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.batches)
}

func TestImportError(t *testing.T) {
	err := &ImportError{Cause: ErrFormat}

	assert.Equal(t, "could not import ride document: invalid ride document", err.Error())
	assert.Equal(t, ErrFormat, errors.Unwrap(err))
	assert.Equal(t, "could not import ride document", (&ImportError{}).Error())
}
