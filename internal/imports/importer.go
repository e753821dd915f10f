// Package imports restores a ride and its logs from a bikey XML export.
//
// The document is read in a single pass. The ride row is inserted as soon as
// the logs marker is reached so its generated id can be attached to every
// log row, and log rows are written in batches of LogBatchSize.
package imports

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bikey/internal/logger"

	"golang.org/x/net/html/charset"
)

// DocumentVersion is the export format version this importer was written for.
const DocumentVersion = "1"

const progressInterval = 100

// Result describes a finished import. On failure Run still returns what was
// known when the import stopped.
type Result struct {
	RideID          int64  `json:"rideId"`
	LogCount        int64  `json:"logCount"`
	LogsImported    int64  `json:"logsImported"`
	Version         string `json:"version"`
	VersionMismatch bool   `json:"versionMismatch"`
}

type RideImporter struct {
	sink     Sink
	reader   io.Reader
	listener ProgressListener
	log      logger.Logger
}

// NewRideImporter prepares an import of one document. The reader and sink
// stay owned by the caller. A nil listener is allowed.
func NewRideImporter(sink Sink, reader io.Reader, listener ProgressListener) *RideImporter {
	if listener == nil {
		listener = nopProgress{}
	}
	return &RideImporter{
		sink:     sink,
		reader:   reader,
		listener: listener,
		log:      logger.New("imports").File("importer"),
	}
}

// Run consumes the reader and writes the ride and its logs to the sink.
// Every failure is returned as *ImportError after the listener has been told
// the import failed. Rows written before a failure are not removed.
func (i *RideImporter) Run(ctx context.Context) (Result, error) {
	log := i.log.TraceFromContext(ctx).Function("Run")
	defer log.Timer("ride import")()

	i.listener.OnImportStarted()

	s := &session{
		ctx:      ctx,
		decoder:  newDecoder(i.reader),
		rides:    rideWriter{sink: i.sink, log: log},
		logs:     NewLogBatchWriter(i.sink, LogBatchSize),
		listener: i.listener,
		log:      log,
		result:   Result{LogCount: -1},
	}

	if err := s.run(); err != nil {
		importErr := &ImportError{Cause: err}
		log.Er("Import failed", importErr,
			"rideID", s.result.RideID,
			"logsImported", s.result.LogsImported,
			"state", s.state.String(),
		)
		i.listener.OnImportFinished(StatusFail)
		return s.result, importErr
	}

	log.Info("Import completed",
		"rideID", s.result.RideID,
		"logsImported", s.result.LogsImported,
		"logCount", s.result.LogCount,
	)
	i.listener.OnImportFinished(StatusSuccess)
	return s.result, nil
}

func newDecoder(reader io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(reader)
	decoder.CharsetReader = charset.NewReaderLabel
	return decoder
}

type fieldDecl struct {
	name string
	code TypeCode
}

// session holds the mutable state of one Run.
type session struct {
	ctx      context.Context
	decoder  *xml.Decoder
	rides    rideWriter
	logs     *LogBatchWriter
	listener ProgressListener
	log      logger.Logger

	state      parserState
	ride       *FieldMap
	pendingLog *FieldMap
	field      *fieldDecl
	text       strings.Builder
	result     Result
}

func (s *session) run() error {
	if err := s.readRoot(); err != nil {
		return err
	}

	for {
		token, err := s.decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return readError(err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			err = s.start(t)
		case xml.EndElement:
			err = s.end(t)
		case xml.CharData:
			if s.field != nil {
				s.text.Write(t)
			}
		}
		if err != nil {
			return err
		}
	}

	return s.finish()
}

func (s *session) readRoot() error {
	for {
		token, err := s.decoder.Token()
		if err == io.EOF {
			return fmt.Errorf("%w: document has no root element", ErrFormat)
		}
		if err != nil {
			return readError(err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != tagRoot {
			return fmt.Errorf("%w: root element is %q, expected %q", ErrFormat, start.Name.Local, tagRoot)
		}

		version, _ := attr(start, attrVersion)
		s.result.Version = version
		if version != DocumentVersion {
			s.result.VersionMismatch = true
			s.log.Warn("Importing from an unsupported document version, continuing anyway",
				"version", version,
				"supported", DocumentVersion,
			)
		}
		return nil
	}
}

func (s *session) start(element xml.StartElement) error {
	s.field = nil
	s.text.Reset()

	name := element.Name.Local
	next := transition(s.state, classifyTag(name))

	switch next.action {
	case actionReject:
		return fmt.Errorf("%w: %s (tag %q)", ErrFormat, next.reason, name)

	case actionIgnoreField:
		s.log.Warn("Ignoring field between the logs marker and the first log", "field", name)

	case actionStartRide:
		if s.pendingLog != nil {
			if err := s.finalizeLog(false); err != nil {
				return err
			}
		}
		logCount, err := parseLogCount(element)
		if err != nil {
			return err
		}
		s.result.LogCount = logCount
		s.ride = NewFieldMap()

	case actionCreateRide:
		id, err := s.rides.create(s.ctx, s.ride)
		if err != nil {
			return err
		}
		s.result.RideID = id
		s.ride = nil
		s.log.Info("Ride created", "rideID", id, "logCount", s.result.LogCount)

	case actionStartLog:
		if s.pendingLog != nil {
			if err := s.finalizeLog(false); err != nil {
				return err
			}
		}
		s.pendingLog = NewFieldMap()

	case actionDeclareField:
		raw, ok := attr(element, attrType)
		if !ok {
			return fmt.Errorf("%w: field %q has no type attribute", ErrValueDecode, name)
		}
		code, err := ParseTypeCode(raw)
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		s.field = &fieldDecl{name: name, code: code}
	}

	s.state = next.next
	return nil
}

func (s *session) end(element xml.EndElement) error {
	if s.field == nil || element.Name.Local != s.field.name {
		return nil
	}

	field := s.field
	s.field = nil

	value, err := DecodeValue(field.code, s.text.String())
	s.text.Reset()
	if err != nil {
		return fmt.Errorf("field %q: %w", field.name, err)
	}

	switch s.state {
	case stateInRide:
		s.ride.Set(field.name, value)
	case stateInLog:
		s.pendingLog.Set(field.name, value)
	}
	return nil
}

// finalizeLog hands the pending log to the batch writer. Progress is
// reported every progressInterval logs, and always for the final log.
func (s *session) finalizeLog(final bool) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	record := LogRecord{Fields: s.pendingLog, RideID: s.result.RideID}
	if err := s.logs.Append(s.ctx, record); err != nil {
		return err
	}
	s.pendingLog = nil
	s.result.LogsImported++

	index := s.result.LogsImported
	if final || index%progressInterval == 0 {
		s.listener.OnLogImported(index, s.result.LogCount)
	}
	return nil
}

func (s *session) finish() error {
	if s.state == stateInRide {
		s.log.Warn("Ride has no logs marker, it was not written", "logCount", s.result.LogCount)
	}

	if s.pendingLog != nil {
		if err := s.finalizeLog(true); err != nil {
			return err
		}
	}

	return s.logs.Flush(s.ctx)
}

func parseLogCount(element xml.StartElement) (int64, error) {
	raw, ok := attr(element, attrLogCount)
	if !ok {
		return -1, nil
	}
	count, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return -1, fmt.Errorf("%w: invalid logCount %q", ErrValueDecode, raw)
	}
	return count, nil
}

func attr(element xml.StartElement, name string) (string, bool) {
	for _, a := range element.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func readError(err error) error {
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return fmt.Errorf("%w: %w", ErrRead, err)
}
