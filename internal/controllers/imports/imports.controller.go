package importsController

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"bikey/internal/imports"
	"bikey/internal/logger"
	. "bikey/internal/models"
	"bikey/internal/repositories"
	"bikey/internal/services"
)

var ErrEmptyUpload = errors.New("document is empty")

type ImportsController struct {
	importService *services.RideImportService
	importRunRepo repositories.ImportRunRepository
	log           logger.Logger
}

type ImportsControllerInterface interface {
	ImportDocument(ctx context.Context, filename string, body io.Reader) (*services.ImportOutcome, error)
	ListRecent(ctx context.Context, limit int) ([]*ImportRun, error)
}

func New(repos repositories.Repository, services services.Service) ImportsControllerInterface {
	return &ImportsController{
		importService: services.RideImport,
		importRunRepo: repos.ImportRun,
		log:           logger.New("importsController"),
	}
}

// ImportDocument imports an uploaded document. Compressed uploads are
// recognised by their leading bytes.
func (ic *ImportsController) ImportDocument(
	ctx context.Context,
	filename string,
	body io.Reader,
) (*services.ImportOutcome, error) {
	log := ic.log.TraceFromContext(ctx).Function("ImportDocument")

	if body == nil {
		return nil, ErrEmptyUpload
	}

	reader, err := services.NewDocumentReader(body)
	if err != nil {
		log.Warn("failed to open uploaded document", "filename", filename, "error", err)
		return nil, fmt.Errorf("%w: %v", imports.ErrRead, err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.Warn("failed to close uploaded document", "error", err)
		}
	}()

	source := "upload"
	if filename != "" {
		source = "upload:" + filepath.Base(filename)
	}

	return ic.importService.Import(ctx, source, reader, nil)
}

func (ic *ImportsController) ListRecent(ctx context.Context, limit int) ([]*ImportRun, error) {
	return ic.importRunRepo.ListRecent(ctx, limit)
}

// IsDocumentError reports whether err was caused by the document itself
// rather than by the store or the server.
func IsDocumentError(err error) bool {
	return errors.Is(err, imports.ErrFormat) ||
		errors.Is(err, imports.ErrValueDecode) ||
		errors.Is(err, imports.ErrRead) ||
		errors.Is(err, ErrEmptyUpload)
}
