package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"bikey/config"
	"bikey/internal/logger"
)

const (
	INBOX_DONE_DIR   = "done"
	INBOX_FAILED_DIR = "failed"
	INBOX_RETENTION  = 30 * 24 * time.Hour
)

type InboxFile struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// InboxReport summarizes one pass over the inbox directory.
type InboxReport struct {
	Imported []string `json:"imported"`
	Failed   []string `json:"failed"`
	Skipped  []string `json:"skipped"`
}

// InboxService imports documents dropped into IMPORT_INBOX_DIR. Processed
// files are moved to done/ or failed/ so a file is never imported twice.
type InboxService struct {
	dir      string
	importer *RideImportService
	log      logger.Logger
}

func NewInboxService(config config.Config, importer *RideImportService) *InboxService {
	return &InboxService{
		dir:      config.ImportInboxDir,
		importer: importer,
		log:      logger.New("inboxService"),
	}
}

func (s *InboxService) Enabled() bool {
	return s.dir != ""
}

// ListPending returns the documents waiting in the inbox, oldest first.
func (s *InboxService) ListPending(ctx context.Context) ([]InboxFile, error) {
	log := s.log.Function("ListPending")

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info("Inbox directory does not exist", "directory", s.dir)
			return []InboxFile{}, nil
		}
		return nil, log.Err("failed to read inbox directory", err, "directory", s.dir)
	}

	files := make([]InboxFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsDocumentFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, InboxFile{
			Name:       entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModifiedAt.Equal(files[j].ModifiedAt) {
			return files[i].Name < files[j].Name
		}
		return files[i].ModifiedAt.Before(files[j].ModifiedAt)
	})

	return files, nil
}

// ProcessPending imports every pending document one at a time. A file is left
// in place when another import is running or ctx is cancelled.
func (s *InboxService) ProcessPending(ctx context.Context) (InboxReport, error) {
	log := s.log.TraceFromContext(ctx).Function("ProcessPending")

	report := InboxReport{}
	if !s.Enabled() {
		return report, nil
	}

	files, err := s.ListPending(ctx)
	if err != nil {
		return report, err
	}

	for i, file := range files {
		if ctx.Err() != nil {
			for _, rest := range files[i:] {
				report.Skipped = append(report.Skipped, rest.Name)
			}
			break
		}

		path := filepath.Join(s.dir, file.Name)
		_, importErr := s.importer.ImportFile(ctx, path, nil)

		switch {
		case errors.Is(importErr, ErrImportInProgress):
			report.Skipped = append(report.Skipped, file.Name)
			continue
		case importErr != nil && interrupted(ctx, importErr):
			log.Info("Inbox import interrupted, retrying on the next pass", "file", file.Name)
			report.Skipped = append(report.Skipped, file.Name)
			continue
		case importErr != nil:
			log.Warn("Inbox document failed", "file", file.Name, "error", importErr)
			report.Failed = append(report.Failed, file.Name)
			err = s.move(path, INBOX_FAILED_DIR)
		default:
			report.Imported = append(report.Imported, file.Name)
			err = s.move(path, INBOX_DONE_DIR)
		}
		if err != nil {
			return report, log.Err("failed to move inbox document", err, "file", file.Name)
		}
	}

	if len(files) > 0 {
		log.Info("Inbox processed",
			"imported", len(report.Imported),
			"failed", len(report.Failed),
			"skipped", len(report.Skipped),
		)
	}
	return report, nil
}

func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (s *InboxService) move(path, subdir string) error {
	target := filepath.Join(s.dir, subdir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}

	name := filepath.Base(path)
	dest := filepath.Join(target, name)
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(target, fmt.Sprintf("%s.%d", name, time.Now().UnixNano()))
	}
	return os.Rename(path, dest)
}

// CleanupProcessed removes files in done/ last modified before the
// retention window. Failed documents are kept for inspection.
func (s *InboxService) CleanupProcessed(ctx context.Context, retention time.Duration) (int, error) {
	log := s.log.Function("CleanupProcessed")

	if !s.Enabled() {
		return 0, nil
	}

	doneDir := filepath.Join(s.dir, INBOX_DONE_DIR)
	entries, err := os.ReadDir(doneDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, log.Err("failed to read done directory", err, "directory", doneDir)
	}

	cutoff := time.Now().Add(-retention)
	var errs []error
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(doneDir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if len(errs) > 0 {
		return removed, log.Err("failed to remove some processed documents", errs[0], "errorCount", len(errs))
	}

	log.Info("Cleaned up processed documents", "directory", doneDir, "removed", removed)
	return removed, nil
}
