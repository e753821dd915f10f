package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bikey/internal/app"
	"bikey/internal/imports"
	"bikey/internal/logger"
)

// progressPrinter writes one line per progress callback to stdout.
type progressPrinter struct {
	path string
}

func (p progressPrinter) OnImportStarted() {
	fmt.Printf("%s: importing\n", p.path)
}

func (p progressPrinter) OnLogImported(index, total int64) {
	if total < 0 {
		fmt.Printf("%s: %d logs\n", p.path, index)
		return
	}
	fmt.Printf("%s: %d/%d logs\n", p.path, index, total)
}

func (p progressPrinter) OnImportFinished(status imports.ImportStatus) {
	fmt.Printf("%s: %s\n", p.path, status)
}

func main() {
	log := logger.New("import").Function("main")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: import <ride.xml[.gz|.zst]>...")
		os.Exit(2)
	}

	app, err := app.New()
	if err != nil {
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Er("failed to close app", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, path := range os.Args[1:] {
		if ctx.Err() != nil {
			break
		}

		outcome, err := app.Services.RideImport.ImportFile(ctx, path, progressPrinter{path: path})
		if err != nil {
			failed++
			log.Er("import failed", err, "path", path)
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}

		result := outcome.Result
		if result.VersionMismatch {
			fmt.Printf("%s: warning, document version %q differs from %q\n",
				path, result.Version, imports.DocumentVersion)
		}
		fmt.Printf("%s: ride %d, %d logs (run %s)\n",
			path, result.RideID, result.LogsImported, outcome.Run.ID)
	}

	if failed > 0 || ctx.Err() != nil {
		stop()
		_ = app.Close()
		os.Exit(1)
	}
}
