package services

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bikey/internal/logger"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// DocumentExtensions lists the file names the inbox picks up.
var DocumentExtensions = []string{".xml", ".xml.gz", ".xml.zst"}

func IsDocumentFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range DocumentExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func compressionFromName(name string) Compression {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

func compressionFromMagic(header []byte) Compression {
	switch {
	case bytes.HasPrefix(header, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(header, gzipMagic):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

type documentReader struct {
	io.Reader
	closers []func() error
}

func (d *documentReader) Close() error {
	var first error
	for _, closeFn := range d.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenDocument opens a ride document on disk, decompressing gzip or zstd
// input detected from the file suffix or the leading magic bytes.
func OpenDocument(path string) (io.ReadCloser, error) {
	log := logger.New("services").File("document").Function("OpenDocument")

	file, err := os.Open(path)
	if err != nil {
		return nil, log.Err("failed to open document", err, "path", path)
	}

	reader, err := decompress(file, compressionFromName(path))
	if err != nil {
		_ = file.Close()
		return nil, log.Err("failed to open compressed document", err, "path", path)
	}
	reader.closers = append(reader.closers, file.Close)
	return reader, nil
}

// NewDocumentReader wraps an uploaded stream, detecting compression from the
// magic bytes only.
func NewDocumentReader(r io.Reader) (io.ReadCloser, error) {
	reader, err := decompress(r, CompressionNone)
	if err != nil {
		return nil, logger.New("services").File("document").Function("NewDocumentReader").
			Err("failed to open compressed document", err)
	}
	return reader, nil
}

func decompress(r io.Reader, hint Compression) (*documentReader, error) {
	buffered := bufio.NewReader(r)

	compression := hint
	if compression == CompressionNone {
		header, _ := buffered.Peek(len(zstdMagic))
		compression = compressionFromMagic(header)
	}

	switch compression {
	case CompressionGzip:
		gz, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, err
		}
		return &documentReader{Reader: gz, closers: []func() error{gz.Close}}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(buffered)
		if err != nil {
			return nil, err
		}
		return &documentReader{Reader: zr, closers: []func() error{
			func() error { zr.Close(); return nil },
		}}, nil
	default:
		return &documentReader{Reader: buffered}, nil
	}
}
