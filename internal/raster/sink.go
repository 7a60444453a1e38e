package raster

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
)

// ErrWrite wraps failures of the output sink.
var ErrWrite = errors.New("raster write failed")

// Sink receives one encoded raster.
// Implementations must not leave partial output behind when encode or the write fails.
type Sink interface {
	WriteRaster(encode func(io.Writer) (int64, error)) (int64, error)
}

// FileSink writes to a path. Data goes to a temporary file next to the target,
// which replaces the target only after a complete write.
type FileSink string

// WriteRaster implements Sink.
func (s FileSink) WriteRaster(encode func(io.Writer) (int64, error)) (int64, error) {
	path := string(s)

	pf, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithPermissions(0644),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	// no-op once the file replaced the target
	defer func() {
		if cleanupErr := pf.Cleanup(); cleanupErr != nil {
			log.Error().Err(cleanupErr).Str("path", pf.Name()).Msg("Failed to remove temporary file")
		}
	}()

	n, err := encode(pf)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return n, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	return n, nil
}

// WriterSink streams the raster into an io.Writer, e.g. stdout.
// Partial output cannot be retracted; callers own cleanup of the writer.
type WriterSink struct {
	W io.Writer
}

// WriteRaster implements Sink.
func (s WriterSink) WriteRaster(encode func(io.Writer) (int64, error)) (int64, error) {
	n, err := encode(s.W)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	return n, nil
}

// WriteFile encodes img as a GeoTIFF at path through a FileSink.
func WriteFile(path string, img *RGB, ref Georef) (int64, error) {
	return FileSink(path).WriteRaster(func(w io.Writer) (int64, error) {
		return Encode(w, img, ref)
	})
}
