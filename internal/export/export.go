// Package export walks a Drive folder tree and materializes presentations
// into the requested on-disk artifacts: whole-presentation documents,
// per-slide images, structural JSON, and MP4 slideshows.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gslide2media/gslide2media/internal/options"
)

// Exporter fetches exported bytes for a presentation or a single slide in
// a given format.
type Exporter interface {
	ExportPresentation(ctx context.Context, presentationID string, format options.ExportFormat) ([]byte, error)
	ExportSlide(ctx context.Context, presentationID, slideID string, format options.ExportFormat) ([]byte, error)
}

// Transcoder converts between media encodings. Implementations wrap external
// codec tooling; the walker only depends on this contract.
type Transcoder interface {
	SVGToPNG(svg []byte, dpi int) ([]byte, error)
	PNGToJPEG(png []byte, quality int) ([]byte, error)
	FramesToMP4(frames [][]byte, fps int) ([]byte, error)
}

// Sink writes finished artifacts. Paths are relative to nothing: they arrive
// fully resolved.
type Sink interface {
	Write(path string, data []byte) error
}

// OSSink writes artifacts to the local filesystem, creating parent
// directories as needed.
type OSSink struct{}

// Write stores data at path, creating missing parent directories.
func (OSSink) Write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: creating output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: writing %s: %w", path, err)
	}
	return nil
}
