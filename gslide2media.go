// Package gslide2media is the library entry point: it exports Google Slides
// presentations to images, documents, structural JSON, and MP4 slideshows,
// recording each invocation in the same encrypted history the CLI uses.
package gslide2media

import (
	"context"
	"log/slog"

	"github.com/gslide2media/gslide2media/internal/app"
	"github.com/gslide2media/gslide2media/internal/meta"
	"github.com/gslide2media/gslide2media/internal/options"
)

// CustomPresentation selects explicit slides of one presentation, exported
// in the given order.
type CustomPresentation struct {
	PresentationID string
	SlideIDs       []string
}

// Request describes one export invocation.
type Request struct {
	PresentationIDs []string
	FolderIDs       []string
	Custom          []CustomPresentation

	// Formats names the artifacts to produce: svg, png, jpeg, pptx, pdf,
	// txt, odp, json, mp4.
	Formats []string

	DPI         int
	JPEGQuality int

	FPS                  int
	MP4SlideDurationSecs int
	MP4TotalDurationSecs int

	// DownloadDirectory defaults to the working directory.
	DownloadDirectory string
	// Label names this option set in history.
	Label string

	MaxWalkDepth int
	Workers      int

	// StoreDir overrides the metadata store location (default: home).
	StoreDir string
	// Notify presents the OAuth consent URL when authorization is needed.
	Notify func(authURL string)
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Failure reports one presentation that could not be exported.
type Failure struct {
	PresentationID string
	Name           string
	Err            error
}

// Result summarizes one export run.
type Result struct {
	Written  int
	Skipped  int
	Failures []Failure
}

// Export runs one export invocation end to end.
func Export(ctx context.Context, req Request) (*Result, error) {
	formats, err := options.ParseFormats(req.Formats)
	if err != nil {
		return nil, err
	}
	if req.MP4SlideDurationSecs != 0 && req.MP4TotalDurationSecs != 0 {
		return nil, app.ErrDurationConflict
	}

	opts := options.New()
	opts.PresentationIDs = req.PresentationIDs
	opts.FolderIDs = req.FolderIDs
	for _, c := range req.Custom {
		opts.Custom = append(opts.Custom, options.CustomPresentation{
			PresentationID: c.PresentationID,
			SlideIDs:       c.SlideIDs,
		})
	}
	opts.Formats = formats
	if req.DPI != 0 {
		opts.DPI = req.DPI
	}
	if req.JPEGQuality != 0 {
		opts.JPEGQuality = req.JPEGQuality
	}
	if req.FPS != 0 {
		opts.FPS = req.FPS
	}
	if req.MP4SlideDurationSecs != 0 {
		opts.MP4SlideDurationSecs = req.MP4SlideDurationSecs
	}
	if req.MP4TotalDurationSecs != 0 {
		opts.MP4SlideDurationSecs = 0
		opts.MP4TotalDurationSecs = req.MP4TotalDurationSecs
	}
	opts.DownloadDirectory = req.DownloadDirectory
	if req.MaxWalkDepth != 0 {
		opts.MaxWalkDepth = req.MaxWalkDepth
	}
	if req.Workers != 0 {
		opts.Workers = req.Workers
	}
	opts.Source = options.SourceAPI
	if req.Label != "" {
		opts.SetLabel(req.Label)
	}

	store, err := meta.Open(meta.Config{Dir: req.StoreDir, Logger: req.Logger})
	if err != nil {
		return nil, err
	}

	summary, err := app.Run(ctx, app.Config{
		Store:  store,
		Logger: req.Logger,
		Notify: req.Notify,
	}, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{Written: summary.Written, Skipped: summary.Skipped}
	for _, f := range summary.Failures {
		result.Failures = append(result.Failures, Failure{
			PresentationID: f.PresentationID,
			Name:           f.Path,
			Err:            f.Err,
		})
	}
	return result, nil
}
