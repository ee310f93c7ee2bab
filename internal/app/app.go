// Package app assembles the export pipeline shared by the CLI, the
// interactive prompt, and the library entry point: record the option set in
// history, authorize, build the traversal session, walk, and summarize.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gslide2media/gslide2media/internal/drive"
	"github.com/gslide2media/gslide2media/internal/export"
	"github.com/gslide2media/gslide2media/internal/google"
	"github.com/gslide2media/gslide2media/internal/meta"
	"github.com/gslide2media/gslide2media/internal/options"
	"github.com/gslide2media/gslide2media/internal/ratelimit"
	"github.com/gslide2media/gslide2media/internal/retry"
)

// Configuration errors surfaced before any remote call is made.
var (
	ErrNoSources        = errors.New("no presentations or folders selected")
	ErrNoFormats        = errors.New("no export formats selected")
	ErrDurationConflict = errors.New("per-slide and total mp4 durations are mutually exclusive")
)

// Config holds pipeline configuration. The zero values of the collaborator
// fields mean "use the real thing"; tests inject fakes.
type Config struct {
	Store  *meta.Store
	Logger *slog.Logger
	// Notify presents the OAuth consent URL to the user.
	Notify func(authURL string)

	Lister     drive.Lister
	Exporter   export.Exporter
	Transcoder export.Transcoder
	Sink       export.Sink
}

// Validate checks an option set for configuration errors.
func Validate(o *options.Options) error {
	if len(o.PresentationIDs) == 0 && len(o.FolderIDs) == 0 && len(o.Custom) == 0 {
		return ErrNoSources
	}
	if len(o.Formats) == 0 {
		return ErrNoFormats
	}
	if o.MP4SlideDurationSecs != options.DefaultSlideDuration &&
		o.MP4SlideDurationSecs != 0 && o.MP4TotalDurationSecs != 0 {
		return ErrDurationConflict
	}
	if o.JPEGQuality < 0 || o.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality %d outside 0-100", o.JPEGQuality)
	}
	return nil
}

// Run executes one export invocation: validates and normalizes the option
// set, records it in history, and walks the selected sources.
func Run(ctx context.Context, cfg Config, opts *options.Options) (*export.Summary, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if err := Validate(opts); err != nil {
		return nil, err
	}
	if err := opts.Normalize(); err != nil {
		return nil, err
	}
	if cfg.Store != nil {
		if err := cfg.Store.Add(opts); err != nil {
			return nil, fmt.Errorf("recording option set: %w", err)
		}
	}

	lister, exporter, err := resolveRemote(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cache := drive.NewCache(drive.Config{Lister: lister, Logger: cfg.Logger})
	members := drive.BatchMembers{
		FolderIDs:       opts.FolderIDs,
		PresentationIDs: opts.PresentationIDs,
	}
	for _, custom := range opts.Custom {
		members.Presentations = append(members.Presentations,
			cache.CustomPresentation(custom.PresentationID, custom.SlideIDs))
	}
	batch, err := cache.Batch(ctx, members)
	if err != nil {
		return nil, err
	}

	transcoder := cfg.Transcoder
	if transcoder == nil {
		transcoder = export.CommandTranscoder{}
	}
	sink := cfg.Sink
	if sink == nil {
		sink = export.OSSink{}
	}

	walker := export.NewWalker(export.Config{
		Cache:      cache,
		Exporter:   exporter,
		Transcoder: transcoder,
		Sink:       sink,
		Logger:     cfg.Logger,
	}, opts)

	summary, err := walker.Run(ctx, batch)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Info("export finished",
		slog.Int("written", summary.Written),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", len(summary.Failures)),
	)
	return summary, nil
}

// resolveRemote returns the injected remote collaborators, or builds the
// real authorized client when none are supplied.
func resolveRemote(ctx context.Context, cfg Config) (drive.Lister, export.Exporter, error) {
	if cfg.Lister != nil && cfg.Exporter != nil {
		return cfg.Lister, cfg.Exporter, nil
	}
	if cfg.Store == nil {
		return nil, nil, errors.New("no metadata store and no remote collaborators supplied")
	}

	authorizer, err := google.NewAuthorizer(google.AuthConfig{
		Store:  cfg.Store,
		Notify: cfg.Notify,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, nil, err
	}
	tokenSource, err := authorizer.TokenSource(ctx)
	if err != nil {
		return nil, nil, err
	}

	client, err := google.NewClient(ctx, google.Config{
		TokenSource: tokenSource,
		Retryer:     retry.New(retry.Config{Logger: cfg.Logger}),
		Quota:       ratelimit.New(ratelimit.Config{Logger: cfg.Logger}),
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}
