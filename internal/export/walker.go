package export

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gslide2media/gslide2media/internal/drive"
	"github.com/gslide2media/gslide2media/internal/options"
)

// Config holds walker configuration.
type Config struct {
	Cache      *drive.Cache
	Exporter   Exporter
	Transcoder Transcoder
	Sink       Sink
	Logger     *slog.Logger
}

// Failure records one presentation that could not be materialized. Other
// presentations in the same run are unaffected.
type Failure struct {
	PresentationID string
	Path           string
	Err            error
}

// Summary is the outcome of one walk.
type Summary struct {
	Written  int
	Skipped  int
	Failures []Failure
}

// Failed reports whether any presentation failed.
func (s *Summary) Failed() bool { return len(s.Failures) > 0 }

// Walker traverses a folder tree depth-first and materializes every
// presentation it reaches. Presentations run concurrently, bounded by the
// worker limit; each one is isolated, so a failing leaf aborts only its own
// presentation and shows up in the summary.
type Walker struct {
	cfg  Config
	opts *options.Options

	group *errgroup.Group

	mu       sync.Mutex
	written  map[string]bool
	failures []Failure
	nwritten int
	nskipped int
}

// NewWalker creates a walker for one run over the given configuration set.
func NewWalker(cfg Config, opts *options.Options) *Walker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Walker{
		cfg:     cfg,
		opts:    opts,
		written: make(map[string]bool),
	}
}

// Run walks the tree rooted at folder and blocks until every scheduled
// materialization completes. The returned error is non-nil only for
// cancellation or a walk-level failure; per-presentation failures are
// reported in the summary.
func (w *Walker) Run(ctx context.Context, folder *drive.FolderNode) (*Summary, error) {
	workers := w.opts.Workers
	if workers <= 0 {
		workers = options.DefaultWorkers
	}
	maxDepth := w.opts.MaxWalkDepth
	if maxDepth <= 0 {
		maxDepth = options.DefaultMaxWalkDepth
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	w.group = group

	walkErr := w.walk(gctx, folder, 0, maxDepth)
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return &Summary{
		Written:  w.nwritten,
		Skipped:  w.nskipped,
		Failures: append([]Failure(nil), w.failures...),
	}, nil
}

// walk visits a folder: its presentations first, then its sub-folders one
// level deeper. Each presentation is scheduled on the bounded group.
func (w *Walker) walk(ctx context.Context, folder *drive.FolderNode, depth, maxDepth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	presentations, err := folder.Presentations(ctx)
	if err != nil {
		return fmt.Errorf("export: listing presentations of folder %s: %w", folder.ID, err)
	}
	for _, p := range presentations {
		p := p
		w.group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := w.materialize(ctx, p); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.recordFailure(ctx, p, err)
			}
			return nil
		})
	}

	if depth >= maxDepth {
		w.cfg.Logger.Warn("walk depth limit reached, not recursing",
			slog.String("folder_id", folder.ID),
			slog.Int("depth", depth),
		)
		return nil
	}

	subFolders, err := folder.Folders(ctx)
	if err != nil {
		return fmt.Errorf("export: listing sub-folders of folder %s: %w", folder.ID, err)
	}
	// The batch aggregate is not a real tree level; its explicit members each
	// start at the top of their own sub-tree.
	nextDepth := depth + 1
	if folder.IsBatch() {
		nextDepth = depth
	}
	for _, sub := range subFolders {
		if err := w.walk(ctx, sub, nextDepth, maxDepth); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) recordFailure(ctx context.Context, p *drive.PresentationNode, err error) {
	name, _ := p.Name(ctx)
	w.cfg.Logger.Error("presentation export failed",
		slog.String("presentation_id", p.ID),
		slog.String("name", name),
		slog.String("error", err.Error()),
	)
	w.mu.Lock()
	w.failures = append(w.failures, Failure{PresentationID: p.ID, Path: name, Err: err})
	w.mu.Unlock()
}

// claimPath reserves an output path for this run. Overlapping sources (a
// folder given twice, a presentation also reachable through a folder) land on
// the same resolved path, and each path is written at most once.
func (w *Walker) claimPath(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.written[path] {
		w.nskipped++
		return false
	}
	w.written[path] = true
	return true
}

func (w *Walker) countWritten() {
	w.mu.Lock()
	w.nwritten++
	w.mu.Unlock()
}
