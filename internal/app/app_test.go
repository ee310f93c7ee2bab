package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gslide2media/gslide2media/internal/drive"
	"github.com/gslide2media/gslide2media/internal/meta"
	"github.com/gslide2media/gslide2media/internal/options"
)

type stubLister struct {
	structures map[string]*drive.Structure
}

func (s *stubLister) ChildFolders(context.Context, string) ([]drive.Item, error)       { return nil, nil }
func (s *stubLister) ChildPresentations(context.Context, string) ([]drive.Item, error) { return nil, nil }
func (s *stubLister) RootFolders(context.Context) ([]drive.Item, error)                { return nil, nil }
func (s *stubLister) RootPresentations(context.Context) ([]drive.Item, error)          { return nil, nil }
func (s *stubLister) SharedFolders(context.Context) ([]drive.Item, error)              { return nil, nil }
func (s *stubLister) SharedPresentations(context.Context) ([]drive.Item, error)        { return nil, nil }
func (s *stubLister) Parent(context.Context, string) (string, error)                   { return "", nil }
func (s *stubLister) FolderName(_ context.Context, id string) (string, error) {
	return "", fmt.Errorf("folder %s not found", id)
}

func (s *stubLister) PresentationStructure(_ context.Context, id string) (*drive.Structure, error) {
	st, ok := s.structures[id]
	if !ok {
		return nil, fmt.Errorf("presentation %s not found", id)
	}
	return st, nil
}

type stubExporter struct{}

func (stubExporter) ExportPresentation(_ context.Context, id string, f options.ExportFormat) ([]byte, error) {
	return []byte(string(f) + ":" + id), nil
}

func (stubExporter) ExportSlide(_ context.Context, id, slideID string, f options.ExportFormat) ([]byte, error) {
	return []byte(string(f) + ":" + id + ":" + slideID), nil
}

type recordingSink struct {
	mu    sync.Mutex
	paths []string
}

func (s *recordingSink) Write(path string, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestValidate(t *testing.T) {
	base := func() *options.Options {
		o := options.New()
		o.PresentationIDs = []string{"P1"}
		o.Formats = []options.ExportFormat{options.FormatSVG}
		return o
	}

	t.Run("ok", func(t *testing.T) {
		assert.NoError(t, Validate(base()))
	})

	t.Run("no sources", func(t *testing.T) {
		o := base()
		o.PresentationIDs = nil
		assert.ErrorIs(t, Validate(o), ErrNoSources)
	})

	t.Run("no formats", func(t *testing.T) {
		o := base()
		o.Formats = nil
		assert.ErrorIs(t, Validate(o), ErrNoFormats)
	})

	t.Run("conflicting durations", func(t *testing.T) {
		o := base()
		o.MP4SlideDurationSecs = 5
		o.MP4TotalDurationSecs = 60
		assert.ErrorIs(t, Validate(o), ErrDurationConflict)
	})

	t.Run("total duration alone is fine", func(t *testing.T) {
		o := base()
		o.MP4TotalDurationSecs = 60
		assert.NoError(t, Validate(o))
	})

	t.Run("bad jpeg quality", func(t *testing.T) {
		o := base()
		o.JPEGQuality = 200
		assert.Error(t, Validate(o))
	})
}

func TestRunExportsAndRecordsHistory(t *testing.T) {
	store, err := meta.Open(meta.Config{Dir: t.TempDir(), Logger: testLogger()})
	require.NoError(t, err)

	lister := &stubLister{structures: map[string]*drive.Structure{
		"P1": {
			Title: "Deck",
			Raw:   json.RawMessage(`{}`),
			Slides: []drive.StructureSlide{
				{ObjectID: "s1", Raw: json.RawMessage(`{"objectId":"s1"}`)},
			},
		},
	}}
	sink := &recordingSink{}

	opts := options.New()
	opts.PresentationIDs = []string{"P1"}
	opts.Formats = []options.ExportFormat{options.FormatSVG}
	opts.DownloadDirectory = "/out"
	opts.Source = options.SourceAPI

	summary, err := Run(context.Background(), Config{
		Store:    store,
		Logger:   testLogger(),
		Lister:   lister,
		Exporter: stubExporter{},
		Sink:     sink,
	}, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Written)
	assert.False(t, summary.Failed())

	// Bare presentation ids land under the batch segment.
	want := filepath.Join("/out", "presentations", drive.BatchPathSegment, "Deck", "Deck_slide_01_s1.svg")
	require.Len(t, sink.paths, 1)
	assert.Equal(t, want, sink.paths[0])

	// The invocation was recorded.
	history := store.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].Equal(opts))
}

func TestRunRejectsInvalidOptions(t *testing.T) {
	opts := options.New()
	opts.Formats = []options.ExportFormat{options.FormatSVG}

	_, err := Run(context.Background(), Config{
		Logger:   testLogger(),
		Lister:   &stubLister{},
		Exporter: stubExporter{},
		Sink:     &recordingSink{},
	}, opts)
	assert.ErrorIs(t, err, ErrNoSources)
}
