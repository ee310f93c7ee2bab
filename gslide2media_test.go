package gslide2media

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gslide2media/gslide2media/internal/app"
	"github.com/gslide2media/gslide2media/internal/options"
)

func TestExportRejectsConflictingDurations(t *testing.T) {
	_, err := Export(context.Background(), Request{
		PresentationIDs:      []string{"P1"},
		Formats:              []string{"mp4"},
		MP4SlideDurationSecs: 5,
		MP4TotalDurationSecs: 60,
		StoreDir:             t.TempDir(),
	})
	assert.ErrorIs(t, err, app.ErrDurationConflict)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	_, err := Export(context.Background(), Request{
		PresentationIDs: []string{"P1"},
		Formats:         []string{"gif"},
		StoreDir:        t.TempDir(),
	})
	assert.ErrorIs(t, err, options.ErrUnknownFormat)
}
