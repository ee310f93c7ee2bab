package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityLabeled(t *testing.T) {
	a := New()
	a.PresentationIDs = []string{"P1"}
	a.SetLabel("work")

	b := New()
	b.FolderIDs = []string{"F9"}
	b.DPI = 300
	b.SetLabel("work")

	// Same non-empty label is the whole identity, other fields irrelevant.
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Identity(), b.Identity())
	assert.True(t, a.Identity().Named)
}

func TestIdentityLabelWhitespaceIsUnlabeled(t *testing.T) {
	a := New()
	a.Label = "   "
	assert.False(t, a.Named())
	assert.False(t, a.Identity().Named)
}

func TestIdentityStructural(t *testing.T) {
	a := New()
	a.PresentationIDs = []string{"P1"}
	a.Formats = []ExportFormat{FormatPNG}
	a.DownloadDirectory = "/tmp/out"

	b := New()
	b.PresentationIDs = []string{"P1"}
	b.Formats = []ExportFormat{FormatPNG}
	b.DownloadDirectory = "/tmp/out"

	// Identical structural fields collapse to one identity.
	assert.True(t, a.Equal(b))

	// Excluded bookkeeping fields do not affect identity.
	b.MarkTime(TimeLastUsed)
	b.Source = SourceAPI
	assert.True(t, a.Equal(b))

	// Any included field change breaks equality.
	b.DPI = 150
	assert.False(t, a.Equal(b))
}

func TestIdentityIgnoresSliceConstruction(t *testing.T) {
	a := New()
	a.PresentationIDs = []string{"P1"}
	a.Formats = []ExportFormat{FormatSVG}
	a.DownloadDirectory = "/tmp/out"

	b := New()
	b.PresentationIDs = []string{"P1"}
	b.Formats = []ExportFormat{FormatSVG}
	b.DownloadDirectory = "/tmp/out"
	b.FolderIDs = []string{}
	b.Custom = []CustomPresentation{}

	// Nil and empty selector slices are the same absence of a selection.
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Identity(), b.Identity())
}

func TestLabelWinsOverStructuralDifference(t *testing.T) {
	a := New()
	a.DPI = 100
	b := New()
	b.DPI = 200
	assert.False(t, a.Equal(b))

	a.SetLabel("deck")
	b.SetLabel("deck")
	assert.True(t, a.Equal(b))
}

func TestNormalize(t *testing.T) {
	o := New()
	require.NoError(t, o.Normalize())
	assert.NotZero(t, o.Created)
	assert.NotZero(t, o.Modified)
	assert.NotZero(t, o.LastUsed)
	assert.NotEmpty(t, o.DownloadDirectory)

	// Explicit directory survives normalization.
	o2 := New()
	o2.DownloadDirectory = "/tmp/exports"
	require.NoError(t, o2.Normalize())
	assert.Equal(t, "/tmp/exports", o2.DownloadDirectory)
}

func TestIsDefault(t *testing.T) {
	o := New()
	require.NoError(t, o.Normalize())
	assert.True(t, o.IsDefault())

	o.PresentationIDs = []string{"P1"}
	assert.False(t, o.IsDefault())

	named := New()
	require.NoError(t, named.Normalize())
	named.SetLabel("kept")
	assert.False(t, named.IsDefault())
}

func TestCloneIsDeep(t *testing.T) {
	o := New()
	o.PresentationIDs = []string{"P1"}
	o.Custom = []CustomPresentation{{PresentationID: "P2", SlideIDs: []string{"s1"}}}

	c := o.Clone()
	c.PresentationIDs[0] = "changed"
	c.Custom[0].SlideIDs[0] = "changed"

	assert.Equal(t, "P1", o.PresentationIDs[0])
	assert.Equal(t, "s1", o.Custom[0].SlideIDs[0])
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    ExportFormat
		wantErr bool
	}{
		{"svg", FormatSVG, false},
		{"PNG", FormatPNG, false},
		{"jpg", FormatJPEG, false},
		{" pdf ", FormatPDF, false},
		{"mp4", FormatMP4, false},
		{"gif", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownFormat, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestFormatKind(t *testing.T) {
	assert.Equal(t, KindImage, FormatSVG.Kind())
	assert.Equal(t, KindImage, FormatJPEG.Kind())
	assert.Equal(t, KindDocument, FormatPPTX.Kind())
	assert.Equal(t, KindData, FormatJSON.Kind())
	assert.Equal(t, KindVideo, FormatMP4.Kind())
}

func TestParseFormatsDeduplicates(t *testing.T) {
	got, err := ParseFormats([]string{"png", "png", "svg"})
	require.NoError(t, err)
	assert.Equal(t, []ExportFormat{FormatPNG, FormatSVG}, got)
}
