// Package options defines the export option set: the record of every
// user-chosen parameter for one invocation, with a content-addressed
// identity used to deduplicate the persisted history.
package options

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Source records how an option set entered the system.
type Source string

const (
	SourceDefault     Source = "default"
	SourceCLI         Source = "cli"
	SourceInteractive Source = "interactive"
	SourceAPI         Source = "api"
)

// TimeKind selects which timestamp MarkTime updates.
type TimeKind int

const (
	TimeCreate TimeKind = iota
	TimeModify
	TimeLastUsed
)

// CustomPresentation is an ad hoc presentation built from explicit slide
// references, exported through a batch folder rather than a real Drive parent.
type CustomPresentation struct {
	PresentationID string   `json:"presentation_id"`
	SlideIDs       []string `json:"slide_ids,omitempty"`
}

// Options is one export configuration. Timestamps and Source are bookkeeping:
// they never participate in identity, so two separately constructed but
// semantically identical unlabeled sets collapse to one history entry.
type Options struct {
	PresentationIDs []string             `json:"presentation_ids,omitempty"`
	FolderIDs       []string             `json:"folder_ids,omitempty"`
	Custom          []CustomPresentation `json:"custom,omitempty"`

	Formats      []ExportFormat `json:"formats,omitempty"`
	DPI          int            `json:"dpi,omitempty"`
	JPEGQuality  int            `json:"jpeg_quality,omitempty"`
	ScreenWidth  int            `json:"screen_width,omitempty"`
	ScreenHeight int            `json:"screen_height,omitempty"`
	AspectRatio  string         `json:"aspect_ratio,omitempty"`

	FPS                  int `json:"fps,omitempty"`
	MP4SlideDurationSecs int `json:"mp4_slide_duration_secs,omitempty"`
	MP4TotalDurationSecs int `json:"mp4_total_duration_secs,omitempty"`

	DownloadDirectory string `json:"download_directory,omitempty"`
	MaxWalkDepth      int    `json:"max_walk_depth,omitempty"`
	Workers           int    `json:"workers,omitempty"`

	// Label names the set. A non-empty label is the whole identity.
	// The canonical "unlabeled" sentinel is the empty string.
	Label string `json:"label,omitempty"`

	Created  int64  `json:"created_utc,omitempty"`
	Modified int64  `json:"modified_utc,omitempty"`
	LastUsed int64  `json:"last_used_utc,omitempty"`
	Source   Source `json:"source,omitempty"`
}

// Defaults as the original tool ships them.
const (
	DefaultFPS              = 10
	DefaultJPEGQuality      = 90
	DefaultSlideDuration    = 20
	DefaultMaxWalkDepth     = 10
	DefaultWorkers          = 4
	DefaultUnnamedRetention = 10
)

// New returns an option set populated with defaults. Timestamps are unset
// until Normalize runs.
func New() *Options {
	return &Options{
		FPS:                  DefaultFPS,
		JPEGQuality:          DefaultJPEGQuality,
		MP4SlideDurationSecs: DefaultSlideDuration,
		MaxWalkDepth:         DefaultMaxWalkDepth,
		Workers:              DefaultWorkers,
		Source:               SourceDefault,
	}
}

// Normalize fills unset timestamps and resolves an empty download directory
// to the current working directory.
func (o *Options) Normalize() error {
	now := time.Now().UTC().Unix()
	if o.Created == 0 {
		o.Created = now
	}
	if o.Modified == 0 {
		o.Modified = now
	}
	if o.LastUsed == 0 {
		o.LastUsed = now
	}
	o.Label = canonicalLabel(o.Label)

	if o.DownloadDirectory == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		o.DownloadDirectory = wd
	}
	return nil
}

// MarkTime stamps the selected timestamp with the current UTC epoch seconds.
func (o *Options) MarkTime(kind TimeKind) {
	now := time.Now().UTC().Unix()
	switch kind {
	case TimeCreate:
		o.Created = now
	case TimeModify:
		o.Modified = now
	case TimeLastUsed:
		o.LastUsed = now
	}
}

// SetLabel assigns a label, irreversibly switching the identity basis from
// structural to named, and stamps the modification time.
func (o *Options) SetLabel(label string) {
	o.Label = canonicalLabel(label)
	o.MarkTime(TimeModify)
}

// Named reports whether the set has a user-assigned label.
func (o *Options) Named() bool {
	return canonicalLabel(o.Label) != ""
}

// Identity is the comparable identity of an option set: either the label, or
// a fingerprint of every field outside the bookkeeping exclusion set.
type Identity struct {
	Named bool
	Key   string
}

// Identity computes the set's identity. Labeled sets are identified by label
// alone; unlabeled sets by a SHA-256 fingerprint of the structural fields.
func (o *Options) Identity() Identity {
	if label := canonicalLabel(o.Label); label != "" {
		return Identity{Named: true, Key: label}
	}
	return Identity{Key: o.fingerprint()}
}

// Equal reports identity equality: same label, or same structural fingerprint
// when both sets are unlabeled.
func (o *Options) Equal(other *Options) bool {
	if o == other {
		return true
	}
	if other == nil {
		return false
	}
	return o.Identity() == other.Identity()
}

// IsDefault reports whether the set is structurally the untouched default,
// ignoring bookkeeping mutation. Such sets are not worth retaining in history.
func (o *Options) IsDefault() bool {
	if o.Named() {
		return false
	}
	def := New()
	def.DownloadDirectory = o.DownloadDirectory
	return o.fingerprint() == def.fingerprint()
}

// structural mirrors Options minus the exclusion set (timestamps, source).
// Field order is fixed so the canonical encoding is stable.
type structural struct {
	PresentationIDs []string             `json:"p"`
	FolderIDs       []string             `json:"f"`
	Custom          []CustomPresentation `json:"c"`
	Formats         []ExportFormat       `json:"fmt"`
	DPI             int                  `json:"dpi"`
	JPEGQuality     int                  `json:"q"`
	ScreenWidth     int                  `json:"w"`
	ScreenHeight    int                  `json:"h"`
	AspectRatio     string               `json:"ar"`
	FPS             int                  `json:"fps"`
	SlideDuration   int                  `json:"sd"`
	TotalDuration   int                  `json:"td"`
	DownloadDir     string               `json:"dir"`
	MaxWalkDepth    int                  `json:"depth"`
	Workers         int                  `json:"workers"`
}

func (o *Options) fingerprint() string {
	// Nil and empty slices encode differently as JSON; collapse them so the
	// two constructions fingerprint alike.
	s := structural{
		PresentationIDs: emptyToNil(o.PresentationIDs),
		FolderIDs:       emptyToNil(o.FolderIDs),
		Custom:          emptyToNil(o.Custom),
		Formats:         emptyToNil(o.Formats),
		DPI:             o.DPI,
		JPEGQuality:     o.JPEGQuality,
		ScreenWidth:     o.ScreenWidth,
		ScreenHeight:    o.ScreenHeight,
		AspectRatio:     o.AspectRatio,
		FPS:             o.FPS,
		SlideDuration:   o.MP4SlideDurationSecs,
		TotalDuration:   o.MP4TotalDurationSecs,
		DownloadDir:     o.DownloadDirectory,
		MaxWalkDepth:    o.MaxWalkDepth,
		Workers:         o.Workers,
	}
	data, err := json.Marshal(s)
	if err != nil {
		// Marshaling a struct of strings and ints cannot fail.
		panic(fmt.Sprintf("options: fingerprint encoding: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func emptyToNil[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}

// Clone returns a deep copy.
func (o *Options) Clone() *Options {
	c := *o
	c.PresentationIDs = append([]string(nil), o.PresentationIDs...)
	c.FolderIDs = append([]string(nil), o.FolderIDs...)
	c.Formats = append([]ExportFormat(nil), o.Formats...)
	c.Custom = make([]CustomPresentation, len(o.Custom))
	for i, cp := range o.Custom {
		c.Custom[i] = CustomPresentation{
			PresentationID: cp.PresentationID,
			SlideIDs:       append([]string(nil), cp.SlideIDs...),
		}
	}
	return &c
}

// View renders a one-line summary for history listings and prompts.
func (o *Options) View() string {
	var b strings.Builder
	if o.Named() {
		fmt.Fprintf(&b, "[%s] ", o.Label)
	}
	if len(o.PresentationIDs) > 0 {
		fmt.Fprintf(&b, "presentations=%s ", strings.Join(o.PresentationIDs, ","))
	}
	if len(o.FolderIDs) > 0 {
		fmt.Fprintf(&b, "folders=%s ", strings.Join(o.FolderIDs, ","))
	}
	if len(o.Custom) > 0 {
		fmt.Fprintf(&b, "custom=%d ", len(o.Custom))
	}
	formats := make([]string, len(o.Formats))
	for i, f := range o.Formats {
		formats[i] = string(f)
	}
	fmt.Fprintf(&b, "formats=%s", strings.Join(formats, ","))
	if o.LastUsed != 0 {
		fmt.Fprintf(&b, " last-used=%s", time.Unix(o.LastUsed, 0).UTC().Format(time.RFC3339))
	}
	return strings.TrimSpace(b.String())
}

func canonicalLabel(label string) string {
	return strings.TrimSpace(label)
}
