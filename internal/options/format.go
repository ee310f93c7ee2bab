package options

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFormat is returned when a format string cannot be parsed.
var ErrUnknownFormat = errors.New("unknown export format")

// ExportFormat identifies one output artifact type.
type ExportFormat string

// Per-slide image formats.
const (
	FormatSVG  ExportFormat = "svg"
	FormatPNG  ExportFormat = "png"
	FormatJPEG ExportFormat = "jpeg"
)

// Whole-presentation document formats.
const (
	FormatPPTX ExportFormat = "pptx"
	FormatPDF  ExportFormat = "pdf"
	FormatTXT  ExportFormat = "txt"
	FormatODP  ExportFormat = "odp"
)

// Structural and video formats.
const (
	FormatJSON ExportFormat = "json"
	FormatMP4  ExportFormat = "mp4"
)

// AllFormats lists every supported format in a stable order.
var AllFormats = []ExportFormat{
	FormatSVG, FormatPNG, FormatJPEG,
	FormatPPTX, FormatPDF, FormatTXT, FormatODP,
	FormatJSON, FormatMP4,
}

// ExportKind classifies how a format is materialized.
type ExportKind int

const (
	// KindImage formats are fetched once per slide.
	KindImage ExportKind = iota
	// KindDocument formats are fetched once per presentation.
	KindDocument
	// KindData is the structural JSON export (whole presentation plus per-slide).
	KindData
	// KindVideo is the muxed MP4 built from per-slide PNG frames.
	KindVideo
)

// Kind returns the materialization class of the format.
func (f ExportFormat) Kind() ExportKind {
	switch f {
	case FormatSVG, FormatPNG, FormatJPEG:
		return KindImage
	case FormatJSON:
		return KindData
	case FormatMP4:
		return KindVideo
	default:
		return KindDocument
	}
}

// Extension returns the file extension without a leading dot.
func (f ExportFormat) Extension() string {
	return string(f)
}

// ParseFormat parses a user-supplied format string.
func ParseFormat(s string) (ExportFormat, error) {
	f := ExportFormat(strings.ToLower(strings.TrimSpace(s)))
	if f == "jpg" {
		f = FormatJPEG
	}
	for _, known := range AllFormats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ParseFormats parses a list of format strings, rejecting duplicates.
func ParseFormats(in []string) ([]ExportFormat, error) {
	seen := make(map[ExportFormat]bool, len(in))
	out := make([]ExportFormat, 0, len(in))
	for _, s := range in {
		f, err := ParseFormat(s)
		if err != nil {
			return nil, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}
