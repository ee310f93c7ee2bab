package export

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"
	"os/exec"
	"strconv"
)

// CommandTranscoder converts media by shelling out to rsvg-convert and
// ffmpeg, the same codecs the export formats were designed around. JPEG
// re-encoding is done in-process.
type CommandTranscoder struct {
	// RsvgPath overrides the rsvg-convert binary (default "rsvg-convert").
	RsvgPath string
	// FFmpegPath overrides the ffmpeg binary (default "ffmpeg").
	FFmpegPath string
}

func (t CommandTranscoder) rsvg() string {
	if t.RsvgPath != "" {
		return t.RsvgPath
	}
	return "rsvg-convert"
}

func (t CommandTranscoder) ffmpeg() string {
	if t.FFmpegPath != "" {
		return t.FFmpegPath
	}
	return "ffmpeg"
}

// SVGToPNG rasterizes an SVG at the given DPI. Zero DPI uses the tool's
// default of 96.
func (t CommandTranscoder) SVGToPNG(svg []byte, dpi int) ([]byte, error) {
	args := []string{"--format", "png"}
	if dpi > 0 {
		args = append(args, "--dpi-x", strconv.Itoa(dpi), "--dpi-y", strconv.Itoa(dpi))
	}

	cmd := exec.Command(t.rsvg(), args...)
	cmd.Stdin = bytes.NewReader(svg)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("export: rasterizing svg: %w: %s", err, stderr.String())
	}
	return out.Bytes(), nil
}

// PNGToJPEG re-encodes a PNG as JPEG at the given quality.
func (t CommandTranscoder) PNGToJPEG(data []byte, quality int) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("export: decoding png: %w", err)
	}
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("export: encoding jpeg: %w", err)
	}
	return out.Bytes(), nil
}

// FramesToMP4 muxes PNG frames into a fragmented MP4 via an image2pipe
// stream.
func (t CommandTranscoder) FramesToMP4(frames [][]byte, fps int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("export: no frames to mux")
	}
	if fps <= 0 {
		fps = 1
	}

	cmd := exec.Command(t.ffmpeg(),
		"-hide_banner", "-loglevel", "error",
		"-f", "image2pipe",
		"-framerate", strconv.Itoa(fps),
		"-i", "-",
		"-pix_fmt", "yuv420p",
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		"-",
	)
	cmd.Stdin = bytes.NewReader(bytes.Join(frames, nil))
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("export: muxing mp4: %w: %s", err, stderr.String())
	}
	return out.Bytes(), nil
}
