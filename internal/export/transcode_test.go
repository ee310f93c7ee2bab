package export

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPNGToJPEG(t *testing.T) {
	tr := CommandTranscoder{}

	out, err := tr.PNGToJPEG(encodePNG(t), 85)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
}

func TestPNGToJPEGRejectsGarbage(t *testing.T) {
	tr := CommandTranscoder{}
	_, err := tr.PNGToJPEG([]byte("not a png"), 85)
	assert.Error(t, err)
}

func TestFramesToMP4RequiresFrames(t *testing.T) {
	tr := CommandTranscoder{}
	_, err := tr.FramesToMP4(nil, 10)
	assert.ErrorContains(t, err, "no frames")
}

func TestSVGToPNGReportsMissingBinary(t *testing.T) {
	tr := CommandTranscoder{RsvgPath: "/nonexistent/rsvg-convert"}
	_, err := tr.SVGToPNG([]byte("<svg/>"), 0)
	assert.Error(t, err)
}
