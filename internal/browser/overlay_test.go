package browser

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"browsernerd-agent/internal/supervisor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blankPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.Black)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDrawBoxes(t *testing.T) {
	clean := blankPNG(t, 200, 100)
	original := append([]byte(nil), clean...)

	out, err := DrawBoxes(clean, []supervisor.Element{
		{Index: 3, X: 50, Y: 30, Width: 100, Height: 60},
		{Index: 4, X: 180, Y: 90, Width: 80, Height: 40},
	})
	require.NoError(t, err)
	assert.Equal(t, original, clean, "input buffer is not modified")

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 100), img.Bounds())

	r, g, b, _ := img.At(100, 88).RGBA()
	assert.Equal(t, uint32(0xffff), r, "bottom edge is red")
	assert.Zero(t, g)
	assert.Zero(t, b)

	r, _, _, _ = img.At(100, 60).RGBA()
	assert.Zero(t, r, "box interior untouched")
}

func TestDrawBoxesRejectsGarbage(t *testing.T) {
	_, err := DrawBoxes([]byte("not a png"), nil)
	assert.Error(t, err)
}
