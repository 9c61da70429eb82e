package browser

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"

	"browsernerd-agent/internal/supervisor"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	boxColor   = color.RGBA{R: 255, A: 255}
	labelColor = image.NewUniform(color.White)
)

const (
	boxStroke    = 2
	labelPadding = 4
)

// DrawBoxes returns a PNG copy of screenshot with a red outline and index
// label over every element. The source image is left untouched.
func DrawBoxes(screenshot []byte, elements []supervisor.Element) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(screenshot))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}

	canvas := image.NewRGBA(src.Bounds())
	draw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, draw.Src)

	face := basicfont.Face7x13
	for _, el := range elements {
		r := image.Rect(int(el.X), int(el.Y), int(el.X+el.Width), int(el.Y+el.Height))
		outline(canvas, r)
		label(canvas, face, r.Min, strconv.Itoa(el.Index))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode annotated screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

func outline(dst *image.RGBA, r image.Rectangle) {
	fill := image.NewUniform(boxColor)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+boxStroke),
		image.Rect(r.Min.X, r.Max.Y-boxStroke, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+boxStroke, r.Max.Y),
		image.Rect(r.Max.X-boxStroke, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), fill, image.Point{}, draw.Src)
	}
}

func label(dst *image.RGBA, face *basicfont.Face, at image.Point, text string) {
	width := font.MeasureString(face, text).Ceil()
	height := face.Ascent + face.Descent
	bg := image.Rect(at.X, at.Y, at.X+width+2*labelPadding, at.Y+height+2*labelPadding)
	draw.Draw(dst, bg.Intersect(dst.Bounds()), image.NewUniform(boxColor), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  labelColor,
		Face: face,
		Dot:  fixed.P(at.X+labelPadding, at.Y+labelPadding+face.Ascent),
	}
	d.DrawString(text)
}
