package captcha

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand/v2"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	imageWidth  = 200
	imageHeight = 80

	noiseLines = 8
	noiseDots  = 120

	glyphScale = 3
)

var (
	backgroundColor = color.RGBA{R: 240, G: 240, B: 240, A: 255}

	textPalette = []color.RGBA{
		{R: 30, G: 30, B: 120, A: 255},
		{R: 120, G: 30, B: 30, A: 255},
		{R: 30, G: 100, B: 40, A: 255},
		{R: 90, G: 40, B: 110, A: 255},
	}

	noiseColor = color.RGBA{R: 170, G: 170, B: 170, A: 255}
)

// ImageRenderer rasterizes challenge codes into distorted PNG images.
type ImageRenderer struct {
	face font.Face
}

// NewImageRenderer creates a renderer using the built-in bitmap face.
func NewImageRenderer() *ImageRenderer {
	return &ImageRenderer{face: basicfont.Face7x13}
}

// RenderCaptchaImage draws the code over a noisy background and
// returns the encoded PNG bytes.
func (r *ImageRenderer) RenderCaptchaImage(code string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, imageWidth, imageHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	r.drawNoiseLines(img)
	r.drawNoiseDots(img)
	r.drawCode(img, code)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return buf.Bytes(), nil
}

func (r *ImageRenderer) drawNoiseLines(img *image.RGBA) {
	for range noiseLines {
		x1 := rand.IntN(imageWidth)
		y1 := rand.IntN(imageHeight)
		x2 := rand.IntN(imageWidth)
		y2 := rand.IntN(imageHeight)
		drawLine(img, x1, y1, x2, y2, noiseColor)
	}
}

func (r *ImageRenderer) drawNoiseDots(img *image.RGBA) {
	for range noiseDots {
		img.SetRGBA(rand.IntN(imageWidth), rand.IntN(imageHeight), noiseColor)
	}
}

// drawCode renders each glyph at triple scale with per-character color
// and vertical jitter, centered horizontally.
func (r *ImageRenderer) drawCode(img *image.RGBA, code string) {
	glyphWidth := basicfont.Face7x13.Advance * glyphScale
	glyphHeight := basicfont.Face7x13.Height * glyphScale

	totalWidth := glyphWidth * len(code)
	startX := (imageWidth - totalWidth) / 2
	baseY := (imageHeight - glyphHeight) / 2

	for i, ch := range code {
		glyph := renderGlyph(r.face, ch)
		if glyph == nil {
			continue
		}

		tint := textPalette[rand.IntN(len(textPalette))]
		jitter := rand.IntN(11) - 5
		x := startX + i*glyphWidth
		y := baseY + jitter

		drawScaledGlyph(img, glyph, x, y, tint)
	}
}

// renderGlyph rasterizes a single character into its own alpha image.
func renderGlyph(face font.Face, ch rune) *image.Alpha {
	advance, ok := face.GlyphAdvance(ch)
	if !ok {
		return nil
	}

	width := advance.Ceil()
	height := face.Metrics().Height.Ceil()
	ascent := face.Metrics().Ascent.Ceil()

	dst := image.NewAlpha(image.Rect(0, 0, width, height))
	drawer := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Alpha{A: 255}),
		Face: face,
		Dot:  fixed.P(0, ascent),
	}
	drawer.DrawString(string(ch))

	return dst
}

// drawScaledGlyph blits the glyph alpha mask at glyphScale, tinted.
func drawScaledGlyph(img *image.RGBA, glyph *image.Alpha, x, y int, tint color.RGBA) {
	bounds := glyph.Bounds()

	for gy := bounds.Min.Y; gy < bounds.Max.Y; gy++ {
		for gx := bounds.Min.X; gx < bounds.Max.X; gx++ {
			if glyph.AlphaAt(gx, gy).A == 0 {
				continue
			}

			for dy := range glyphScale {
				for dx := range glyphScale {
					px := x + gx*glyphScale + dx
					py := y + gy*glyphScale + dy

					if px >= 0 && px < imageWidth && py >= 0 && py < imageHeight {
						img.SetRGBA(px, py, tint)
					}
				}
			}
		}
	}
}

// drawLine draws a straight segment using integer interpolation.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := x2 - x1
	dy := y2 - y1

	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		img.SetRGBA(x1, y1, c)
		return
	}

	for i := 0; i <= steps; i++ {
		x := x1 + dx*i/steps
		y := y1 + dy*i/steps
		img.SetRGBA(x, y, c)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}

	return n
}
