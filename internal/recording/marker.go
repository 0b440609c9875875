package recording

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

var (
	markerColor   = color.RGBA{226, 35, 26, 255}
	cursorOutline = color.RGBA{0, 0, 0, 255}
	cursorFill    = color.RGBA{255, 255, 255, 255}
)

// drawMarker copies frame and draws the cursor, plus a ring for clicks.
func drawMarker(frame image.Image, m *Marker) image.Image {
	bounds := frame.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, frame, bounds.Min, draw.Src)
	if m == nil {
		return out
	}
	if m.Click {
		drawRing(out, m.X, m.Y, 15)
	}
	drawCursor(out, m.X, m.Y)
	return out
}

// drawCursor draws an arrow with its tip at (x, y).
func drawCursor(img *image.RGBA, x, y int) {
	for dy := 0; dy <= 16; dy++ {
		for dx := 0; dx < 13; dx++ {
			if insideCursor(dx, dy) {
				setPixel(img, x+dx, y+dy, cursorFill)
			}
		}
	}
	outline := []image.Point{{0, 0}, {0, 16}, {4, 12}, {7, 18}, {10, 17}, {7, 11}, {12, 11}}
	for i, p1 := range outline {
		p2 := outline[(i+1)%len(outline)]
		drawLine(img, x+p1.X, y+p1.Y, x+p2.X, y+p2.Y, cursorOutline)
	}
}

func insideCursor(dx, dy int) bool {
	switch {
	case dx < 0 || dy < 0 || dy > 16:
		return false
	case dy <= 11:
		return dx <= dy*12/16
	default:
		return dx <= 4
	}
}

func drawRing(img *image.RGBA, x, y, radius int) {
	for angle := 0.0; angle < 360; angle++ {
		rad := angle * math.Pi / 180
		px := x + int(float64(radius)*math.Cos(rad))
		py := y + int(float64(radius)*math.Sin(rad))
		setPixel(img, px, py, markerColor)
		setPixel(img, px+1, py, markerColor)
		setPixel(img, px, py+1, markerColor)
	}
}

// drawLine is Bresenham's algorithm.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		setPixel(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{x, y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
