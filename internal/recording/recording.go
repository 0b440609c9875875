// Package recording turns the screenshots taken after each page action into
// an animated GIF, with a cursor and click marker at the action's target.
package recording

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/nfnt/resize"

	"github.com/v0xg/uiharness/internal/engine"
)

// Marker is where an action happened on a frame.
type Marker struct {
	X, Y  int
	Click bool
	Label string
}

// Frame is one captured step.
type Frame struct {
	Image  image.Image
	Marker *Marker
}

// Options configures GIF generation.
type Options struct {
	// Delay per frame in 100ths of a second.
	Delay    int
	MaxWidth uint
}

// Recorder collects frames for one case. A nil *Recorder records nothing.
type Recorder struct {
	mu     sync.Mutex
	frames []Frame
	limit  int
}

// NewRecorder keeps at most limit frames; zero means 200.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 200
	}
	return &Recorder{limit: limit}
}

// Capture screenshots page and appends it with m drawn on top.
func (r *Recorder) Capture(ctx context.Context, page engine.Page, m *Marker) error {
	if r == nil {
		return nil
	}
	data, err := page.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("capture frame: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	r.Add(Frame{Image: img, Marker: m})
	return nil
}

// Add appends a frame, dropping the oldest once the limit is reached.
func (r *Recorder) Add(f Frame) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == r.limit {
		r.frames = r.frames[1:]
	}
	r.frames = append(r.frames, f)
}

// Len returns the number of frames held.
func (r *Recorder) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Save encodes the frames as a GIF at path and returns its size.
func (r *Recorder) Save(path string, opts Options) (int64, error) {
	if r == nil {
		return 0, nil
	}
	r.mu.Lock()
	frames := slices.Clone(r.frames)
	r.mu.Unlock()
	if len(frames) == 0 {
		return 0, nil
	}

	images := make([]image.Image, len(frames))
	for i, f := range frames {
		images[i] = drawMarker(f.Image, f.Marker)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	return Generate(images, path, opts)
}

// Generate creates a GIF from frames.
func Generate(frames []image.Image, outputPath string, opts Options) (int64, error) {
	if len(frames) == 0 {
		return 0, nil
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = 80
	}

	bounds := frames[0].Bounds()
	outputWidth := opts.MaxWidth
	if outputWidth == 0 || outputWidth > uint(bounds.Dx()) {
		outputWidth = uint(bounds.Dx())
	}
	aspectRatio := float64(bounds.Dy()) / float64(bounds.Dx())
	outputHeight := uint(float64(outputWidth) * aspectRatio)

	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0,
	}

	palette := generatePalette(frames[0])
	for i, frame := range frames {
		resized := resize.Resize(outputWidth, outputHeight, frame, resize.Lanczos3)
		paletted := image.NewPaletted(resized.Bounds(), palette)
		draw.FloydSteinberg.Draw(paletted, resized.Bounds(), resized, image.Point{})
		g.Image[i] = paletted
		g.Delay[i] = delay
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := gif.EncodeAll(f, g); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// generatePalette picks the 255 most frequent colors of a sampled image,
// padded with grays.
func generatePalette(img image.Image) color.Palette {
	bounds := img.Bounds()
	counts := make(map[color.RGBA]int)

	const step = 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, a := img.At(x, y).RGBA()
			counts[color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}]++
		}
	}

	colors := make([]color.RGBA, 0, len(counts))
	for c := range counts {
		colors = append(colors, c)
	}
	slices.SortFunc(colors, func(a, b color.RGBA) int {
		if d := counts[b] - counts[a]; d != 0 {
			return d
		}
		return int(a.R)<<16 | int(a.G)<<8 | int(a.B) - (int(b.R)<<16 | int(b.G)<<8 | int(b.B))
	})

	palette := make(color.Palette, 0, 256)
	palette = append(palette, color.RGBA{0, 0, 0, 0})
	// Marker colors must survive quantization.
	palette = append(palette, markerColor, cursorOutline, cursorFill)
	for _, c := range colors {
		if len(palette) == 256 {
			break
		}
		palette = append(palette, c)
	}
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}
	return palette
}
