package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"xrayct/pkg/matrix"
)

// Palette selects how matrix values are turned into colours
type Palette int

const (
	// Gray renders 8-bit grayscale
	Gray Palette = iota
	// Heat renders black through red and yellow to white
	Heat
)

// Format selects the image file encoding
type Format int

const (
	PNG Format = iota
	JPEG
)

// ParsePalette converts "gray" or "heat" to a Palette
func ParsePalette(s string) (Palette, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gray", "grey":
		return Gray, nil
	case "heat":
		return Heat, nil
	default:
		return Gray, fmt.Errorf("invalid palette: %s (must be gray or heat)", s)
	}
}

// ParseFormat converts "png", "jpg" or "jpeg" to a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	default:
		return PNG, fmt.Errorf("invalid format: %s (must be png or jpeg)", s)
	}
}

// Ext returns the file extension for f, including the dot
func (f Format) Ext() string {
	if f == JPEG {
		return ".jpg"
	}
	return ".png"
}

// Levels scales the matrix to 8-bit levels: negative values are clamped to
// zero and the largest value maps to 255. A matrix with no positive value
// maps to all zeros.
func Levels(m *matrix.Matrix) []uint8 {
	values := m.Values()
	out := make([]uint8, len(values))
	peak := m.Max()
	if peak <= 0 {
		return out
	}
	scale := 255 / peak
	for i, v := range values {
		if v <= 0 {
			continue
		}
		out[i] = uint8(v * scale)
	}
	return out
}

// ToGray converts a matrix to an 8-bit grayscale image, one pixel per
// element, with rows running down the image
func ToGray(m *matrix.Matrix) *image.Gray {
	rows, cols := m.Dims()
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	copy(img.Pix, Levels(m))
	return img
}

var heatStops = []colorful.Color{
	{R: 0, G: 0, B: 0},
	{R: 0.8, G: 0, B: 0},
	{R: 1, G: 0.85, B: 0},
	{R: 1, G: 1, B: 1},
}

func heatColor(level uint8) color.RGBA {
	t := float64(level) / 255 * float64(len(heatStops)-1)
	i := int(t)
	if i >= len(heatStops)-1 {
		i = len(heatStops) - 2
	}
	c := heatStops[i].BlendLab(heatStops[i+1], t-float64(i)).Clamped()
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// ToHeat converts a matrix to a heat-map image using the same scaling as
// ToGray
func ToHeat(m *matrix.Matrix) *image.RGBA {
	rows, cols := m.Dims()
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	var lut [256]color.RGBA
	for i := range lut {
		lut[i] = heatColor(uint8(i))
	}
	for i, level := range Levels(m) {
		img.SetRGBA(i%cols, i/cols, lut[level])
	}
	return img
}

// Viewer renders result matrices and writes them to disk
type Viewer struct {
	Palette Palette
	Format  Format
}

// NewViewer creates a viewer with the given palette and format
func NewViewer(palette Palette, format Format) *Viewer {
	return &Viewer{Palette: palette, Format: format}
}

// Render converts m to an image using the viewer's palette
func (v *Viewer) Render(m *matrix.Matrix) image.Image {
	if v.Palette == Heat {
		return ToHeat(m)
	}
	return ToGray(m)
}

// SaveImage encodes img to filename using the viewer's format
func (v *Viewer) SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if v.Format == JPEG {
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	}
	return png.Encode(file, img)
}

// SaveMatrix renders m and writes it to filename, creating the parent
// directory if needed
func (v *Viewer) SaveMatrix(m *matrix.Matrix, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	return v.SaveImage(v.Render(m), filename)
}

// FramePath returns the file name of frame index inside dir
func (v *Viewer) FramePath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%03d%s", index, v.Format.Ext()))
}

// SaveFrame writes a single frame of a sequence to dir
func (v *Viewer) SaveFrame(m *matrix.Matrix, dir string, index int) error {
	if index < 0 {
		return fmt.Errorf("frame index must be non-negative")
	}
	return v.SaveMatrix(m, v.FramePath(dir, index))
}

// SaveFrameSequence writes frames to dir as frame_000, frame_001, ...
func (v *Viewer) SaveFrameSequence(frames []*matrix.Matrix, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	for i, frame := range frames {
		if err := v.SaveFrame(frame, outputDir, i); err != nil {
			return fmt.Errorf("failed to save frame %d: %w", i, err)
		}
	}
	return nil
}
