package visualization

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"xrayct/pkg/matrix"
)

// TestLevels verifies clamping and scaling to 8-bit levels
func TestLevels(t *testing.T) {
	m, _ := matrix.New(1, 5, []float64{-3, 0, 1, 2, 4})
	got := Levels(m)
	want := []uint8{0, 0, 63, 127, 255}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected level %d = %d, got %d", i, want[i], got[i])
		}
	}

	negative, _ := matrix.NewFilled(2, 2, -1)
	for i, v := range Levels(negative) {
		if v != 0 {
			t.Errorf("Expected all-black output for non-positive matrix, got %d at %d", v, i)
		}
	}
}

func TestToGrayLayout(t *testing.T) {
	m, _ := matrix.New(2, 3, []float64{0, 0, 0, 0, 0, 1})
	img := ToGray(m)
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Fatalf("Expected 3x2 image, got %v", img.Bounds())
	}
	if img.GrayAt(2, 1).Y != 255 {
		t.Errorf("Expected element (1,2) at pixel (2,1), got %v", img.GrayAt(2, 1))
	}
	if img.GrayAt(1, 0).Y != 0 {
		t.Errorf("Expected black at (1,0), got %v", img.GrayAt(1, 0))
	}
}

func TestToHeatEndpoints(t *testing.T) {
	m, _ := matrix.New(1, 2, []float64{0, 1})
	img := ToHeat(m)
	lo := img.RGBAAt(0, 0)
	hi := img.RGBAAt(1, 0)
	if lo.R != 0 || lo.G != 0 || lo.B != 0 {
		t.Errorf("Expected black for the minimum, got %v", lo)
	}
	if hi.R < 250 || hi.G < 250 || hi.B < 250 {
		t.Errorf("Expected white for the maximum, got %v", hi)
	}
}

func TestParsePaletteAndFormat(t *testing.T) {
	if p, err := ParsePalette("HEAT"); err != nil || p != Heat {
		t.Errorf("Expected Heat, got %v, %v", p, err)
	}
	if _, err := ParsePalette("rainbow"); err == nil {
		t.Error("Expected error for unknown palette")
	}
	if f, err := ParseFormat("jpg"); err != nil || f != JPEG || f.Ext() != ".jpg" {
		t.Errorf("Expected JPEG, got %v, %v", f, err)
	}
	if _, err := ParseFormat("tiff"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

// TestDecodeRoundTrip encodes a gray image and loads it back as a matrix
func TestDecodeRoundTrip(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 2))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 30)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}

	m, err := Decode(&buf, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !m.SameShape(2, 4) {
		t.Fatalf("Expected 2x4 matrix, got %dx%d", m.Rows(), m.Cols())
	}
	for i, v := range m.Values() {
		want := float64(i*30) / 255
		if math.Abs(v-want) > 1e-12 {
			t.Errorf("Expected value %d = %v, got %v", i, want, v)
		}
	}
}

func TestLoadResizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "density.png")

	img := image.NewGray(image.Rect(0, 0, 10, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 10; x++ {
			img.SetGray(x, y, color.Gray{Y: 200})
		}
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	file.Close()

	m, err := Load(path, 16)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !m.SameShape(16, 16) {
		t.Errorf("Expected 16x16 matrix after resize, got %dx%d", m.Rows(), m.Cols())
	}

	if _, err := Load(filepath.Join(dir, "missing.png"), 0); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestSaveFrameSequence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	frames := make([]*matrix.Matrix, 3)
	for i := range frames {
		frames[i], _ = matrix.NewFilled(4, 4, float64(i+1))
	}

	for _, palette := range []Palette{Gray, Heat} {
		viewer := NewViewer(palette, PNG)
		if err := viewer.SaveFrameSequence(frames, dir); err != nil {
			t.Fatalf("SaveFrameSequence failed: %v", err)
		}
		for i := range frames {
			if _, err := os.Stat(viewer.FramePath(dir, i)); err != nil {
				t.Errorf("Expected frame %d to exist: %v", i, err)
			}
		}
	}

	viewer := NewViewer(Gray, JPEG)
	path := filepath.Join(t.TempDir(), "nested", "out.jpg")
	if err := viewer.SaveMatrix(frames[0], path); err != nil {
		t.Fatalf("SaveMatrix failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected %s to exist: %v", path, err)
	}
	if err := viewer.SaveFrame(frames[0], dir, -1); err == nil {
		t.Error("Expected error for negative frame index")
	}
}
