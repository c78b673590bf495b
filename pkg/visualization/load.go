// Package visualization converts between images and the matrices used by
// the reconstruction pipeline: it loads density maps from image files and
// renders sinograms and reconstructions as 8-bit images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding
	"io"
	"os"

	"github.com/nfnt/resize"

	"xrayct/pkg/matrix"
)

// Decode reads an image and converts it to a density map with one element
// per pixel, holding the pixel's luma scaled to [0, 1]. If size is positive
// the image is first resized to size x size.
func Decode(r io.Reader, size int) (*matrix.Matrix, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if size > 0 {
		img = resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	}
	return FromImage(img)
}

// Load reads the image file at path as a density map. See Decode.
func Load(path string, size int) (*matrix.Matrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	m, err := Decode(file, size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FromImage converts img to a density map of its grayscale values in [0, 1]
func FromImage(img image.Image) (*matrix.Matrix, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	values := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			values[y*width+x] = float64(g.Y) / 255
		}
	}
	return matrix.New(height, width, values)
}
