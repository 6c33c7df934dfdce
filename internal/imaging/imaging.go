// Package imaging holds the pure-Go image helpers shared by enrollment,
// training and alerting: grayscale conversion, cropping, downscaling and
// JPEG persistence.
package imaging

import (
	"bufio"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/kozaktomas/cybereye/internal/constants"
)

// ToGray converts img to an 8-bit grayscale image with its origin at (0, 0).
// Luma uses the ITU-R BT.601 weights, the same as color.GrayModel.
func ToGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// Crop returns a copy of the region r of src. The region is clipped to the
// image bounds; an empty intersection yields nil.
func Crop(src *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(src.Bounds())
	if r.Empty() {
		return nil
	}
	dst := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	return dst
}

// FitWithin scales src down so that neither side exceeds maxDim, keeping the
// aspect ratio. Images already small enough are returned unchanged.
func FitWithin(src *image.Gray, maxDim int) *image.Gray {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxDim <= 0 || (width <= maxDim && height <= maxDim) {
		return src
	}

	longest := max(width, height)
	newWidth := max(1, width*maxDim/longest)
	newHeight := max(1, height*maxDim/longest)

	dst := image.NewGray(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	return dst
}

// DecodeFile reads and decodes a JPEG, PNG, GIF or BMP file.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from a directory listing
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// SaveJPEG encodes img as JPEG at path. A partially written file is removed.
func SaveJPEG(path string, img image.Image) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // path is built by the caller
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}

	w := bufio.NewWriter(f)
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: constants.JPEGQuality}); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to encode image: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to close image file: %w", err)
	}
	return nil
}
