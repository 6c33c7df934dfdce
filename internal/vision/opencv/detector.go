package opencv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// FaceDetector runs a Haar cascade over grayscale images.
type FaceDetector struct {
	classifier   gocv.CascadeClassifier
	scaleFactor  float64
	minNeighbors int
}

// NewFaceDetector loads the cascade XML at path.
func NewFaceDetector(path string, scaleFactor float64, minNeighbors int) (*FaceDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		_ = classifier.Close()
		return nil, fmt.Errorf("failed to load face cascade classifier from %s", path)
	}
	return &FaceDetector{
		classifier:   classifier,
		scaleFactor:  scaleFactor,
		minNeighbors: minNeighbors,
	}, nil
}

// Detect returns the face rectangles found in gray, in image coordinates.
func (d *FaceDetector) Detect(gray *image.Gray, minSize int) ([]image.Rectangle, error) {
	// the Mat conversion copies pixels from Pix[0], so normalise sub-images first
	origin := gray.Bounds().Min
	if origin != (image.Point{}) {
		gray = shiftToOrigin(gray)
	}

	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	rects := d.classifier.DetectMultiScaleWithParams(
		mat, d.scaleFactor, d.minNeighbors, 0,
		image.Pt(minSize, minSize), image.Point{},
	)
	for i := range rects {
		rects[i] = rects[i].Add(origin)
	}
	return rects, nil
}

// Close releases the classifier.
func (d *FaceDetector) Close() error {
	return d.classifier.Close()
}

func shiftToOrigin(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], src.Pix[y*src.Stride:y*src.Stride+b.Dx()])
	}
	return dst
}
