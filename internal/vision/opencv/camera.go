// Package opencv implements the vision interfaces on top of gocv.
package opencv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/cybereye/internal/vision"
)

// Camera wraps a gocv video capture device.
type Camera struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

// OpenCamera opens the capture device with the given index.
func OpenCamera(index int) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %w", vision.ErrCameraUnavailable, index, err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return nil, fmt.Errorf("%w: device %d", vision.ErrCameraUnavailable, index)
	}
	return &Camera{capture: capture, frame: gocv.NewMat()}, nil
}

// Read grabs the next frame and converts it to an image.
func (c *Camera) Read() (image.Image, error) {
	if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, vision.ErrNoFrame
	}
	img, err := c.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return img, nil
}

// Close releases the device and the frame buffer.
func (c *Camera) Close() error {
	_ = c.frame.Close()
	return c.capture.Close()
}
