// Package vision declares the camera, face detector and preview window
// abstractions used by enrollment, training and alerting. The OpenCV-backed
// implementations live in the opencv subpackage.
package vision

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"
)

var (
	// ErrCameraUnavailable is returned when the capture device cannot be opened.
	ErrCameraUnavailable = errors.New("camera not available")

	// ErrNoFrame is returned when the device is open but yields no image.
	ErrNoFrame = errors.New("could not read frame from camera")
)

// Camera is an opened capture device.
type Camera interface {
	Read() (image.Image, error)
	Close() error
}

// Detector finds face rectangles in a grayscale image. Faces smaller than
// minSize pixels on either side are ignored; zero disables the limit.
type Detector interface {
	Detect(gray *image.Gray, minSize int) ([]image.Rectangle, error)
}

// Preview is an interactive window showing live frames.
type Preview interface {
	Show(frame image.Image, faces []image.Rectangle, caption string) error
	// WaitKey waits up to delay for a key press and returns its code, or -1.
	WaitKey(delay time.Duration) int
	Close() error
}

// Key codes returned by Preview.WaitKey.
const (
	KeyEsc   = 27
	KeySpace = ' '
	KeyQuit  = 'q'
)

// GrabOptions controls how a single still frame is taken.
type GrabOptions struct {
	SettleDelay    time.Duration // pause after opening the device
	WarmupFrames   int           // frames read and discarded first
	WarmupInterval time.Duration // pause between warm-up reads
	Sleep          func(time.Duration)
}

// Grab reads warm-up frames, which lets auto exposure settle, then returns
// the next frame. Failed warm-up reads are logged and ignored; a failed final
// read returns ErrNoFrame.
func Grab(cam Camera, opts GrabOptions) (image.Image, error) {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	if opts.SettleDelay > 0 {
		sleep(opts.SettleDelay)
	}

	for i := range opts.WarmupFrames {
		if _, err := cam.Read(); err != nil {
			slog.Warn("Warmup frame failed", "frame", i, "error", err)
		}
		if opts.WarmupInterval > 0 {
			sleep(opts.WarmupInterval)
		}
	}

	frame, err := cam.Read()
	if err != nil {
		if errors.Is(err, ErrNoFrame) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrNoFrame, err)
	}
	if frame == nil || frame.Bounds().Empty() {
		return nil, ErrNoFrame
	}
	return frame, nil
}

// Live shows frames from cam until q or ESC is pressed. It returns the
// number of frames shown.
func Live(cam Camera, preview Preview, caption string) (int, error) {
	shown := 0
	for {
		frame, err := cam.Read()
		if err != nil {
			if errors.Is(err, ErrNoFrame) {
				return shown, err
			}
			return shown, fmt.Errorf("%w: %w", ErrNoFrame, err)
		}
		if err := preview.Show(frame, nil, caption); err != nil {
			return shown, err
		}
		shown++

		switch preview.WaitKey(time.Millisecond) {
		case KeyQuit, KeyEsc:
			return shown, nil
		}
	}
}
