package opencv

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"
)

var (
	faceColor    = color.RGBA{G: 255, A: 255}
	captionColor = color.RGBA{R: 255, G: 255, A: 255}
)

// Window is an OpenCV highgui preview window.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a preview window with the given title.
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Show draws face rectangles and a caption over frame and displays it.
// Rectangles are relative to the frame origin, as returned by Detect on the
// grayscale copy.
func (w *Window) Show(frame image.Image, faces []image.Rectangle, caption string) error {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()

	for _, r := range faces {
		gocv.Rectangle(&mat, r, faceColor, 2)
	}
	if caption != "" {
		gocv.PutText(&mat, caption, image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, captionColor, 2)
	}

	w.win.IMShow(mat)
	return nil
}

// WaitKey pumps the window event loop for up to delay and returns the
// pressed key, or -1 when none was pressed.
func (w *Window) WaitKey(delay time.Duration) int {
	ms := int(delay / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	key := w.win.WaitKey(ms)
	if key < 0 {
		return -1
	}
	return key & 0xFF
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}
