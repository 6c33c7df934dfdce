// Package enroll collects owner face samples from the camera.
package enroll

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/kozaktomas/cybereye/internal/constants"
	"github.com/kozaktomas/cybereye/internal/imaging"
	"github.com/kozaktomas/cybereye/internal/vision"
)

// ErrCancelled is returned when the user presses ESC before the target is reached.
var ErrCancelled = errors.New("enrollment cancelled by user")

var samplePattern = regexp.MustCompile(`^` + constants.SamplePrefix + `\.(\d+)\.(\d+)\.jpg$`)

type Options struct {
	DatasetDir  string
	OwnerID     int
	TargetCount int
	// KeyDelay is how long each loop iteration waits for a key press.
	KeyDelay time.Duration
}

type Result struct {
	Saved     []string
	Cancelled bool
}

// SampleName returns the dataset file name for sample n of the given owner.
func SampleName(ownerID, n int) string {
	return fmt.Sprintf("%s.%d.%d.jpg", constants.SamplePrefix, ownerID, n)
}

// NextIndex returns the first unused sample number for ownerID in dir, so a
// second enrollment session adds samples instead of overwriting them.
func NextIndex(dir string, ownerID int) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 1, nil
		}
		return 0, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	highest := 0
	for _, entry := range entries {
		m := samplePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		id, _ := strconv.Atoi(m[1])
		n, _ := strconv.Atoi(m[2])
		if id == ownerID && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

// Run shows the live preview and saves the first detected face each time
// SPACE is pressed, until TargetCount samples exist or ESC is pressed.
// Saved samples are kept when the session ends early.
func Run(cam vision.Camera, detector vision.Detector, preview vision.Preview, opts Options) (*Result, error) {
	if err := os.MkdirAll(opts.DatasetDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory: %w", err)
	}
	next, err := NextIndex(opts.DatasetDir, opts.OwnerID)
	if err != nil {
		return nil, err
	}

	keyDelay := opts.KeyDelay
	if keyDelay <= 0 {
		keyDelay = time.Millisecond
	}

	result := &Result{}
	slog.Info("Look at the camera. Press SPACE to capture each image, ESC to finish early")

	for len(result.Saved) < opts.TargetCount {
		frame, err := cam.Read()
		if err != nil {
			return result, fmt.Errorf("camera read failed, close other apps using the camera: %w", err)
		}

		gray := imaging.ToGray(frame)
		faces, err := detector.Detect(gray, 0)
		if err != nil {
			return result, fmt.Errorf("face detection failed: %w", err)
		}

		caption := fmt.Sprintf("Captured: %d/%d", len(result.Saved), opts.TargetCount)
		if err := preview.Show(frame, faces, caption); err != nil {
			return result, err
		}

		switch preview.WaitKey(keyDelay) {
		case vision.KeyEsc:
			result.Cancelled = true
			slog.Info("Enrollment cancelled by user", "saved", len(result.Saved))
			return result, ErrCancelled
		case vision.KeySpace:
			if len(faces) == 0 {
				slog.Info("No face detected, try again")
				continue
			}
			face := imaging.Crop(gray, faces[0])
			if face == nil {
				continue
			}
			path := filepath.Join(opts.DatasetDir, SampleName(opts.OwnerID, next))
			if err := imaging.SaveJPEG(path, face); err != nil {
				return result, err
			}
			next++
			result.Saved = append(result.Saved, path)
			slog.Info("Saved sample", "path", path, "count", len(result.Saved), "target", opts.TargetCount)
		}
	}

	slog.Info("Captured required images", "count", len(result.Saved))
	return result, nil
}
