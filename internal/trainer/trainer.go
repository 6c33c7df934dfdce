// Package trainer builds the owner face model from the dataset directory.
package trainer

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/cybereye/internal/facemodel"
	"github.com/kozaktomas/cybereye/internal/imaging"
	"github.com/kozaktomas/cybereye/internal/vision"
)

// ErrDatasetMissing is returned when the dataset directory does not exist.
var ErrDatasetMissing = errors.New("dataset directory not found")

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

type Options struct {
	DatasetDir   string
	ModelFile    string
	OwnerID      int
	MinFaceSize  int // detections smaller than this are ignored
	MaxDimension int // images are scaled down so neither side exceeds this
	Params       facemodel.Params
	Progress     io.Writer // progress bar output, nil disables it
}

type Result struct {
	Found     int
	Samples   int
	Skipped   map[string]string // file name -> reason
	ModelFile string
}

// ListImages returns the dataset image files in name order.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetMissing, dir)
		}
		return nil, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Train detects the first face in every dataset image, labels it with the
// owner ID and fits a model. No model file is written when no face was found.
func Train(detector vision.Detector, opts Options) (*Result, error) {
	files, err := ListImages(opts.DatasetDir)
	if err != nil {
		return nil, err
	}
	slog.Info("Found images in dataset", "count", len(files), "dir", opts.DatasetDir)

	result := &Result{
		Found:     len(files),
		Skipped:   make(map[string]string),
		ModelFile: opts.ModelFile,
	}

	bar := newBar(len(files), opts.Progress)
	var faces []*image.Gray
	for _, path := range files {
		name := filepath.Base(path)
		face, reason := extractFace(detector, path, opts)
		if face == nil {
			slog.Warn("Skipping image", "file", name, "reason", reason)
			result.Skipped[name] = reason
		} else {
			slog.Debug("Added face", "file", name)
			faces = append(faces, face)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if len(faces) == 0 {
		return result, fmt.Errorf("%w: fix dataset images and retry", facemodel.ErrNoSamples)
	}

	labels := make([]int, len(faces))
	for i := range labels {
		labels[i] = opts.OwnerID
	}

	model, err := facemodel.Train(faces, labels, opts.Params)
	if err != nil {
		return result, err
	}
	if err := model.Save(opts.ModelFile); err != nil {
		return result, err
	}

	result.Samples = len(model.Samples)
	return result, nil
}

// extractFace returns the first detected face of the image at path, or a
// reason why none could be taken.
func extractFace(detector vision.Detector, path string, opts Options) (*image.Gray, string) {
	img, err := imaging.DecodeFile(path)
	if err != nil {
		return nil, "could not read image"
	}

	gray := imaging.FitWithin(imaging.ToGray(img), opts.MaxDimension)
	rects, err := detector.Detect(gray, opts.MinFaceSize)
	if err != nil {
		return nil, fmt.Sprintf("detection failed: %v", err)
	}
	if len(rects) == 0 {
		return nil, "no face detected"
	}

	face := imaging.Crop(gray, rects[0])
	if face == nil {
		return nil, "face outside image"
	}
	return face, ""
}

func newBar(total int, w io.Writer) *progressbar.ProgressBar {
	if w == nil || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Collecting faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
