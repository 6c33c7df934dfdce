// Package captures manages the directory of intruder photos: naming and
// saving new captures, finding the most recent one for cooldown decisions
// and pruning old files.
package captures

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kozaktomas/cybereye/internal/constants"
	"github.com/kozaktomas/cybereye/internal/imaging"
)

// maxSameSecond bounds the suffixes tried for captures within one second.
const maxSameSecond = 1000

// Capture is one saved photo.
type Capture struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Store is a flat directory of timestamped JPEG captures.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the capture directory.
func (s *Store) Dir() string {
	return s.dir
}

// Ensure creates the capture directory if it does not exist.
func (s *Store) Ensure() error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("failed to create capture directory: %w", err)
	}
	return nil
}

// FileName returns the capture file name for a timestamp, e.g. intruder_20250101_093000.jpg.
func FileName(t time.Time) string {
	return constants.CapturePrefix + t.Format(constants.CaptureTimeLayout) + constants.CaptureExt
}

// NextPath returns a path for a capture taken at t. When a capture already
// exists for the same second a numeric suffix is added instead of overwriting it.
// Any error other than "does not exist" while probing a name is returned.
func (s *Store) NextPath(t time.Time) (string, error) {
	base := strings.TrimSuffix(FileName(t), constants.CaptureExt)
	for i := 1; i <= maxSameSecond; i++ {
		name := base + constants.CaptureExt
		if i > 1 {
			name = fmt.Sprintf("%s_%d%s", base, i, constants.CaptureExt)
		}
		candidate := filepath.Join(s.dir, name)

		_, err := os.Stat(candidate)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return candidate, nil
		case err != nil:
			return "", fmt.Errorf("failed to check capture path: %w", err)
		}
	}
	return "", fmt.Errorf("too many captures for %s", t.Format(constants.CaptureTimeLayout))
}

// Save writes frame as a new capture taken at t and returns its path.
func (s *Store) Save(frame image.Image, t time.Time) (string, error) {
	if err := s.Ensure(); err != nil {
		return "", err
	}
	path, err := s.NextPath(t)
	if err != nil {
		return "", err
	}
	if err := imaging.SaveJPEG(path, frame); err != nil {
		return "", fmt.Errorf("failed to write capture: %w", err)
	}
	return path, nil
}

// List returns the saved captures (".jpg", any case), oldest first.
// A missing directory yields an empty list.
func (s *Store) List() ([]Capture, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read capture directory: %w", err)
	}

	var out []Capture
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), constants.CaptureExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out = append(out, Capture{
			Path:    filepath.Join(s.dir, entry.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ModTime.Before(out[j].ModTime)
	})
	return out, nil
}

// LastCaptureTime returns the modification time of the most recent capture.
// The boolean is false when there are no captures.
func (s *Store) LastCaptureTime() (time.Time, bool, error) {
	list, err := s.List()
	if err != nil {
		return time.Time{}, false, err
	}
	if len(list) == 0 {
		return time.Time{}, false, nil
	}
	return list[len(list)-1].ModTime, true, nil
}
