// Package facemodel implements the owner face model: local binary pattern
// histograms of enrolled faces, searched by nearest neighbour with a
// chi-square distance. The distance is reported as the confidence, so lower
// values mean a closer match.
package facemodel

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/kozaktomas/cybereye/internal/constants"
)

// modelVersion is bumped whenever the gob layout changes.
const modelVersion = 1

var (
	// ErrNoSamples is returned when training is attempted without any face.
	ErrNoSamples = errors.New("no face samples collected")

	// ErrModelNotFound is returned by Load when the model file does not exist.
	ErrModelNotFound = errors.New("model file not found")
)

// DefaultParams matches the classic LBPH recognizer: radius 1, 8 neighbours, 8x8 grid.
func DefaultParams() Params {
	return Params{
		Radius:    constants.LBPHRadius,
		Neighbors: constants.LBPHNeighbors,
		GridX:     constants.LBPHGridX,
		GridY:     constants.LBPHGridY,
	}
}

// Sample is one labelled training histogram.
type Sample struct {
	Label     int
	Histogram []float32
}

// Prediction is the result of classifying one face.
type Prediction struct {
	Label      int
	Confidence float64 // chi-square distance to the nearest sample
}

// Metadata is persisted next to the model for cheap inspection.
type Metadata struct {
	SampleCount int       `json:"sample_count"`
	Labels      []int     `json:"labels"`
	Params      Params    `json:"params"`
	BuildTime   time.Time `json:"build_time"`
	Version     int       `json:"version"`
}

// Model is a trained face model. It is read-only once built.
type Model struct {
	Params    Params
	Samples   []Sample
	TrainedAt time.Time

	idx *index
}

// Train fits a model from grayscale faces and their labels.
func Train(faces []*image.Gray, labels []int, params Params) (*Model, error) {
	if len(faces) != len(labels) {
		return nil, fmt.Errorf("got %d faces but %d labels", len(faces), len(labels))
	}
	if len(faces) == 0 {
		return nil, ErrNoSamples
	}

	samples := make([]Sample, 0, len(faces))
	for i, face := range faces {
		if face == nil {
			continue
		}
		samples = append(samples, Sample{
			Label:     labels[i],
			Histogram: Histogram(face, params),
		})
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	m := &Model{
		Params:    params,
		Samples:   samples,
		TrainedAt: time.Now(),
	}
	m.idx = newIndex(m.Samples)
	return m, nil
}

// Predict returns the label and confidence of the nearest enrolled sample.
func (m *Model) Predict(face *image.Gray) (Prediction, error) {
	if face == nil {
		return Prediction{}, errors.New("empty face image")
	}
	if m.idx == nil {
		m.idx = newIndex(m.Samples)
	}

	label, dist, err := m.idx.nearest(Histogram(face, m.Params))
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to search face model: %w", err)
	}
	return Prediction{Label: label, Confidence: dist}, nil
}

// Metadata describes the model for the .meta sidecar.
func (m *Model) Metadata() Metadata {
	seen := make(map[int]bool)
	var labels []int
	for _, s := range m.Samples {
		if !seen[s.Label] {
			seen[s.Label] = true
			labels = append(labels, s.Label)
		}
	}
	return Metadata{
		SampleCount: len(m.Samples),
		Labels:      labels,
		Params:      m.Params,
		BuildTime:   m.TrainedAt,
		Version:     modelVersion,
	}
}

type persistedModel struct {
	Version   int
	Params    Params
	Samples   []Sample
	TrainedAt time.Time
}

// Save writes the model to path (gob) and its metadata to path+".meta" (JSON).
// The model file is replaced atomically.
func (m *Model) Save(path string) error {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(persistedModel{
		Version:   modelVersion,
		Params:    m.Params,
		Samples:   m.Samples,
		TrainedAt: m.TrainedAt,
	}); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	metaData, err := json.Marshal(m.Metadata())
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load reads a model written by Save and rebuilds its search index.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var pm persistedModel
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&pm); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if pm.Version != modelVersion {
		return nil, fmt.Errorf("unsupported model version %d (expected %d), retrain the model", pm.Version, modelVersion)
	}
	if len(pm.Samples) == 0 {
		return nil, fmt.Errorf("model %s: %w", path, ErrNoSamples)
	}

	m := &Model{
		Params:    pm.Params,
		Samples:   pm.Samples,
		TrainedAt: pm.TrainedAt,
	}
	m.idx = newIndex(m.Samples)
	return m, nil
}

// LoadMetadata loads metadata from the .meta sidecar of the model at path.
func LoadMetadata(path string) (Metadata, error) {
	var metadata Metadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return metadata, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
