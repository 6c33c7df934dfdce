// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// File naming constants
const (
	// CapturePrefix is prepended to every saved intruder photo
	CapturePrefix = "intruder_"

	// CaptureTimeLayout formats the capture timestamp in file names (YYYYMMDD_HHMMSS)
	CaptureTimeLayout = "20060102_150405"

	// CaptureExt is the extension of saved captures; cooldown only considers these
	CaptureExt = ".jpg"

	// SamplePrefix starts every enrolled face sample name (User.<id>.<n>.jpg)
	SamplePrefix = "User"
)

// Image constants
const (
	// JPEGQuality is used for captures and face samples
	JPEGQuality = 95
)

// LBPH face model constants
const (
	// LBPHRadius is the radius of the circular local binary pattern
	LBPHRadius = 1

	// LBPHNeighbors is the number of sample points on the circle
	LBPHNeighbors = 8

	// LBPHGridX and LBPHGridY split the face into cells, one histogram per cell
	LBPHGridX = 8
	LBPHGridY = 8
)

// Nearest neighbour index parameters for LBPH histograms
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Enrolled datasets are small, so this covers every sample.
	HNSWEfSearch = 100

	// HNSWSearchK is the number of candidates re-ranked with the exact distance
	HNSWSearchK = 5
)

// LocationUnavailable replaces the location line when the lookup fails
const LocationUnavailable = "Location unavailable"
