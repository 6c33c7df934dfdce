package facemodel

import (
	"errors"
	"math"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/cybereye/internal/constants"
)

// index wraps the HNSW graph for nearest-sample search over LBPH histograms.
type index struct {
	graph   *hnsw.Graph[int]
	samples []Sample // node key is the position in this slice
}

// newIndex builds the graph from samples, skipping empty histograms.
func newIndex(samples []Sample) *index {
	g := hnsw.NewGraph[int]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = constants.HNSWEfSearch
	g.Distance = ChiSquareDistance

	for i := range samples {
		if len(samples[i].Histogram) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, samples[i].Histogram))
	}

	return &index{graph: g, samples: samples}
}

// nearest returns the label of the closest sample and its chi-square distance.
func (x *index) nearest(query []float32) (int, float64, error) {
	if x.graph == nil || x.graph.Len() == 0 {
		return 0, 0, errors.New("index is empty")
	}

	k := min(constants.HNSWSearchK, x.graph.Len())
	neighbors := x.graph.Search(query, k)
	if len(neighbors) == 0 {
		return 0, 0, errors.New("no neighbours found")
	}

	// Re-rank candidates with the exact distance computed from the node values.
	bestLabel, bestDist := 0, math.Inf(1)
	for _, n := range neighbors {
		d := float64(ChiSquareDistance(query, n.Value))
		if d < bestDist {
			bestDist = d
			bestLabel = x.samples[n.Key].Label
		}
	}
	return bestLabel, bestDist, nil
}
