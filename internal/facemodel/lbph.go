package facemodel

import (
	"image"
	"math"
)

// Params describes the local binary pattern operator and the spatial grid.
type Params struct {
	Radius    int `json:"radius"`
	Neighbors int `json:"neighbors"`
	GridX     int `json:"grid_x"`
	GridY     int `json:"grid_y"`
}

// Bins returns the number of histogram bins per grid cell.
func (p Params) Bins() int {
	return 1 << p.Neighbors
}

// Dim returns the length of a full spatial histogram.
func (p Params) Dim() int {
	return p.GridX * p.GridY * p.Bins()
}

// lbp computes the extended (circular, bilinearly interpolated) local binary
// pattern of src. The result is smaller than src by Radius on every side;
// nil is returned when src is too small.
func lbp(src *image.Gray, p Params) (codes []int, width, height int) {
	bounds := src.Bounds()
	width = bounds.Dx() - 2*p.Radius
	height = bounds.Dy() - 2*p.Radius
	if width <= 0 || height <= 0 {
		return nil, 0, 0
	}

	// Pix[0] is always bounds.Min, so local coordinates index Pix directly.
	at := func(x, y int) float64 {
		return float64(src.Pix[y*src.Stride+x])
	}

	codes = make([]int, width*height)
	r := float64(p.Radius)
	for n := range p.Neighbors {
		angle := 2 * math.Pi * float64(n) / float64(p.Neighbors)
		x := r * math.Cos(angle)
		y := -r * math.Sin(angle)

		fx, fy := int(math.Floor(x)), int(math.Floor(y))
		cx, cy := int(math.Ceil(x)), int(math.Ceil(y))
		tx, ty := x-float64(fx), y-float64(fy)

		w1 := (1 - tx) * (1 - ty)
		w2 := tx * (1 - ty)
		w3 := (1 - tx) * ty
		w4 := tx * ty

		for i := p.Radius; i < bounds.Dy()-p.Radius; i++ {
			for j := p.Radius; j < bounds.Dx()-p.Radius; j++ {
				t := w1*at(j+fx, i+fy) + w2*at(j+cx, i+fy) + w3*at(j+fx, i+cy) + w4*at(j+cx, i+cy)
				center := at(j, i)
				if t > center || math.Abs(t-center) < 1e-9 {
					codes[(i-p.Radius)*width+(j-p.Radius)] |= 1 << n
				}
			}
		}
	}
	return codes, width, height
}

// Histogram computes the spatial LBP histogram of a grayscale face. The face
// is split into GridX x GridY cells; each cell contributes an L1-normalized
// histogram of its pattern codes. Cells that end up empty stay zero.
func Histogram(face *image.Gray, p Params) []float32 {
	hist := make([]float32, p.Dim())

	codes, width, height := lbp(face, p)
	if codes == nil {
		return hist
	}

	cellW := width / p.GridX
	cellH := height / p.GridY
	if cellW == 0 || cellH == 0 {
		return hist
	}

	bins := p.Bins()
	total := float32(cellW * cellH)
	for gy := range p.GridY {
		for gx := range p.GridX {
			cell := hist[(gy*p.GridX+gx)*bins : (gy*p.GridX+gx+1)*bins]
			for y := gy * cellH; y < (gy+1)*cellH; y++ {
				for x := gx * cellW; x < (gx+1)*cellW; x++ {
					cell[codes[y*width+x]]++
				}
			}
			for i := range cell {
				cell[i] /= total
			}
		}
	}
	return hist
}

// ChiSquareDistance compares two histograms with the symmetric chi-square
// statistic sum(2*(a-b)^2/(a+b)). Zero means identical; mismatched lengths
// yield +Inf.
func ChiSquareDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return float32(math.Inf(1))
	}
	var sum float64
	for i := range a {
		s := float64(a[i]) + float64(b[i])
		if s > 1e-12 {
			d := float64(a[i]) - float64(b[i])
			sum += 2 * d * d / s
		}
	}
	return float32(sum)
}
