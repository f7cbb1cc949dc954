package features

import (
	"math"

	"go-leaf-inspector/internal/preprocess"

	"gonum.org/v1/gonum/floats"
)

const (
	lbpRadius = 1.0
	lbpPoints = 8
	// codes 0..P are uniform patterns by number of set bits, P+1 is
	// every non-uniform pattern
	lbpBins = lbpPoints + 2
)

// lbpOffsets are the (row, col) sample offsets around a pixel, rounded to five
// decimals so that axis-aligned samples land exactly on neighbours.
var lbpOffsets = func() [lbpPoints][2]float64 {
	var offs [lbpPoints][2]float64
	for p := 0; p < lbpPoints; p++ {
		angle := 2 * math.Pi * float64(p) / lbpPoints
		offs[p][0] = round5(-lbpRadius * math.Sin(angle))
		offs[p][1] = round5(lbpRadius * math.Cos(angle))
	}
	return offs
}()

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

// localBinaryPattern is the histogram of rotation-invariant uniform LBP codes.
type localBinaryPattern struct{}

// NewLocalBinaryPattern returns the LBP strategy (10 values).
func NewLocalBinaryPattern() Strategy {
	return localBinaryPattern{}
}

func (localBinaryPattern) Name() string { return "LBP" }

func (localBinaryPattern) Length() int { return lbpBins }

func (s localBinaryPattern) Extract(img *preprocess.Image) ([]float64, error) {
	if img == nil {
		img = &preprocess.Image{}
	}
	if err := checkView(s.Name(), img.Gray, 1); err != nil {
		return nil, err
	}

	hist := make([]float64, lbpBins)
	v := img.Gray
	for y := 0; y < v.Height; y++ {
		for x := 0; x < v.Width; x++ {
			hist[uniformCode(v, x, y)]++
		}
	}
	floats.Scale(1/(floats.Sum(hist)+histogramEpsilon), hist)
	return hist, nil
}

// uniformCode computes the uniform LBP code of the pixel at (x, y). A pattern
// is uniform when its bit string, read from the first to the last sample
// without wrapping around, has at most two 0/1 transitions.
func uniformCode(v preprocess.View, x, y int) int {
	center := v.At(0, x, y)

	var bits [lbpPoints]bool
	for p, off := range lbpOffsets {
		sample := bilinear(v, float64(y)+off[0], float64(x)+off[1])
		bits[p] = sample-center >= 0
	}

	changes, ones := 0, 0
	for p := 0; p < lbpPoints; p++ {
		if bits[p] {
			ones++
		}
		if p < lbpPoints-1 && bits[p] != bits[p+1] {
			changes++
		}
	}
	if changes <= 2 {
		return ones
	}
	return lbpPoints + 1
}

// bilinear samples plane 0 of v at fractional (row, col); positions outside
// the image read as 0.
func bilinear(v preprocess.View, r, c float64) float64 {
	minR, minC := math.Floor(r), math.Floor(c)
	maxR, maxC := math.Ceil(r), math.Ceil(c)
	dr, dc := r-minR, c-minC

	topLeft := pixelOrZero(v, int(minR), int(minC))
	topRight := pixelOrZero(v, int(minR), int(maxC))
	bottomLeft := pixelOrZero(v, int(maxR), int(minC))
	bottomRight := pixelOrZero(v, int(maxR), int(maxC))

	top := (1-dc)*topLeft + dc*topRight
	bottom := (1-dc)*bottomLeft + dc*bottomRight
	return (1-dr)*top + dr*bottom
}

func pixelOrZero(v preprocess.View, row, col int) float64 {
	if row < 0 || row >= v.Height || col < 0 || col >= v.Width {
		return 0
	}
	return v.At(0, col, row)
}
