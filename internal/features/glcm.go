package features

import (
	"math"

	apperrors "go-leaf-inspector/internal/errors"
	"go-leaf-inspector/internal/preprocess"

	"gonum.org/v1/gonum/mat"
)

const glcmLevels = 256

// constantStdDev is the spread below which a GLCM marginal is treated as
// constant, in which case correlation is defined as 1.
const constantStdDev = 1e-15

// cooccurrence summarizes the gray-level co-occurrence matrix of horizontally
// adjacent pixels (distance 1, angle 0).
type cooccurrence struct{}

// NewCooccurrence returns the GLCM strategy (4 values: contrast, correlation,
// energy, homogeneity).
func NewCooccurrence() Strategy {
	return cooccurrence{}
}

func (cooccurrence) Name() string { return "GLCM" }

func (cooccurrence) Length() int { return 4 }

func (s cooccurrence) Extract(img *preprocess.Image) ([]float64, error) {
	if img == nil {
		img = &preprocess.Image{}
	}
	if err := checkView(s.Name(), img.Gray, 1); err != nil {
		return nil, err
	}
	if img.Gray.Width < 2 {
		return nil, apperrors.NewFeatureExtractionError("GLCM: image must be at least 2 pixels wide", nil)
	}

	p := Cooccurrence(img.Gray)
	return []float64{
		glcmContrast(p),
		glcmCorrelation(p),
		glcmEnergy(p),
		glcmHomogeneity(p),
	}, nil
}

// Cooccurrence builds the symmetric, normalized 256-level GLCM of plane 0 of v
// for offset (0, +1).
func Cooccurrence(v preprocess.View) *mat.Dense {
	counts := mat.NewDense(glcmLevels, glcmLevels, nil)
	for y := 0; y < v.Height; y++ {
		for x := 0; x+1 < v.Width; x++ {
			i := int(preprocess.ToByte(v.At(0, x, y)))
			j := int(preprocess.ToByte(v.At(0, x+1, y)))
			counts.Set(i, j, counts.At(i, j)+1)
		}
	}

	var sym mat.Dense
	sym.Add(counts, counts.T())
	if total := mat.Sum(&sym); total > 0 {
		sym.Scale(1/total, &sym)
	}
	return &sym
}

func glcmContrast(p *mat.Dense) float64 {
	var sum float64
	forEachNonZero(p, func(i, j int, v float64) {
		d := float64(i - j)
		sum += v * d * d
	})
	return sum
}

func glcmHomogeneity(p *mat.Dense) float64 {
	var sum float64
	forEachNonZero(p, func(i, j int, v float64) {
		d := float64(i - j)
		sum += v / (1 + d*d)
	})
	return sum
}

func glcmEnergy(p *mat.Dense) float64 {
	var asm float64
	forEachNonZero(p, func(_, _ int, v float64) {
		asm += v * v
	})
	return math.Sqrt(asm)
}

func glcmCorrelation(p *mat.Dense) float64 {
	var meanI, meanJ float64
	forEachNonZero(p, func(i, j int, v float64) {
		meanI += float64(i) * v
		meanJ += float64(j) * v
	})

	var varI, varJ, cov float64
	forEachNonZero(p, func(i, j int, v float64) {
		di, dj := float64(i)-meanI, float64(j)-meanJ
		varI += v * di * di
		varJ += v * dj * dj
		cov += v * di * dj
	})

	stdI, stdJ := math.Sqrt(varI), math.Sqrt(varJ)
	if stdI < constantStdDev || stdJ < constantStdDev {
		return 1
	}
	return cov / (stdI * stdJ)
}

func forEachNonZero(p *mat.Dense, fn func(i, j int, v float64)) {
	rows, cols := p.Dims()
	for i := 0; i < rows; i++ {
		for j, v := range p.RawRowView(i)[:cols] {
			if v != 0 {
				fn(i, j, v)
			}
		}
	}
}
