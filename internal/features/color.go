package features

import (
	"go-leaf-inspector/internal/preprocess"

	"gonum.org/v1/gonum/floats"
)

const colorBins = 256

// colorHistogram concatenates one normalized 256-bin intensity histogram per
// RGB channel.
type colorHistogram struct{}

// NewColorHistogram returns the COLOR strategy (768 values).
func NewColorHistogram() Strategy {
	return colorHistogram{}
}

func (colorHistogram) Name() string { return "COLOR" }

func (colorHistogram) Length() int { return 3 * colorBins }

func (s colorHistogram) Extract(img *preprocess.Image) ([]float64, error) {
	if img == nil {
		img = &preprocess.Image{}
	}
	if err := checkView(s.Name(), img.RGB, 3); err != nil {
		return nil, err
	}

	out := make([]float64, 0, s.Length())
	for _, plane := range img.RGB.Planes {
		hist := make([]float64, colorBins)
		for _, v := range plane {
			hist[preprocess.ToByte(v)]++
		}
		floats.Scale(1/(floats.Sum(hist)+histogramEpsilon), hist)
		out = append(out, hist...)
	}
	return out, nil
}
