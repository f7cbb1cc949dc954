package features

import (
	"fmt"
	"sort"
	"strings"

	apperrors "go-leaf-inspector/internal/errors"
	"go-leaf-inspector/internal/preprocess"
)

// histogramEpsilon keeps histogram normalization finite on all-zero input.
const histogramEpsilon = 1e-6

// Strategy maps a normalized image to a fixed-length feature vector.
type Strategy interface {
	// Name is the tag models carry to select this strategy, e.g. "COLOR".
	Name() string
	// Length is the exact length of every vector Extract returns.
	Length() int
	Extract(img *preprocess.Image) ([]float64, error)
}

var strategies = map[string]Strategy{}

func register(s Strategy) {
	strategies[s.Name()] = s
}

func init() {
	register(NewColorHistogram())
	register(NewLocalBinaryPattern())
	register(NewCooccurrence())
}

// Lookup returns the strategy registered under name (case-insensitive).
func Lookup(name string) (Strategy, error) {
	s, ok := strategies[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown feature strategy %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return s, nil
}

// Names lists the registered strategy tags in sorted order.
func Names() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// checkView rejects empty or malformed views before a strategy touches them.
func checkView(strategy string, v preprocess.View, planes int) error {
	if v.Empty() {
		return apperrors.NewFeatureExtractionError(
			fmt.Sprintf("%s: image is empty", strategy), nil)
	}
	if len(v.Planes) != planes {
		return apperrors.NewFeatureExtractionError(
			fmt.Sprintf("%s: expected %d channel(s), got %d", strategy, planes, len(v.Planes)), nil)
	}
	n := v.Width * v.Height
	for i, p := range v.Planes {
		if len(p) != n {
			return apperrors.NewFeatureExtractionError(
				fmt.Sprintf("%s: channel %d has %d values, want %d", strategy, i, len(p), n), nil)
		}
	}
	return nil
}
