package classifier

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies how a model artifact is serialized.
type Format string

const (
	// FormatForest is a scikit-learn random forest exported to JSON
	FormatForest Format = "forest"
	// FormatONNX is a skl2onnx export evaluated with onnxruntime
	FormatONNX Format = "onnx"
)

// FormatFromPath guesses the format from the artifact's extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".onnx":
		return FormatONNX
	default:
		return FormatForest
	}
}

// Loader opens model artifacts of one format.
type Loader interface {
	Load(entry ManifestEntry, path string) (Model, error)
}

// LoaderFactory creates loaders by format.
type LoaderFactory interface {
	CreateLoader(format Format) (Loader, error)
}

type forestLoader struct{}

func (forestLoader) Load(_ ManifestEntry, path string) (Model, error) {
	return LoadForest(path)
}

type onnxLoader struct {
	library string
}

func (l onnxLoader) Load(entry ManifestEntry, path string) (Model, error) {
	return LoadONNX(path, ONNXOptions{
		Library:           l.library,
		Features:          entry.Features,
		Classes:           entry.Classes,
		InputName:         entry.InputName,
		LabelOutput:       entry.LabelOutput,
		ProbabilityOutput: entry.probabilityOutput(),
	})
}

// loaderFactory implements LoaderFactory
type loaderFactory struct {
	onnxLibrary string
}

// NewLoaderFactory creates a loader factory. onnxLibrary is the onnxruntime
// shared library path, empty for the platform default.
func NewLoaderFactory(onnxLibrary string) LoaderFactory {
	return &loaderFactory{onnxLibrary: onnxLibrary}
}

// CreateLoader creates a loader for the specified format
func (f *loaderFactory) CreateLoader(format Format) (Loader, error) {
	switch format {
	case FormatForest:
		return forestLoader{}, nil
	case FormatONNX:
		return onnxLoader{library: f.onnxLibrary}, nil
	default:
		return nil, fmt.Errorf("unsupported model format: %s", format)
	}
}
