package classifier

import (
	"fmt"

	apperrors "go-leaf-inspector/internal/errors"
	"go-leaf-inspector/internal/features"
	"go-leaf-inspector/internal/logger"
)

// Model is a pre-trained classifier treated as a deterministic function from
// a feature vector to a class id.
type Model interface {
	Predict(vec []float64) (int, error)
	// NumFeatures is the exact vector length the model was trained on.
	NumFeatures() int
}

// ProbabilityModel is implemented by models that expose posteriors.
// Probabilities are aligned with Classes.
type ProbabilityModel interface {
	Model
	Classes() []int
	PredictProbabilities(vec []float64) ([]float64, error)
}

// Handle is a loaded (or failed) model together with the feature strategy it
// expects. Handles are never mutated after the registry has loaded them.
type Handle struct {
	Name     string
	Strategy features.Strategy
	Format   Format
	Path     string
	Accuracy float64
	Model    Model
	// Err is set when the model could not be loaded.
	Err error
}

// Output is the result of classifying one vector.
type Output struct {
	ClassID int
	// Confidence is the maximum posterior, nil when the model has none.
	Confidence    *float64
	Probabilities map[int]float64
}

// Usable reports whether the handle can classify.
func (h *Handle) Usable() bool {
	return h != nil && h.Err == nil && h.Model != nil && h.Strategy != nil
}

// Classify runs the model on vec.
func (h *Handle) Classify(vec []float64) (*Output, error) {
	if h == nil {
		return nil, apperrors.NewModelUnavailableError("no model selected", nil)
	}
	if !h.Usable() {
		return nil, apperrors.NewModelUnavailableError(fmt.Sprintf("model %s failed to load", h.Name), h.Err)
	}
	if len(vec) != h.Model.NumFeatures() {
		return nil, apperrors.NewModelUnavailableError(
			fmt.Sprintf("model %s expects %d features, got %d", h.Name, h.Model.NumFeatures(), len(vec)), nil)
	}

	id, err := h.Model.Predict(vec)
	if err != nil {
		return nil, apperrors.NewModelUnavailableError(fmt.Sprintf("model %s failed to predict", h.Name), err)
	}
	out := &Output{ClassID: id}

	pm, ok := h.Model.(ProbabilityModel)
	if !ok {
		return out, nil
	}
	probs, err := pm.PredictProbabilities(vec)
	if err != nil {
		// posteriors are optional
		logger.Component("classifier").WithError(err).WithField("model", h.Name).
			Debug("Probabilities unavailable, returning class only")
		return out, nil
	}
	classes := pm.Classes()
	out.Probabilities = make(map[int]float64, len(probs))
	best := -1.0
	for i, p := range probs {
		if i < len(classes) {
			out.Probabilities[classes[i]] = p
		}
		if p > best {
			best = p
		}
	}
	if len(probs) > 0 {
		out.Confidence = &best
	}
	return out, nil
}

// argmax returns the index of the first maximum.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
