package classifier

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "go-leaf-inspector/internal/errors"
	"go-leaf-inspector/internal/features"
	"go-leaf-inspector/internal/logger"

	"github.com/sirupsen/logrus"
)

// lbpForest is a two-tree forest over the 10 LBP features. The first tree
// splits on feature 0 at 0.5; the second is a single leaf.
const lbpForest = `{
  "n_features": 10,
  "classes": [0, 1, 2, 3],
  "estimators": [
    {
      "children_left":  [1, -1, -1],
      "children_right": [2, -1, -1],
      "feature":        [0, -2, -2],
      "threshold":      [0.5, -2, -2],
      "value":          [[1, 3, 0, 5], [0, 0, 0, 5], [1, 3, 0, 0]]
    },
    {
      "children_left":  [-1],
      "children_right": [-1],
      "feature":        [-2],
      "threshold":      [-2],
      "value":          [[2, 0, 0, 2]]
    }
  ]
}`

func vector(first float64) []float64 {
	v := make([]float64, 10)
	v[0] = first
	return v
}

func TestForest_Predict(t *testing.T) {
	f, err := ParseForest([]byte(lbpForest))
	if err != nil {
		t.Fatalf("ParseForest: %v", err)
	}

	testCases := []struct {
		name  string
		first float64
		class int
		probs []float64
	}{
		{"left branch", 0.2, 3, []float64{0.25, 0, 0, 0.75}},
		{"threshold goes left", 0.5, 3, []float64{0.25, 0, 0, 0.75}},
		// tie between classes 0 and 1 resolves to the first
		{"right branch", 0.9, 0, []float64{0.375, 0.375, 0, 0.25}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			probs, err := f.PredictProbabilities(vector(tc.first))
			if err != nil {
				t.Fatal(err)
			}
			for i := range tc.probs {
				if math.Abs(probs[i]-tc.probs[i]) > 1e-12 {
					t.Errorf("probs = %v, want %v", probs, tc.probs)
					break
				}
			}
			class, err := f.Predict(vector(tc.first))
			if err != nil {
				t.Fatal(err)
			}
			if class != tc.class {
				t.Errorf("Predict = %d, want %d", class, tc.class)
			}
		})
	}

	if _, err := f.Predict(make([]float64, 3)); err == nil {
		t.Error("Expected error for short vector")
	}
}

func TestParseForest_Invalid(t *testing.T) {
	testCases := map[string]string{
		"not json":        `{`,
		"no features":     `{"n_features": 0, "classes": [0], "estimators": [{"children_left":[-1],"children_right":[-1],"feature":[-2],"threshold":[0],"value":[[1]]}]}`,
		"no classes":      `{"n_features": 1, "classes": [], "estimators": [{"children_left":[-1],"children_right":[-1],"feature":[-2],"threshold":[0],"value":[[1]]}]}`,
		"no estimators":   `{"n_features": 1, "classes": [0], "estimators": []}`,
		"ragged arrays":   `{"n_features": 1, "classes": [0], "estimators": [{"children_left":[-1],"children_right":[-1, -1],"feature":[-2],"threshold":[0],"value":[[1]]}]}`,
		"backward child":  `{"n_features": 1, "classes": [0], "estimators": [{"children_left":[0,-1],"children_right":[1,-1],"feature":[0,-2],"threshold":[0,0],"value":[[1],[1]]}]}`,
		"feature range":   `{"n_features": 1, "classes": [0], "estimators": [{"children_left":[1,-1,-1],"children_right":[2,-1,-1],"feature":[4,-2,-2],"threshold":[0,0,0],"value":[[1],[1],[1]]}]}`,
		"leaf width":      `{"n_features": 1, "classes": [0, 1], "estimators": [{"children_left":[-1],"children_right":[-1],"feature":[-2],"threshold":[0],"value":[[1]]}]}`,
		"single child":    `{"n_features": 1, "classes": [0], "estimators": [{"children_left":[1,-1],"children_right":[-1,-1],"feature":[0,-2],"threshold":[0,0],"value":[[1],[1]]}]}`,
		"empty estimator": `{"n_features": 1, "classes": [0], "estimators": [{}]}`,
	}

	for name, doc := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseForest([]byte(doc)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

// labelOnly is a model without posteriors.
type labelOnly struct {
	class int
	width int
}

func (m labelOnly) Predict([]float64) (int, error) { return m.class, nil }
func (m labelOnly) NumFeatures() int               { return m.width }

// brokenPosteriors predicts a class but fails to produce probabilities.
type brokenPosteriors struct{ labelOnly }

func (brokenPosteriors) Classes() []int { return DefaultClasses }
func (brokenPosteriors) PredictProbabilities([]float64) ([]float64, error) {
	return nil, errors.New("probabilities output missing")
}

func TestHandle_ClassifyLogsProbabilityFailure(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevLevel := logger.Logger.Out, logger.Logger.GetLevel()
	logger.Logger.SetOutput(&buf)
	logger.Logger.SetLevel(logrus.DebugLevel)
	t.Cleanup(func() {
		logger.Logger.SetOutput(prevOut)
		logger.Logger.SetLevel(prevLevel)
	})

	lbp, _ := features.Lookup("LBP")
	h := &Handle{Name: "LBP_ONNX", Strategy: lbp, Model: brokenPosteriors{labelOnly{class: 1, width: 10}}}
	out, err := h.Classify(vector(0))
	if err != nil {
		t.Fatal(err)
	}
	if out.ClassID != 1 || out.Confidence != nil {
		t.Errorf("Unexpected output %+v", out)
	}

	logged := buf.String()
	for _, want := range []string{`"level":"debug"`, `"component":"classifier"`, `"model":"LBP_ONNX"`, "probabilities output missing"} {
		if !strings.Contains(logged, want) {
			t.Errorf("Expected %s in log %q", want, logged)
		}
	}
}

func TestHandle_Classify(t *testing.T) {
	forest, err := ParseForest([]byte(lbpForest))
	if err != nil {
		t.Fatal(err)
	}
	lbp, _ := features.Lookup("LBP")

	t.Run("with probabilities", func(t *testing.T) {
		h := &Handle{Name: "LBP_RF", Strategy: lbp, Model: forest}
		out, err := h.Classify(vector(0.1))
		if err != nil {
			t.Fatal(err)
		}
		if out.ClassID != 3 {
			t.Errorf("ClassID = %d, want 3", out.ClassID)
		}
		if out.Confidence == nil || math.Abs(*out.Confidence-0.75) > 1e-12 {
			t.Errorf("Confidence = %v, want 0.75", out.Confidence)
		}
		if len(out.Probabilities) != 4 || out.Probabilities[3] != 0.75 {
			t.Errorf("Unexpected probabilities %v", out.Probabilities)
		}
	})

	t.Run("without probabilities", func(t *testing.T) {
		h := &Handle{Name: "LBP_SVM", Strategy: lbp, Model: labelOnly{class: 2, width: 10}}
		out, err := h.Classify(vector(0))
		if err != nil {
			t.Fatal(err)
		}
		if out.ClassID != 2 || out.Confidence != nil || out.Probabilities != nil {
			t.Errorf("Unexpected output %+v", out)
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		h := &Handle{Name: "LBP_RF", Strategy: lbp, Model: forest}
		_, err := h.Classify(make([]float64, 768))
		if !apperrors.IsType(err, apperrors.ErrorTypeModelUnavailable) {
			t.Errorf("Expected model_unavailable, got %v", err)
		}
	})

	t.Run("failed handle", func(t *testing.T) {
		h := &Handle{Name: "LBP_RF", Err: os.ErrNotExist}
		_, err := h.Classify(vector(0))
		if !apperrors.IsType(err, apperrors.ErrorTypeModelUnavailable) {
			t.Errorf("Expected model_unavailable, got %v", err)
		}
	})

	t.Run("nil handle", func(t *testing.T) {
		var h *Handle
		if _, err := h.Classify(vector(0)); !apperrors.IsType(err, apperrors.ErrorTypeModelUnavailable) {
			t.Errorf("Expected model_unavailable, got %v", err)
		}
	})
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`
models:
  - name: COLOR_RF
    path: model_COLOR_RF.json
    accuracy: 0.91
  - name: glcm_rf
    strategy: glcm
    path: glcm.onnx
    probability_output: ""
`))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if len(m.Models) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(m.Models))
	}

	color := m.Models[0]
	if color.StrategyName() != "COLOR" || color.Format != FormatForest || color.Accuracy != 0.91 {
		t.Errorf("Unexpected defaults %+v", color)
	}
	if len(color.Classes) != 4 || color.probabilityOutput() != "probabilities" {
		t.Errorf("Unexpected defaults %+v", color)
	}

	glcm := m.Models[1]
	if glcm.StrategyName() != "GLCM" || glcm.Format != FormatONNX {
		t.Errorf("Unexpected entry %+v", glcm)
	}
	if glcm.InputName != "float_input" || glcm.LabelOutput != "label" || glcm.probabilityOutput() != "" {
		t.Errorf("Unexpected onnx names %+v", glcm)
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	testCases := map[string]string{
		"bad yaml":  "models: [",
		"no name":   "models:\n  - path: a.json\n",
		"no path":   "models:\n  - name: LBP_RF\n",
		"duplicate": "models:\n  - name: LBP_RF\n    path: a.json\n  - name: lbp_rf\n    path: b.json\n",
	}
	for name, doc := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(doc)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoaderFactory(t *testing.T) {
	f := NewLoaderFactory("")
	for _, format := range []Format{FormatForest, FormatONNX} {
		if _, err := f.CreateLoader(format); err != nil {
			t.Errorf("CreateLoader(%s): %v", format, err)
		}
	}
	if _, err := f.CreateLoader("pickle"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

// writeModels writes lbpForest and a manifest into a temp dir and returns
// the manifest path.
func writeModels(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "model_LBP_RF.json"), []byte(lbpForest), 0o644); err != nil {
		t.Fatal(err)
	}
	manifest := `
models:
  - name: LBP_RF
    path: model_LBP_RF.json
    accuracy: 0.88
  - name: COLOR_RF
    path: missing.json
  - name: GLCM_RF
    path: model_LBP_RF.json
  - name: HOG_RF
    path: model_LBP_RF.json
  - name: LBP_XGB
    format: xgboost
    path: model_LBP_RF.json
`
	path := filepath.Join(dir, "models.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRegistry_IsolatesFailures(t *testing.T) {
	r, err := LoadRegistryFile(writeModels(t), NewLoaderFactory(""), 3)
	if err != nil {
		t.Fatalf("LoadRegistryFile: %v", err)
	}
	defer r.Close()

	if r.Available() != 1 {
		t.Errorf("Expected 1 usable model, got %d", r.Available())
	}

	h, err := r.Get("lbp_rf")
	if err != nil {
		t.Fatalf("Get(lbp_rf): %v", err)
	}
	if h.Strategy.Name() != "LBP" || h.Accuracy != 0.88 {
		t.Errorf("Unexpected handle %+v", h)
	}

	for _, name := range []string{"COLOR_RF", "GLCM_RF", "HOG_RF", "LBP_XGB"} {
		if _, err := r.Get(name); !apperrors.IsType(err, apperrors.ErrorTypeModelUnavailable) {
			t.Errorf("Get(%s): expected model_unavailable, got %v", name, err)
		}
	}

	infos := r.List()
	if len(infos) != 5 {
		t.Fatalf("Expected 5 entries, got %d", len(infos))
	}
	for _, info := range infos {
		if info.Loaded != (info.Name == "LBP_RF") {
			t.Errorf("%s: loaded = %v", info.Name, info.Loaded)
		}
		if !info.Loaded && info.Error == "" {
			t.Errorf("%s: expected an error message", info.Name)
		}
	}
}

func TestRegistry_GetSuggestsNearestName(t *testing.T) {
	r, err := LoadRegistryFile(writeModels(t), NewLoaderFactory(""), 2)
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Get("LBP_FR")
	if !apperrors.IsType(err, apperrors.ErrorTypeModelUnavailable) {
		t.Fatalf("Expected model_unavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), `did you mean "LBP_RF"`) {
		t.Errorf("Expected suggestion in %q", err.Error())
	}

	if got := NewRegistry().Suggest("anything"); got != "" {
		t.Errorf("Empty registry suggested %q", got)
	}
}

func TestLoadRegistry_Deterministic(t *testing.T) {
	path := writeModels(t)
	first, err := LoadRegistryFile(path, NewLoaderFactory(""), 1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := LoadRegistryFile(path, NewLoaderFactory(""), 4)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := first.Get("LBP_RF")
	b, _ := second.Get("LBP_RF")

	for _, v := range []float64{0, 0.3, 0.5, 0.51, 1} {
		x, err := a.Classify(vector(v))
		if err != nil {
			t.Fatal(err)
		}
		y, err := b.Classify(vector(v))
		if err != nil {
			t.Fatal(err)
		}
		if x.ClassID != y.ClassID || *x.Confidence != *y.Confidence {
			t.Errorf("v=%v: %+v != %+v", v, x, y)
		}
	}
}

func TestLoadRegistryFile_MissingManifest(t *testing.T) {
	if _, err := LoadRegistryFile(filepath.Join(t.TempDir(), "nope.yaml"), NewLoaderFactory(""), 1); err == nil {
		t.Error("Expected error for missing manifest")
	}
}
