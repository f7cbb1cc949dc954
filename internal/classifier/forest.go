package classifier

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const leafNode = -1

// tree is one decision tree in scikit-learn's flat tree_ layout. Node 0 is
// the root; a node is a leaf when both children are -1. Samples go left when
// x[feature] <= threshold.
type tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Forest is a random forest exported from scikit-learn. Class probabilities
// are the mean of every tree's normalized leaf distribution, as
// predict_proba computes them.
type Forest struct {
	Features   int    `json:"n_features"`
	ClassIDs   []int  `json:"classes"`
	Estimators []tree `json:"estimators"`
}

// LoadForest reads a forest from a JSON file.
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read forest: %w", err)
	}
	return ParseForest(data)
}

// ParseForest decodes and validates a forest.
func ParseForest(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode forest: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Forest) validate() error {
	if f.Features <= 0 {
		return fmt.Errorf("forest: n_features must be positive, got %d", f.Features)
	}
	if len(f.ClassIDs) == 0 {
		return fmt.Errorf("forest: no classes")
	}
	if len(f.Estimators) == 0 {
		return fmt.Errorf("forest: no estimators")
	}
	for i, t := range f.Estimators {
		if err := t.validate(f.Features, len(f.ClassIDs)); err != nil {
			return fmt.Errorf("forest: estimator %d: %w", i, err)
		}
	}
	return nil
}

func (t *tree) validate(nFeatures, nClasses int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays differ in length")
	}
	for node := 0; node < n; node++ {
		left, right := t.ChildrenLeft[node], t.ChildrenRight[node]
		if left == leafNode || right == leafNode {
			if left != right {
				return fmt.Errorf("node %d has a single child", node)
			}
			if len(t.Value[node]) != nClasses {
				return fmt.Errorf("leaf %d has %d values, want %d", node, len(t.Value[node]), nClasses)
			}
			continue
		}
		// children always follow their parent, so every walk terminates
		if left <= node || left >= n || right <= node || right >= n {
			return fmt.Errorf("node %d has invalid children %d/%d", node, left, right)
		}
		if f := t.Feature[node]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", node, f, nFeatures)
		}
	}
	return nil
}

func (t *tree) leaf(vec []float64) []float64 {
	node := 0
	for t.ChildrenLeft[node] != leafNode {
		if vec[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

func (f *Forest) NumFeatures() int { return f.Features }

func (f *Forest) Classes() []int { return f.ClassIDs }

func (f *Forest) PredictProbabilities(vec []float64) ([]float64, error) {
	if len(vec) != f.Features {
		return nil, fmt.Errorf("forest expects %d features, got %d", f.Features, len(vec))
	}
	probs := make([]float64, len(f.ClassIDs))
	for i := range f.Estimators {
		dist := f.Estimators[i].leaf(vec)
		var total float64
		for _, v := range dist {
			total += v
		}
		if total == 0 {
			continue
		}
		for c, v := range dist {
			probs[c] += v / total
		}
	}
	for c := range probs {
		probs[c] /= float64(len(f.Estimators))
	}
	return probs, nil
}

func (f *Forest) Predict(vec []float64) (int, error) {
	probs, err := f.PredictProbabilities(vec)
	if err != nil {
		return 0, err
	}
	return f.ClassIDs[argmax(probs)], nil
}
