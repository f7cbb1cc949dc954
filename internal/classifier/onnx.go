package classifier

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
	runtimeUp   bool
	runtimeMu   sync.Mutex
)

// initRuntime initializes the onnxruntime environment once per process.
func initRuntime(library string) error {
	runtimeOnce.Do(func() {
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			runtimeErr = fmt.Errorf("failed to initialize ONNX environment: %w", err)
			return
		}
		runtimeMu.Lock()
		runtimeUp = true
		runtimeMu.Unlock()
	})
	return runtimeErr
}

// ShutdownRuntime releases the onnxruntime environment if it was started.
func ShutdownRuntime() {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if runtimeUp {
		ort.DestroyEnvironment()
		runtimeUp = false
	}
}

// ONNXOptions names the graph inputs and outputs of a skl2onnx export.
type ONNXOptions struct {
	Library           string
	Features          int
	Classes           []int
	InputName         string
	LabelOutput       string
	ProbabilityOutput string // empty when the graph has no probability output
}

// onnxModel runs a single-row session. The session reuses preallocated
// tensors, so runs are serialized.
type onnxModel struct {
	mu       sync.Mutex
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	label    *ort.Tensor[int64]
	probs    *ort.Tensor[float32]
	features int
	classes  []int
}

// onnxProbabilityModel is an onnxModel whose graph also emits posteriors.
type onnxProbabilityModel struct {
	*onnxModel
}

// LoadONNX opens an ONNX classifier. The result implements ProbabilityModel
// when opts.ProbabilityOutput is set.
func LoadONNX(path string, opts ONNXOptions) (Model, error) {
	if opts.Features <= 0 {
		return nil, fmt.Errorf("onnx: feature count must be positive")
	}
	if err := initRuntime(opts.Library); err != nil {
		return nil, err
	}

	m := &onnxModel{features: opts.Features, classes: opts.Classes}
	var err error
	m.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(opts.Features)))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	m.label, err = ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("failed to create label tensor: %w", err)
	}

	outputNames := []string{opts.LabelOutput}
	outputs := []ort.ArbitraryTensor{m.label}
	if opts.ProbabilityOutput != "" {
		m.probs, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(opts.Classes))))
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to create probability tensor: %w", err)
		}
		outputNames = append(outputNames, opts.ProbabilityOutput)
		outputs = append(outputs, m.probs)
	}

	m.session, err = ort.NewAdvancedSession(path,
		[]string{opts.InputName}, outputNames,
		[]ort.ArbitraryTensor{m.input}, outputs,
		nil)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	if m.probs != nil {
		return onnxProbabilityModel{m}, nil
	}
	return m, nil
}

func (m *onnxModel) NumFeatures() int { return m.features }

// run evaluates vec and returns the label and, when available, a copy of the
// probability row. The caller must hold m.mu.
func (m *onnxModel) run(vec []float64) (int64, []float64, error) {
	if len(vec) != m.features {
		return 0, nil, fmt.Errorf("onnx model expects %d features, got %d", m.features, len(vec))
	}
	in := m.input.GetData()
	for i, v := range vec {
		in[i] = float32(v)
	}
	if err := m.session.Run(); err != nil {
		return 0, nil, fmt.Errorf("inference failed: %w", err)
	}

	label := m.label.GetData()[0]
	if m.probs == nil {
		return label, nil, nil
	}
	raw := m.probs.GetData()
	probs := make([]float64, len(raw))
	for i, p := range raw {
		probs[i] = float64(p)
	}
	return label, probs, nil
}

func (m *onnxModel) Predict(vec []float64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	label, _, err := m.run(vec)
	return int(label), err
}

func (m onnxProbabilityModel) Classes() []int { return m.classes }

func (m onnxProbabilityModel) PredictProbabilities(vec []float64) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, probs, err := m.run(vec)
	return probs, err
}

// Close releases the session and its tensors.
func (m *onnxModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	if m.input != nil {
		m.input.Destroy()
		m.input = nil
	}
	if m.label != nil {
		m.label.Destroy()
		m.label = nil
	}
	if m.probs != nil {
		m.probs.Destroy()
		m.probs = nil
	}
	return nil
}
