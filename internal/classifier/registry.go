package classifier

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "go-leaf-inspector/internal/errors"
	"go-leaf-inspector/internal/features"
	"go-leaf-inspector/internal/logger"
	"go-leaf-inspector/internal/workerpool"

	"github.com/arbovm/levenshtein"
	"github.com/sirupsen/logrus"
)

// Registry holds every handle named in a manifest, loaded or not.
type Registry struct {
	handles map[string]*Handle
	names   []string
}

// HandleInfo describes a handle for listings.
type HandleInfo struct {
	Name     string  `json:"name"`
	Strategy string  `json:"strategy"`
	Format   Format  `json:"format"`
	Accuracy float64 `json:"accuracy"`
	Features int     `json:"features"`
	Loaded   bool    `json:"loaded"`
	Error    string  `json:"error,omitempty"`
}

// LoadRegistryFile reads the manifest at path and loads its models.
// Relative model paths are resolved against the manifest's directory.
func LoadRegistryFile(path string, factory LoaderFactory, workers int) (*Registry, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return LoadRegistry(m, filepath.Dir(path), factory, workers), nil
}

// LoadRegistry loads every manifest entry in parallel. An entry that fails
// is kept with its error and never affects the other entries.
func LoadRegistry(m *Manifest, baseDir string, factory LoaderFactory, workers int) *Registry {
	r := &Registry{handles: make(map[string]*Handle, len(m.Models))}
	loaded := make([]*Handle, len(m.Models))

	pool := workerpool.New(workers)
	pool.Start()
	defer pool.Close()

	for i, entry := range m.Models {
		i, entry := i, entry
		pool.Submit(func() {
			loaded[i] = loadHandle(entry, baseDir, factory)
		})
	}
	pool.Wait()

	for _, h := range loaded {
		r.handles[strings.ToUpper(h.Name)] = h
		r.names = append(r.names, h.Name)
	}
	sort.Strings(r.names)
	return r
}

func loadHandle(entry ManifestEntry, baseDir string, factory LoaderFactory) (h *Handle) {
	start := time.Now()
	path := entry.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	h = &Handle{
		Name:     entry.Name,
		Format:   entry.Format,
		Path:     path,
		Accuracy: entry.Accuracy,
	}

	defer func() {
		if r := recover(); r != nil {
			h.Model = nil
			h.Err = apperrors.NewModelUnavailableError(fmt.Sprintf("model %s panicked while loading: %v", entry.Name, r), nil)
		}
		fields := logrus.Fields{
			"model":    h.Name,
			"format":   h.Format,
			"path":     h.Path,
			"duration": time.Since(start).String(),
		}
		if h.Err != nil {
			logger.Component("registry").WithFields(fields).WithError(h.Err).Warn("Model failed to load")
			return
		}
		logger.Component("registry").WithFields(fields).Info("Model loaded")
	}()

	strategy, err := features.Lookup(entry.StrategyName())
	if err != nil {
		h.Err = apperrors.NewModelUnavailableError(fmt.Sprintf("model %s has no usable feature strategy", entry.Name), err)
		return h
	}
	h.Strategy = strategy
	if entry.Features == 0 {
		entry.Features = strategy.Length()
	}

	loader, err := factory.CreateLoader(entry.Format)
	if err != nil {
		h.Err = apperrors.NewModelUnavailableError(fmt.Sprintf("model %s cannot be loaded", entry.Name), err)
		return h
	}
	model, err := loader.Load(entry, path)
	if err != nil {
		h.Err = apperrors.NewModelUnavailableError(fmt.Sprintf("model %s failed to load", entry.Name), err)
		return h
	}
	if model.NumFeatures() != strategy.Length() {
		if c, ok := model.(io.Closer); ok {
			c.Close()
		}
		h.Err = apperrors.NewModelUnavailableError(fmt.Sprintf(
			"model %s expects %d features but strategy %s produces %d",
			entry.Name, model.NumFeatures(), strategy.Name(), strategy.Length()), nil)
		return h
	}
	h.Model = model
	return h
}

// NewRegistry builds a registry from already loaded handles.
func NewRegistry(handles ...*Handle) *Registry {
	r := &Registry{handles: make(map[string]*Handle, len(handles))}
	for _, h := range handles {
		r.handles[strings.ToUpper(h.Name)] = h
		r.names = append(r.names, h.Name)
	}
	sort.Strings(r.names)
	return r
}

// Get returns the usable handle called name (case-insensitive).
func (r *Registry) Get(name string) (*Handle, error) {
	h, ok := r.handles[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		msg := fmt.Sprintf("unknown model %q", name)
		if s := r.Suggest(name); s != "" {
			msg += fmt.Sprintf(", did you mean %q?", s)
		}
		return nil, apperrors.NewModelUnavailableError(msg, nil)
	}
	if !h.Usable() {
		return nil, apperrors.NewModelUnavailableError(fmt.Sprintf("model %s is unavailable", h.Name), h.Err)
	}
	return h, nil
}

// Suggest returns the known model name closest to name, or "" when the
// registry is empty.
func (r *Registry) Suggest(name string) string {
	target := strings.ToUpper(strings.TrimSpace(name))
	best, bestDist := "", -1
	for _, candidate := range r.names {
		d := levenshtein.Distance(target, strings.ToUpper(candidate))
		if bestDist < 0 || d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

// Names lists all model names, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// List describes every handle in name order.
func (r *Registry) List() []HandleInfo {
	infos := make([]HandleInfo, 0, len(r.names))
	for _, name := range r.names {
		h := r.handles[strings.ToUpper(name)]
		info := HandleInfo{
			Name:     h.Name,
			Format:   h.Format,
			Accuracy: h.Accuracy,
			Loaded:   h.Usable(),
		}
		if h.Strategy != nil {
			info.Strategy = h.Strategy.Name()
		}
		if h.Model != nil {
			info.Features = h.Model.NumFeatures()
		}
		if h.Err != nil {
			info.Error = h.Err.Error()
		}
		infos = append(infos, info)
	}
	return infos
}

// Available counts the usable handles.
func (r *Registry) Available() int {
	n := 0
	for _, h := range r.handles {
		if h.Usable() {
			n++
		}
	}
	return n
}

// Close releases models holding native resources.
func (r *Registry) Close() error {
	for _, h := range r.handles {
		if c, ok := h.Model.(io.Closer); ok {
			c.Close()
		}
	}
	ShutdownRuntime()
	return nil
}
