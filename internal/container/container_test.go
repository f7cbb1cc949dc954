package container

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go-leaf-inspector/internal/config"
	apperrors "go-leaf-inspector/internal/errors"
	"go-leaf-inspector/internal/repository"
	"go-leaf-inspector/pkg/validation"
)

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "leaf.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewFetcher_NoLocalFilesByDefault(t *testing.T) {
	cfg := &config.Config{AllowedSourceSchemes: []string{"http", "https", "azblob"}}
	fetcher, err := NewFetcher(cfg)
	if err != nil {
		t.Fatal(err)
	}
	path := writePNG(t, t.TempDir())

	validator := validation.NewSourceValidatorWithOptions(cfg.SourceSchemes(), nil)
	for _, ref := range []string{path, "file://" + path} {
		if err := validator.ValidateSource(ref); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			t.Errorf("ValidateSource(%q): expected validation error, got %v", ref, err)
		}
		if _, err := fetcher.FetchImage(context.Background(), ref); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			t.Errorf("FetchImage(%q): expected validation error, got %v", ref, err)
		}
	}
	if err := validator.ValidateSource("https://example.com/leaf.png"); err != nil {
		t.Errorf("Expected https source to be accepted, got %v", err)
	}

	// Azure is skipped without credentials.
	schemes := map[string]bool{}
	for _, s := range fetcher.Schemes() {
		schemes[s] = true
	}
	if len(schemes) != 2 || !schemes["http"] || !schemes["https"] {
		t.Errorf("Unexpected schemes %v", fetcher.Schemes())
	}
}

func TestNewFetcher_ImageRoot(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{AllowedSourceSchemes: []string{"https"}, ImageRoot: root}
	fetcher, err := NewFetcher(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := fetcher.FetchImage(context.Background(), writePNG(t, root)); err != nil {
		t.Errorf("Expected image under root to load, got %v", err)
	}
	outside := writePNG(t, t.TempDir())
	if _, err := fetcher.FetchImage(context.Background(), outside); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error outside root, got %v", err)
	}
	if _, err := fetcher.FetchImage(context.Background(), "http://example.com/leaf.png"); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected http to be disabled, got %v", err)
	}
}

func TestNewRepository_MemoryWithoutURL(t *testing.T) {
	repo, err := NewRepository(context.Background(), &config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := repo.(*repository.MemoryPredictionRepository); !ok {
		t.Errorf("Expected memory repository, got %T", repo)
	}
}
