package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"HOST", "PORT", "REQUEST_TIMEOUT", "PREDICTION_TIMEOUT",
		"MAX_REQUEST_BODY_SIZE", "MODEL_MANIFEST", "DATABASE_URL", "DATABASE_DRIVER", "AZURE_STORAGE_ACCOUNT",
		"AZURE_STORAGE_KEY", "ALLOWED_ORIGINS", "ALLOWED_SOURCE_SCHEMES", "IMAGE_ROOT"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.ServerAddress() != "0.0.0.0:8080" {
		t.Errorf("Expected 0.0.0.0:8080, got %s", cfg.ServerAddress())
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("Expected 30s request timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.ModelManifestPath != "models/models.yaml" {
		t.Errorf("Unexpected manifest path %q", cfg.ModelManifestPath)
	}
	if cfg.DatabaseURL != "" {
		t.Error("Expected empty DatabaseURL by default")
	}
	if cfg.AzureEnabled() {
		t.Error("Azure should be disabled without credentials")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("Unexpected origins %v", cfg.AllowedOrigins)
	}
	for _, scheme := range cfg.SourceSchemes() {
		if scheme == "" || scheme == "file" {
			t.Errorf("Local sources must be disabled by default, got %v", cfg.SourceSchemes())
		}
	}
	if len(cfg.SourceSchemes()) != 3 {
		t.Errorf("Expected http, https and azblob, got %v", cfg.SourceSchemes())
	}
}

func TestLoadFromEnv_ImageRoot(t *testing.T) {
	root := t.TempDir()
	t.Setenv("IMAGE_ROOT", root)
	t.Setenv("ALLOWED_SOURCE_SCHEMES", "HTTPS,file")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := []string{"https", "", "file"}
	got := cfg.SourceSchemes()
	if len(got) != len(want) {
		t.Fatalf("Expected %q, got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("HOST", " 127.0.0.1 ")
	t.Setenv("PORT", "9090")
	t.Setenv("PREDICTION_TIMEOUT", "5s")
	t.Setenv("MODEL_MANIFEST", "/etc/leaf/models.yaml")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("AZURE_STORAGE_ACCOUNT", "leafs")
	t.Setenv("AZURE_STORAGE_KEY", "c2VjcmV0")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.ServerAddress() != "127.0.0.1:9090" {
		t.Errorf("Expected trimmed address, got %s", cfg.ServerAddress())
	}
	if cfg.PredictionTimeout != 5*time.Second {
		t.Errorf("Expected 5s, got %s", cfg.PredictionTimeout)
	}
	if cfg.ModelManifestPath != "/etc/leaf/models.yaml" {
		t.Errorf("Unexpected manifest path %q", cfg.ModelManifestPath)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("Expected 2 origins, got %v", cfg.AllowedOrigins)
	}
	if !cfg.AzureEnabled() {
		t.Error("Expected Azure to be enabled")
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{"non numeric port", map[string]string{"PORT": "http"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"negative body size", map[string]string{"MAX_REQUEST_BODY_SIZE": "-1"}},
		{"half azure credentials", map[string]string{"AZURE_STORAGE_ACCOUNT": "leafs"}},
		{"unknown database driver", map[string]string{"DATABASE_DRIVER": "sqlite"}},
		{"unknown source scheme", map[string]string{"ALLOWED_SOURCE_SCHEMES": "https,ftp"}},
		{"file scheme without root", map[string]string{"ALLOWED_SOURCE_SCHEMES": "file"}},
		{"missing image root", map[string]string{"IMAGE_ROOT": "/nonexistent/leaf-images"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("PORT", "")
			t.Setenv("MAX_REQUEST_BODY_SIZE", "")
			t.Setenv("AZURE_STORAGE_ACCOUNT", "")
			t.Setenv("AZURE_STORAGE_KEY", "")
			t.Setenv("DATABASE_DRIVER", "")
			t.Setenv("ALLOWED_SOURCE_SCHEMES", "")
			t.Setenv("IMAGE_ROOT", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadFromEnv(); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestParseDurationOrDefault_IgnoresGarbage(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	if d := parseDurationOrDefault("REQUEST_TIMEOUT", time.Second); d != time.Second {
		t.Errorf("Expected default, got %s", d)
	}
	t.Setenv("REQUEST_TIMEOUT", "-3s")
	if d := parseDurationOrDefault("REQUEST_TIMEOUT", time.Second); d != time.Second {
		t.Errorf("Expected default for negative duration, got %s", d)
	}
}
