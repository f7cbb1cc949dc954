// Command predict classifies local or remote leaf images with one model from
// the manifest and prints the results as JSON. Nothing is persisted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go-leaf-inspector/internal/classifier"
	"go-leaf-inspector/internal/config"
	"go-leaf-inspector/internal/container"
	"go-leaf-inspector/internal/logger"
	"go-leaf-inspector/internal/service"
	"go-leaf-inspector/internal/storage"
	"go-leaf-inspector/pkg/models"
	"go-leaf-inspector/pkg/validation"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	manifest := flag.String("manifest", "models/models.yaml", "model manifest (YAML)")
	model := flag.String("model", "", "model name, e.g. COLOR_RF")
	onnxLib := flag.String("onnx-lib", os.Getenv("ONNXRUNTIME_LIB"), "onnxruntime shared library")
	timeout := flag.Duration("timeout", 30*time.Second, "per-image timeout")
	list := flag.Bool("list", false, "list models and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s -model NAME [flags] IMAGE...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Diagnostics go to stderr so stdout stays valid JSON.
	logger.Logger.SetOutput(os.Stderr)

	os.Exit(run(*manifest, *model, *onnxLib, *timeout, *list, flag.Args()))
}

func run(manifest, model, onnxLib string, timeout time.Duration, list bool, images []string) int {
	registry, err := classifier.LoadRegistryFile(manifest, classifier.NewLoaderFactory(onnxLib), 0)
	if err != nil {
		logger.WithError(err).Error("Failed to load models")
		return 1
	}
	defer classifier.ShutdownRuntime()
	defer registry.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if list {
		if err := enc.Encode(registry.List()); err != nil {
			return 1
		}
		return 0
	}
	if model == "" || len(images) == 0 {
		flag.Usage()
		return 2
	}

	// Local paths are the point of the CLI, so they are not confined.
	fetcher := storage.NewRouter()
	err = container.AddRemoteSources(fetcher, &config.Config{
		PredictionTimeout:   timeout,
		AzureStorageAccount: os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureStorageKey:     os.Getenv("AZURE_STORAGE_KEY"),
	})
	if err != nil {
		logger.WithError(err).Error("Failed to set up image sources")
		return 1
	}
	svc := service.NewPredictionService(service.Dependencies{
		Registry:  registry,
		Fetcher:   fetcher,
		Validator: validation.NewSourceValidatorWithOptions(fetcher.Schemes(), nil),
		Timeout:   timeout,
	})

	status := 0
	for _, src := range images {
		result, err := svc.Predict(context.Background(), models.PredictRequest{Source: src, Model: model})
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{"source": src, "model": model}).Error("Prediction failed")
			status = 1
			continue
		}
		if err := enc.Encode(result); err != nil {
			return 1
		}
	}
	return status
}
