package repository

import (
	"context"
	"fmt"
	"strings"

	"go-leaf-inspector/pkg/models"
)

// PredictionRepository stores the prediction history.
type PredictionRepository interface {
	// Create appends rec and returns it with its assigned id.
	Create(ctx context.Context, rec *models.PredictionRecord) (*models.PredictionRecord, error)

	// FindAll lists records matching filter, ordered by id ascending.
	FindAll(ctx context.Context, filter models.PredictionFilter) ([]*models.PredictionRecord, error)

	// FindByID returns ErrNotFound when no record has the id.
	FindByID(ctx context.Context, id int64) (*models.PredictionRecord, error)

	// Delete returns ErrNotFound when no record has the id.
	Delete(ctx context.Context, id int64) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Name identifies the backend in health output.
	Name() string

	Close() error
}

// Validate checks the fields every stored record needs.
func Validate(rec *models.PredictionRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	var missing []string
	if strings.TrimSpace(rec.Filename) == "" {
		missing = append(missing, "filename")
	}
	if strings.TrimSpace(rec.Result) == "" {
		missing = append(missing, "result")
	}
	if strings.TrimSpace(rec.ModelUsed) == "" {
		missing = append(missing, "model_used")
	}
	if strings.TrimSpace(rec.PredictionDate) == "" {
		missing = append(missing, "prediction_date")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRecord, strings.Join(missing, ", "))
	}
	return nil
}

// Matches reports whether rec passes filter. Search is a case-insensitive
// substring match on the filename; Label is exact.
func Matches(rec *models.PredictionRecord, filter models.PredictionFilter) bool {
	if filter.Label != "" && rec.Result != filter.Label {
		return false
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	return search == "" || strings.Contains(strings.ToLower(rec.Filename), search)
}
