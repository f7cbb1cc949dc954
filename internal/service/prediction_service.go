package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go-leaf-inspector/internal/classifier"
	apperrors "go-leaf-inspector/internal/errors"
	"go-leaf-inspector/internal/labels"
	"go-leaf-inspector/internal/logger"
	"go-leaf-inspector/internal/observer"
	"go-leaf-inspector/internal/preprocess"
	"go-leaf-inspector/internal/repository"
	"go-leaf-inspector/internal/storage"
	"go-leaf-inspector/pkg/models"
	"go-leaf-inspector/pkg/validation"
)

// PredictionService runs the leaf classification pipeline and manages the
// prediction history.
type PredictionService interface {
	// Predict fetches the image named by req.Source and classifies it.
	Predict(ctx context.Context, req models.PredictRequest) (*models.PredictionResult, error)

	// PredictImage classifies an already decoded image, e.g. an upload.
	PredictImage(ctx context.Context, filename string, img image.Image, model string) (*models.PredictionResult, error)

	Models() []classifier.HandleInfo

	History(ctx context.Context, filter models.PredictionFilter) ([]*models.PredictionRecord, error)
	GetPrediction(ctx context.Context, id int64) (*models.PredictionRecord, error)
	DeletePrediction(ctx context.Context, id int64) error
}

// Dependencies are the collaborators of the prediction service. Repo and
// Publisher may be nil: results are then not stored or observed.
type Dependencies struct {
	Registry  *classifier.Registry
	Fetcher   storage.ImageFetcher
	Validator *validation.SourceValidator
	Repo      repository.PredictionRepository
	Publisher observer.Subject
	// Timeout bounds one prediction; zero means no limit.
	Timeout time.Duration
	Now     func() time.Time
}

type predictionService struct {
	deps Dependencies
}

// NewPredictionService creates a new prediction service
func NewPredictionService(deps Dependencies) PredictionService {
	if deps.Validator == nil {
		deps.Validator = validation.NewSourceValidator()
	}
	if deps.Fetcher == nil {
		deps.Fetcher = storage.NewRouter()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &predictionService{deps: deps}
}

func (s *predictionService) Predict(ctx context.Context, req models.PredictRequest) (*models.PredictionResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := s.deps.Now()
	s.publish(ctx, observer.PredictionEvent{EventType: observer.PredictionStarted, Source: req.Source, Model: req.Model})

	result, err := s.predict(ctx, start, req)
	if err != nil {
		s.fail(ctx, start, req.Source, req.Model, err)
		return nil, err
	}
	return result, nil
}

func (s *predictionService) predict(ctx context.Context, start time.Time, req models.PredictRequest) (*models.PredictionResult, error) {
	if err := s.deps.Validator.ValidateSource(req.Source); err != nil {
		return nil, err
	}
	handle, err := s.deps.Registry.Get(req.Model)
	if err != nil {
		return nil, err
	}

	img, err := s.deps.Fetcher.FetchImage(ctx, req.Source)
	if err != nil {
		return nil, asAppError(ctx, err, "failed to fetch image")
	}
	s.publish(ctx, observer.PredictionEvent{
		EventType:      observer.ImageFetched,
		Source:         req.Source,
		Model:          handle.Name,
		ProcessingTime: s.deps.Now().Sub(start),
		Success:        true,
	})

	return s.run(ctx, start, storage.Filename(req.Source), img, handle)
}

func (s *predictionService) PredictImage(ctx context.Context, filename string, img image.Image, model string) (*models.PredictionResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := s.deps.Now()
	s.publish(ctx, observer.PredictionEvent{EventType: observer.PredictionStarted, Source: filename, Model: model})

	result, err := func() (*models.PredictionResult, error) {
		if err := s.deps.Validator.ValidateFilename(filename); err != nil {
			return nil, err
		}
		if img == nil {
			return nil, apperrors.NewImageDecodeError("no image data", nil)
		}
		handle, err := s.deps.Registry.Get(model)
		if err != nil {
			return nil, err
		}
		return s.run(ctx, start, filename, img, handle)
	}()
	if err != nil {
		s.fail(ctx, start, filename, model, err)
		return nil, err
	}
	return result, nil
}

// run normalizes, extracts, classifies, labels and stores one image.
func (s *predictionService) run(ctx context.Context, start time.Time, filename string, img image.Image, handle *classifier.Handle) (*models.PredictionResult, error) {
	normalized := preprocess.Normalize(img)
	vec, err := handle.Strategy.Extract(normalized)
	if err != nil {
		return nil, err
	}
	out, err := handle.Classify(vec)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, asAppError(ctx, err, "prediction cancelled")
	}

	now := s.deps.Now()
	result := &models.PredictionResult{
		Filename:          filename,
		ClassID:           out.ClassID,
		RawLabel:          labels.RawName(out.ClassID),
		Label:             string(labels.Map(out.ClassID)),
		Confidence:        out.Confidence,
		Model:             handle.Name,
		Strategy:          handle.Strategy.Name(),
		Timestamp:         now,
		ProcessingTimeSec: now.Sub(start).Seconds(),
	}
	if out.Probabilities != nil {
		result.Probabilities = make(map[string]float64, len(out.Probabilities))
		for id, p := range out.Probabilities {
			result.Probabilities[labels.ClassKey(id)] = p
		}
	}

	if s.deps.Repo != nil {
		rec, err := s.deps.Repo.Create(ctx, result.Record())
		if err != nil {
			s.publish(ctx, observer.PredictionEvent{
				EventType:    observer.RecordFailed,
				Source:       filename,
				Model:        handle.Name,
				ErrorMessage: err.Error(),
			})
			return nil, apperrors.NewInternalError("failed to store prediction", err)
		}
		result.ID = rec.ID
	}

	s.publish(ctx, observer.PredictionEvent{
		EventType:      observer.PredictionCompleted,
		Source:         filename,
		Model:          handle.Name,
		Label:          result.Label,
		Confidence:     result.Confidence,
		ProcessingTime: now.Sub(start),
		Success:        true,
		Metadata:       map[string]interface{}{"class_id": result.ClassID, "raw_label": result.RawLabel},
	})
	return result, nil
}

func (s *predictionService) Models() []classifier.HandleInfo {
	return s.deps.Registry.List()
}

func (s *predictionService) History(ctx context.Context, filter models.PredictionFilter) ([]*models.PredictionRecord, error) {
	if s.deps.Repo == nil {
		return nil, apperrors.NewInternalError("prediction history is not configured", nil)
	}
	records, err := s.deps.Repo.FindAll(ctx, filter)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return records, nil
}

func (s *predictionService) GetPrediction(ctx context.Context, id int64) (*models.PredictionRecord, error) {
	if s.deps.Repo == nil {
		return nil, apperrors.NewInternalError("prediction history is not configured", nil)
	}
	rec, err := s.deps.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return rec, nil
}

func (s *predictionService) DeletePrediction(ctx context.Context, id int64) error {
	if s.deps.Repo == nil {
		return apperrors.NewInternalError("prediction history is not configured", nil)
	}
	if err := s.deps.Repo.Delete(ctx, id); err != nil {
		return mapRepositoryError(err)
	}
	logger.FromContext(ctx).WithField("id", id).Info("Prediction deleted")
	return nil
}

func (s *predictionService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.deps.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.deps.Timeout)
}

func (s *predictionService) publish(ctx context.Context, event observer.PredictionEvent) {
	if s.deps.Publisher == nil {
		return
	}
	event.RequestID = logger.RequestID(ctx)
	s.deps.Publisher.NotifyObservers(ctx, event)
}

func (s *predictionService) fail(ctx context.Context, start time.Time, source, model string, err error) {
	event := observer.PredictionEvent{
		EventType:      observer.PredictionFailed,
		Source:         source,
		Model:          model,
		ProcessingTime: s.deps.Now().Sub(start),
		ErrorType:      string(apperrors.ErrorTypeInternal),
		ErrorMessage:   err.Error(),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		event.ErrorType = string(appErr.Type)
	}
	s.publish(ctx, event)
}

// asAppError keeps AppErrors as they are and classifies anything else,
// reporting deadline and cancellation as timeouts.
func asAppError(ctx context.Context, err error, message string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewTimeoutError(message, err)
	}
	return apperrors.NewNetworkError(message, err)
}

func mapRepositoryError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFoundError("prediction not found", err)
	case errors.Is(err, repository.ErrInvalidRecord):
		return apperrors.NewValidationError("invalid prediction record", err)
	case errors.Is(err, repository.ErrRepositoryUnavailable):
		return apperrors.NewInternalError("prediction history unavailable", err)
	default:
		return apperrors.NewInternalError(fmt.Sprintf("prediction history: %v", err), err)
	}
}
