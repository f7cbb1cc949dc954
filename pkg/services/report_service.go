package services

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go-leaf-inspector/internal/export"
	"go-leaf-inspector/internal/repository"
	"go-leaf-inspector/pkg/models"

	"gonum.org/v1/gonum/stat"
)

// ReportService builds exports and summaries of the prediction history
type ReportService struct {
	repo repository.PredictionRepository
}

// NewReportService creates a new report service
func NewReportService(repo repository.PredictionRepository) *ReportService {
	return &ReportService{repo: repo}
}

// ExportCSV writes the records matching filter to w as CSV.
func (s *ReportService) ExportCSV(ctx context.Context, w io.Writer, filter models.PredictionFilter) error {
	records, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to load predictions: %w", err)
	}
	return export.WriteCSV(w, records)
}

// ExportPDF writes the records matching filter to w as the PDF report,
// newest first.
func (s *ReportService) ExportPDF(ctx context.Context, w io.Writer, filter models.PredictionFilter) error {
	records, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to load predictions: %w", err)
	}
	return export.WritePDF(w, records)
}

// Summary aggregates the records matching filter.
func (s *ReportService) Summary(ctx context.Context, filter models.PredictionFilter) (*models.Summary, error) {
	records, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load predictions: %w", err)
	}
	return Summarize(records), nil
}

// Summarize counts records per label and per model and computes confidence
// statistics per model. Models are listed by name.
func Summarize(records []*models.PredictionRecord) *models.Summary {
	summary := &models.Summary{
		Total:   len(records),
		ByLabel: make(map[string]int),
		ByModel: []models.ModelSummary{},
	}

	perModel := make(map[string]*models.ModelSummary)
	confidences := make(map[string][]float64)
	for _, rec := range records {
		summary.ByLabel[rec.Result]++

		m, ok := perModel[rec.ModelUsed]
		if !ok {
			m = &models.ModelSummary{Model: rec.ModelUsed, ByLabel: make(map[string]int)}
			perModel[rec.ModelUsed] = m
		}
		m.Count++
		m.ByLabel[rec.Result]++
		if rec.Confidence != nil {
			confidences[rec.ModelUsed] = append(confidences[rec.ModelUsed], *rec.Confidence)
		}

		// prediction_date sorts lexically in its fixed layout
		if summary.FirstPrediction == "" || rec.PredictionDate < summary.FirstPrediction {
			summary.FirstPrediction = rec.PredictionDate
		}
		if rec.PredictionDate > summary.LastPrediction {
			summary.LastPrediction = rec.PredictionDate
		}
	}

	for name, m := range perModel {
		values := confidences[name]
		m.WithConfidence = len(values)
		if len(values) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(values, nil)
		if len(values) == 1 {
			std = 0
		}
		m.MeanConfidence = &mean
		m.StdDevConfidence = &std
	}

	for _, m := range perModel {
		summary.ByModel = append(summary.ByModel, *m)
	}
	sort.Slice(summary.ByModel, func(i, j int) bool {
		return summary.ByModel[i].Model < summary.ByModel[j].Model
	})
	return summary
}
