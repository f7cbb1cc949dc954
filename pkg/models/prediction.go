package models

import "time"

// DateLayout is the prediction_date column format.
const DateLayout = "2006-01-02 15:04:05"

// PredictionResult is the outcome of one prediction. It is created once and
// never modified.
type PredictionResult struct {
	// ID of the persisted record, zero when the result was not stored
	ID                int64              `json:"id,omitempty"`
	Filename          string             `json:"filename"`
	ClassID           int                `json:"class_id"`
	RawLabel          string             `json:"raw_label"`
	Label             string             `json:"label"`
	Confidence        *float64           `json:"confidence"`
	Probabilities     map[string]float64 `json:"probabilities,omitempty"`
	Model             string             `json:"model"`
	Strategy          string             `json:"strategy"`
	Timestamp         time.Time          `json:"timestamp"`
	ProcessingTimeSec float64            `json:"processing_time_sec"`
}

// Record converts the result into the row appended to the history.
func (r *PredictionResult) Record() *PredictionRecord {
	return &PredictionRecord{
		Filename:       r.Filename,
		Result:         r.Label,
		ModelUsed:      r.Model,
		PredictionDate: r.Timestamp.Format(DateLayout),
		Confidence:     r.Confidence,
	}
}

// PredictionRecord is a row of the predictions history.
type PredictionRecord struct {
	ID             int64    `json:"id"`
	Filename       string   `json:"filename"`
	Result         string   `json:"result"`
	ModelUsed      string   `json:"model_used"`
	PredictionDate string   `json:"prediction_date"`
	Confidence     *float64 `json:"confidence"`
	Notes          string   `json:"notes"`
}

// PredictionFilter narrows history listings. Search matches the filename
// case-insensitively; Label must equal the result exactly.
type PredictionFilter struct {
	Search string `form:"search"`
	Label  string `form:"label"`
}
