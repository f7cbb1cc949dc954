package models

// Summary aggregates the prediction history.
type Summary struct {
	Total   int            `json:"total"`
	ByLabel map[string]int `json:"by_label"`
	ByModel []ModelSummary `json:"by_model"`
	// Range of prediction_date values, empty when there are no records
	FirstPrediction string `json:"first_prediction,omitempty"`
	LastPrediction  string `json:"last_prediction,omitempty"`
}

// ModelSummary aggregates the predictions of one model.
type ModelSummary struct {
	Model   string         `json:"model"`
	Count   int            `json:"count"`
	ByLabel map[string]int `json:"by_label"`
	// Confidence statistics over records that have one
	MeanConfidence   *float64 `json:"mean_confidence"`
	StdDevConfidence *float64 `json:"stddev_confidence"`
	WithConfidence   int      `json:"with_confidence"`
}
