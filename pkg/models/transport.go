package models

// PredictRequest asks for a prediction on an image reference.
type PredictRequest struct {
	Source string `json:"source" form:"source"`
	Model  string `json:"model" form:"model" binding:"required"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// PredictionListResponse wraps history listings.
type PredictionListResponse struct {
	Count       int                 `json:"count"`
	Predictions []*PredictionRecord `json:"predictions"`
}

// HealthResponse reports service status.
type HealthResponse struct {
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp"`
	ModelsLoaded    int    `json:"models_loaded"`
	ModelsAvailable int    `json:"models_available"`
	Repository      string `json:"repository"`
}
