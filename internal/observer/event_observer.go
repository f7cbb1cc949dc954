package observer

import (
	"context"
	"sync"
	"time"

	"go-leaf-inspector/internal/workerpool"

	"github.com/sirupsen/logrus"
)

// PredictionEvent represents a step of a prediction
type PredictionEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id,omitempty"`
	Source         string                 `json:"source"`
	Model          string                 `json:"model"`
	Label          string                 `json:"label,omitempty"`
	Confidence     *float64               `json:"confidence,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorType      string                 `json:"error_type,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of prediction event
type EventType string

const (
	// PredictionStarted when a prediction begins
	PredictionStarted EventType = "prediction_started"
	// PredictionCompleted when a prediction finishes successfully
	PredictionCompleted EventType = "prediction_completed"
	// PredictionFailed when a prediction fails
	PredictionFailed EventType = "prediction_failed"
	// ImageFetched when the image was fetched and decoded
	ImageFetched EventType = "image_fetched"
	// RecordFailed when the prediction could not be stored
	RecordFailed EventType = "record_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event PredictionEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event PredictionEvent)
}

// LoggingObserver logs prediction events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles prediction events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event PredictionEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"source":          event.Source,
		"model":           event.Model,
		"processing_time": event.ProcessingTime.String(),
		"success":         event.Success,
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.Label != "" {
		fields["label"] = event.Label
	}
	if event.Confidence != nil {
		fields["confidence"] = *event.Confidence
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
		fields["error_type"] = event.ErrorType
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case PredictionStarted:
		entry.Debug("Prediction started")
	case PredictionCompleted:
		entry.Info("Prediction completed")
	case PredictionFailed:
		entry.Error("Prediction failed")
	case ImageFetched:
		entry.Debug("Image fetched")
	case RecordFailed:
		entry.Error("Prediction could not be recorded")
	default:
		entry.Info("Prediction event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters from prediction events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalPredictions    int64
	successful          int64
	failed              int64
	recordFailures      int64
	totalProcessingTime time.Duration
	byModel             map[string]int64
	byLabel             map[string]int64
	byErrorType         map[string]int64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		byModel:     make(map[string]int64),
		byLabel:     make(map[string]int64),
		byErrorType: make(map[string]int64),
	}
}

// OnEvent handles prediction events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event PredictionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case PredictionStarted:
		o.totalPredictions++
	case PredictionCompleted:
		o.successful++
		o.totalProcessingTime += event.ProcessingTime
		o.byModel[event.Model]++
		o.byLabel[event.Label]++
	case PredictionFailed:
		o.failed++
		o.byErrorType[event.ErrorType]++
	case RecordFailed:
		o.recordFailures++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Metrics is a snapshot of the collected counters.
type Metrics struct {
	TotalPredictions      int64            `json:"total_predictions"`
	SuccessfulPredictions int64            `json:"successful_predictions"`
	FailedPredictions     int64            `json:"failed_predictions"`
	RecordFailures        int64            `json:"record_failures"`
	AvgProcessingTimeMs   float64          `json:"avg_processing_time_ms"`
	ByModel               map[string]int64 `json:"by_model"`
	ByLabel               map[string]int64 `json:"by_label"`
	ByErrorType           map[string]int64 `json:"by_error_type"`
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var avg time.Duration
	if o.successful > 0 {
		avg = o.totalProcessingTime / time.Duration(o.successful)
	}

	return Metrics{
		TotalPredictions:      o.totalPredictions,
		SuccessfulPredictions: o.successful,
		FailedPredictions:     o.failed,
		RecordFailures:        o.recordFailures,
		AvgProcessingTimeMs:   float64(avg) / float64(time.Millisecond),
		ByModel:               copyCounts(o.byModel),
		ByLabel:               copyCounts(o.byLabel),
		ByErrorType:           copyCounts(o.byErrorType),
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// EventPublisher delivers events to observers on a worker pool
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	pool      *workerpool.Pool
}

// NewEventPublisher creates a publisher with the given number of delivery
// workers.
func NewEventPublisher(workers int) *EventPublisher {
	pool := workerpool.New(workers)
	pool.Start()
	return &EventPublisher{
		observers: make([]Observer, 0),
		pool:      pool,
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers queues event for every observer and returns immediately.
// Events published after Close are dropped.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event PredictionEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	// observers outlive the request that triggered the event
	ctx = context.WithoutCancel(ctx)

	for _, observer := range observers {
		obs := observer
		p.pool.Submit(func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		})
	}
}

// Flush waits until every queued event has been delivered.
func (p *EventPublisher) Flush() {
	p.pool.Wait()
}

// Close delivers the queued events and stops the workers.
func (p *EventPublisher) Close() {
	p.pool.Wait()
	p.pool.Close()
}
