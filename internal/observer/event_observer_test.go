package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type recordingObserver struct {
	name   string
	mu     sync.Mutex
	events []PredictionEvent
}

func (o *recordingObserver) OnEvent(ctx context.Context, event PredictionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *recordingObserver) GetObserverName() string { return o.name }

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, PredictionEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string                  { return "panicking" }

func TestEventPublisher_DeliversToAll(t *testing.T) {
	pub := NewEventPublisher(2)
	defer pub.Close()

	a := &recordingObserver{name: "a"}
	b := &recordingObserver{name: "b"}
	pub.Subscribe(a)
	pub.Subscribe(b)
	pub.Subscribe(panickingObserver{})

	for i := 0; i < 5; i++ {
		pub.NotifyObservers(context.Background(), PredictionEvent{EventType: PredictionStarted, Model: "LBP_RF"})
	}
	pub.Flush()

	for _, o := range []*recordingObserver{a, b} {
		if len(o.events) != 5 {
			t.Errorf("%s: expected 5 events, got %d", o.name, len(o.events))
		}
		for _, e := range o.events {
			if e.Timestamp.IsZero() {
				t.Errorf("%s: timestamp not set", o.name)
			}
		}
	}
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	pub := NewEventPublisher(1)
	defer pub.Close()

	a := &recordingObserver{name: "a"}
	pub.Subscribe(a)
	pub.Unsubscribe(&recordingObserver{name: "a"})

	pub.NotifyObservers(context.Background(), PredictionEvent{EventType: PredictionStarted})
	pub.Flush()

	if len(a.events) != 0 {
		t.Errorf("Expected no events after unsubscribe, got %d", len(a.events))
	}
}

func TestEventPublisher_CancelledContext(t *testing.T) {
	pub := NewEventPublisher(1)
	defer pub.Close()

	var got error
	done := make(chan struct{})
	pub.Subscribe(observerFunc(func(ctx context.Context, _ PredictionEvent) {
		got = ctx.Err()
		close(done)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub.NotifyObservers(ctx, PredictionEvent{EventType: PredictionCompleted})
	<-done

	if got != nil {
		t.Errorf("Observer saw cancelled context: %v", got)
	}
}

type observerFunc func(context.Context, PredictionEvent)

func (f observerFunc) OnEvent(ctx context.Context, e PredictionEvent) { f(ctx, e) }
func (f observerFunc) GetObserverName() string                        { return "func" }

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	m.OnEvent(ctx, PredictionEvent{EventType: PredictionStarted})
	m.OnEvent(ctx, PredictionEvent{EventType: PredictionCompleted, Model: "COLOR_RF", Label: "healthy", ProcessingTime: 10 * time.Millisecond})
	m.OnEvent(ctx, PredictionEvent{EventType: PredictionStarted})
	m.OnEvent(ctx, PredictionEvent{EventType: PredictionCompleted, Model: "COLOR_RF", Label: "diseased", ProcessingTime: 30 * time.Millisecond})
	m.OnEvent(ctx, PredictionEvent{EventType: PredictionStarted})
	m.OnEvent(ctx, PredictionEvent{EventType: PredictionFailed, Model: "LBP_RF", ErrorType: "image_decode"})
	m.OnEvent(ctx, PredictionEvent{EventType: RecordFailed})

	got := m.GetMetrics()
	if got.TotalPredictions != 3 || got.SuccessfulPredictions != 2 || got.FailedPredictions != 1 || got.RecordFailures != 1 {
		t.Errorf("Unexpected counters %+v", got)
	}
	if got.AvgProcessingTimeMs != 20 {
		t.Errorf("Expected 20ms average, got %f", got.AvgProcessingTimeMs)
	}
	if got.ByModel["COLOR_RF"] != 2 || got.ByLabel["healthy"] != 1 || got.ByErrorType["image_decode"] != 1 {
		t.Errorf("Unexpected breakdown %+v", got)
	}

	// snapshots are independent of later events
	got.ByModel["COLOR_RF"] = 99
	if m.GetMetrics().ByModel["COLOR_RF"] != 2 {
		t.Error("GetMetrics returned a shared map")
	}
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	c := 0.9
	NewLoggingObserver(log).OnEvent(context.Background(), PredictionEvent{
		EventType:  PredictionCompleted,
		RequestID:  "req-1",
		Source:     "leaf.jpg",
		Model:      "COLOR_RF",
		Label:      "healthy",
		Confidence: &c,
		Success:    true,
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected one JSON log line, got %q", buf.String())
	}
	if entry["msg"] != "Prediction completed" || entry["label"] != "healthy" || entry["request_id"] != "req-1" {
		t.Errorf("Unexpected log entry %v", entry)
	}

	buf.Reset()
	NewLoggingObserver(log).OnEvent(context.Background(), PredictionEvent{
		EventType:    PredictionFailed,
		ErrorType:    "image_decode",
		ErrorMessage: "not a valid image",
	})
	if !strings.Contains(buf.String(), `"level":"error"`) || !strings.Contains(buf.String(), "image_decode") {
		t.Errorf("Unexpected failure log %q", buf.String())
	}
}
